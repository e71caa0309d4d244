// Package core provides the business logic for menu and item synchronization.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Row failures in a batch result carry one of these codes, and request-level
// failures carry one in the error response body.
//
// Error codes are grouped by category:
//
// # Row Errors (ROW001-ROW099)
//
// Errors reported for a single batch row. The rest of the batch still runs:
//
//	ROW001 - Malformed identifier: The row id could not be read
//	         Action: Send a positive numeric id, or "<id>-menu" for menus
//	         Patterns: "malformed identifier"
//
//	ROW002 - Not found: The menu or item to change does not exist
//	         Action: Refresh your data and retry with a current id
//	         Patterns: "entity not found"
//
//	ROW003 - Dangling parent: The parent restaurant or menu is missing
//	         Action: Create the parent first or fix parent_id
//	         Patterns: "dangling parent reference"
//
//	ROW004 - Duplicate identifier: A menu with this id already exists
//	         Action: Fetch the current max menu id and renumber new menus
//	         Patterns: "duplicate identifier"
//
//	ROW005 - Unknown action: Action is not i, u or d
//	         Action: Use "i" to insert, "u" to update or "d" to delete
//	         Patterns: "unknown action"
//
//	ROW006 - Invalid row: A required field is missing or inconsistent
//	         Action: Check the row's name and price
//	         Patterns: "invalid row"
//
// # Sync Errors (SYNC001-SYNC099)
//
// Errors that reject a whole batch before any row runs:
//
//	SYNC001 - Malformed batch: Request body is not a batch
//	          Action: Send {"data": [...]} with an array of rows
//	          Patterns: "malformed batch"
//
//	SYNC002 - Batch too large: Too many rows in one request
//	          Action: Split the batch into smaller requests
//	          Patterns: "batch too large", "request body too large"
//
//	SYNC003 - System busy: Too many batches in progress
//	          Action: Please wait a moment and try again
//	          Patterns: "too many concurrent batches"
//
//	SYNC004 - Request cancelled: Request was cancelled
//	          Action: Please try again
//	          Patterns: "context canceled"
//
//	SYNC005 - Request timeout: Request timed out
//	          Action: Send a smaller batch or try again later
//	          Patterns: "context deadline exceeded"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this ID already exists
//	DB002 - Unique constraint: This value must be unique but already exists
//	DB003 - Foreign key: Referenced record does not exist
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//	DB007 - Deadlock: Database was busy with conflicting operations
//	DB008 - Database locked: SQLite database is locked
//
// # Auth Errors (AUTH001-AUTH099)
//
//	AUTH001 - Missing credentials: No API key or bearer token
//	          Patterns: "missing api key", "missing bearer token"
//
//	AUTH002 - Invalid credentials: API key or token rejected
//	          Patterns: "invalid api key", "invalid token"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Row Errors (ROW001-ROW006)
	// =========================================================================
	{
		pattern: "malformed identifier",
		msg: UserMessage{
			Message: "The row id could not be read",
			Action:  `Send a positive numeric id, or "<id>-menu" for menus`,
			Code:    "ROW001",
		},
	},
	{
		pattern: "entity not found",
		msg: UserMessage{
			Message: "The menu or item to change does not exist",
			Action:  "Refresh your data and retry with a current id",
			Code:    "ROW002",
		},
	},
	{
		pattern: "dangling parent reference",
		msg: UserMessage{
			Message: "The parent restaurant or menu is missing",
			Action:  "Create the parent first or fix parent_id",
			Code:    "ROW003",
		},
	},
	{
		pattern: "duplicate identifier",
		msg: UserMessage{
			Message: "A menu with this id already exists",
			Action:  "Fetch the current max menu id and renumber new menus",
			Code:    "ROW004",
		},
	},
	{
		pattern: "unknown action",
		msg: UserMessage{
			Message: "Action is not recognized",
			Action:  `Use "i" to insert, "u" to update or "d" to delete`,
			Code:    "ROW005",
		},
	},
	{
		pattern: "invalid row",
		msg: UserMessage{
			Message: "A required field is missing or inconsistent",
			Action:  "Check the row's name and price",
			Code:    "ROW006",
		},
	},

	// =========================================================================
	// Sync Errors (SYNC001-SYNC005)
	// =========================================================================
	{
		pattern: "malformed batch",
		msg: UserMessage{
			Message: "Request body is not a batch",
			Action:  `Send {"data": [...]} with an array of rows`,
			Code:    "SYNC001",
		},
	},
	{
		pattern: "batch too large",
		msg: UserMessage{
			Message: "Too many rows in one request",
			Action:  "Split the batch into smaller requests",
			Code:    "SYNC002",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Request body exceeds the size limit",
			Action:  "Split the batch into smaller requests",
			Code:    "SYNC002",
		},
	},
	{
		pattern: "too many concurrent batches",
		msg: UserMessage{
			Message: "System is busy processing other batches",
			Action:  "Please wait a moment and try again",
			Code:    "SYNC003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SYNC004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Send a smaller batch or try again later",
			Code:    "SYNC005",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB008)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Review the batch for duplicate ids",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Review the batch for duplicate ids",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review the batch for duplicate ids",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure parent records exist first",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Send a smaller batch or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with another writer",
			Action:  "Please try again",
			Code:    "DB008",
		},
	},

	// =========================================================================
	// Auth Errors (AUTH001-AUTH002)
	// =========================================================================
	{
		pattern: "missing api key",
		msg: UserMessage{
			Message: "Credentials are required",
			Action:  "Send an X-API-Key header",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "missing bearer token",
		msg: UserMessage{
			Message: "Credentials are required",
			Action:  "Send an Authorization: Bearer header",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "invalid api key",
		msg: UserMessage{
			Message: "Credentials were rejected",
			Action:  "Check your API key",
			Code:    "AUTH002",
		},
	},
	{
		pattern: "invalid token",
		msg: UserMessage{
			Message: "Credentials were rejected",
			Action:  "Request a new token",
			Code:    "AUTH002",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := fmt.Errorf("menu 7: %w", ErrNotFound)
//	msg := MapError(err)
//	// msg.Code == "ROW002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
//
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
