package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "malformed identifier maps to ROW001",
			err:         fmt.Errorf("%w: menu id %q", ErrMalformedIdentifier, "abc-menu"),
			wantCode:    "ROW001",
			wantMessage: "The row id could not be read",
		},
		{
			name:        "wrapped not found maps to ROW002",
			err:         fmt.Errorf("item 9: %w", ErrNotFound),
			wantCode:    "ROW002",
			wantMessage: "The menu or item to change does not exist",
		},
		{
			name:        "dangling parent maps to ROW003",
			err:         fmt.Errorf("%w: menu 3 does not exist", ErrDanglingParent),
			wantCode:    "ROW003",
			wantMessage: "The parent restaurant or menu is missing",
		},
		{
			name:        "duplicate identifier maps to ROW004",
			err:         fmt.Errorf("create menu: %w", ErrDuplicateID),
			wantCode:    "ROW004",
			wantMessage: "A menu with this id already exists",
		},
		{
			name:        "unknown action maps to ROW005",
			err:         fmt.Errorf("%w %q", ErrUnknownAction, "x"),
			wantCode:    "ROW005",
			wantMessage: "Action is not recognized",
		},
		{
			name:        "invalid row maps to ROW006",
			err:         fmt.Errorf("%w: name is required", ErrInvalidRow),
			wantCode:    "ROW006",
			wantMessage: "A required field is missing or inconsistent",
		},
		{
			name:        "malformed batch maps to SYNC001",
			err:         ErrMalformedBatch,
			wantCode:    "SYNC001",
			wantMessage: "Request body is not a batch",
		},
		{
			name:        "batch too large maps to SYNC002",
			err:         fmt.Errorf("%w: 10 rows exceeds limit of 5", ErrBatchTooLarge),
			wantCode:    "SYNC002",
			wantMessage: "Too many rows in one request",
		},
		{
			name:        "busy limiter maps to SYNC003",
			err:         ErrTooManyBatches,
			wantCode:    "SYNC003",
			wantMessage: "System is busy processing other batches",
		},
		{
			name:        "deadline wins over generic timeout",
			err:         fmt.Errorf("apply batch: %w", context.DeadlineExceeded),
			wantCode:    "SYNC005",
			wantMessage: "Request timed out",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "sqlite busy maps correctly",
			err:         errors.New("database is locked"),
			wantCode:    "DB008",
			wantMessage: "Database was busy with another writer",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	err := fmt.Errorf("menu 4: %w", ErrNotFound)
	result := FormatUserError(err)

	expected := "The menu or item to change does not exist (Code: ROW002). Refresh your data and retry with a current id"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "row error is user facing",
			err:  ErrDanglingParent,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("create menu: %w", ErrDuplicateID)
		userErr := NewUserError(techErr)

		if userErr.Error() != "A menu with this id already exists" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}

		if !errors.Is(userErr, ErrDuplicateID) {
			t.Error("Unwrap() should return original error")
		}
	})
}
