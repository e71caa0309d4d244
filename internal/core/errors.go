package core

import "errors"

// Batch-level errors. These reject the whole request before any row runs.
var (
	ErrMalformedBatch = errors.New("malformed batch: data must be an array of rows")
	ErrBatchTooLarge  = errors.New("batch too large")
	ErrTooManyBatches = errors.New("too many concurrent batches, please try again later")
	errAtomicRollback = errors.New("atomic batch rolled back")
)

// Row-level errors. A row failing with one of these is reported and the
// batch moves on to the next row.
var (
	ErrMalformedIdentifier = errors.New("malformed identifier")
	ErrDanglingParent      = errors.New("dangling parent reference")
	ErrUnknownAction       = errors.New("unknown action")
	ErrInvalidRow          = errors.New("invalid row")
)

// ErrorKind names a row failure in batch results.
type ErrorKind string

const (
	KindMalformedIdentifier ErrorKind = "MalformedIdentifier"
	KindEntityNotFound      ErrorKind = "EntityNotFound"
	KindDanglingParent      ErrorKind = "DanglingParentReference"
	KindDuplicateIdentifier ErrorKind = "DuplicateIdentifier"
	KindUnknownAction       ErrorKind = "UnknownAction"
	KindInvalidRow          ErrorKind = "InvalidRow"
)

var rowErrorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrMalformedIdentifier, KindMalformedIdentifier},
	{ErrNotFound, KindEntityNotFound},
	{ErrDanglingParent, KindDanglingParent},
	{ErrDuplicateID, KindDuplicateIdentifier},
	{ErrUnknownAction, KindUnknownAction},
	{ErrInvalidRow, KindInvalidRow},
}

// RowErrorKind returns the kind of a row-level error. ok is false for any
// other error, which must abort the batch.
func RowErrorKind(err error) (kind ErrorKind, ok bool) {
	if err == nil {
		return "", false
	}
	for _, k := range rowErrorKinds {
		if errors.Is(err, k.err) {
			return k.kind, true
		}
	}
	return "", false
}
