package services

import (
	"errors"
	"fmt"

	"github.com/libris-lms/apiserver/internal/store"
	"github.com/libris-lms/apiserver/types"
)

var (
	// ErrValidation reports malformed or inconsistent input.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound reports a missing entity.
	ErrNotFound = store.ErrNotFound

	// ErrForbidden reports insufficient privilege or an ownership mismatch.
	ErrForbidden = errors.New("permission denied")

	// ErrConflict reports a request that cannot be applied to the current state.
	ErrConflict = errors.New("conflict")

	// ErrStorageUnavailable reports that no object storage backend is configured.
	ErrStorageUnavailable = errors.New("object storage is not configured")
)

// Conflict sub-kinds. Each matches ErrConflict under errors.Is.
var (
	ErrBorrowLimitExceeded error = conflictError("maximum number of borrowed books reached, return a book before borrowing another")
	ErrBookUnavailable     error = conflictError("book is not available for borrowing")
	ErrAlreadyReturned     error = conflictError("this book has already been returned")
	ErrDuplicate           error = conflictError("already exists")
	ErrConcurrentUpdate    error = conflictError("the record was changed by a concurrent request, try again")
)

type conflictError string

func (e conflictError) Error() string { return string(e) }

func (e conflictError) Unwrap() error { return ErrConflict }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translate maps store errors onto service error kinds. entity names the
// record in not-found and duplicate messages.
func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%s %w", entity, ErrDuplicate)
	case errors.Is(err, store.ErrTxConflict):
		return ErrConcurrentUpdate
	case errors.Is(err, store.ErrNoCopies):
		return ErrBookUnavailable
	case errors.Is(err, store.ErrInvalidReference):
		return validationError("%s references a record that does not exist", entity)
	case errors.Is(err, store.ErrCopiesInUse):
		return validationError("total copies cannot be less than currently borrowed copies")
	}
	return err
}

func requireAdmin(actor types.User) error {
	if !actor.IsAdmin {
		return fmt.Errorf("admin access required: %w", ErrForbidden)
	}
	return nil
}
