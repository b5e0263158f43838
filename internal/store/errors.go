package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")

	// ErrNoCopies is returned when a decrement would take available copies below zero.
	ErrNoCopies = errors.New("no copies available")

	// ErrCopiesInUse is returned when an update would leave fewer total copies than are lent out.
	ErrCopiesInUse = errors.New("copies in use")

	// ErrInvalidReference is returned when a foreign key points at a missing record.
	ErrInvalidReference = errors.New("referenced record does not exist")

	// ErrTxConflict is returned when Postgres aborts a transaction because of
	// a deadlock or serialization failure.
	ErrTxConflict = errors.New("transaction aborted by a concurrent update")
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
	pqForeignKey      = "23503"
	pqSerialization   = "40001"
	pqDeadlock        = "40P01"
)

// translate maps driver errors onto store sentinels.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrDuplicate
		case pqForeignKey:
			return ErrInvalidReference
		case pqSerialization, pqDeadlock:
			return ErrTxConflict
		case pqCheckViolation:
			if pqErr.Constraint == "books_available_copies_range" {
				return ErrCopiesInUse
			}
		}
	}
	return err
}
