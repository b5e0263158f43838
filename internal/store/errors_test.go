package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pq.Error{Code: pqUniqueViolation}, ErrDuplicate},
		{"foreign key", &pq.Error{Code: pqForeignKey}, ErrInvalidReference},
		{"copies range", &pq.Error{Code: pqCheckViolation, Constraint: "books_available_copies_range"}, ErrCopiesInUse},
		{"deadlock", &pq.Error{Code: pqDeadlock}, ErrTxConflict},
		{"serialization", fmt.Errorf("update books: %w", &pq.Error{Code: pqSerialization}), ErrTxConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, translate(tc.err), tc.want)
		})
	}

	plain := errors.New("connection reset")
	require.Equal(t, plain, translate(plain))
}
