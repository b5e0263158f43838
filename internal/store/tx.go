package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/libris-lms/apiserver/types"
)

// LendingTx exposes the row-locked operations of the borrow workflow.
// Callers lock rows in the order user, book for a new borrow and
// borrow, user, book for a return.
type LendingTx interface {
	LockUser(ctx context.Context, id int) (types.User, error)
	LockBook(ctx context.Context, id int) (types.Book, error)
	LockBorrow(ctx context.Context, id int) (types.Borrow, error)
	CountOpenBorrows(ctx context.Context, userID int) (int, error)
	DecrementAvailable(ctx context.Context, bookID int, actorID int) error
	IncrementAvailable(ctx context.Context, bookID int, actorID int) error
	InsertBorrow(ctx context.Context, borrow types.Borrow, actorID int) (types.Borrow, error)
	CloseBorrow(ctx context.Context, id int, returnedAt time.Time, actorID int) error
	AddPenaltyPoints(ctx context.Context, userID int, points int, actorID int) (int, error)
}

type lendingTx struct {
	tx *sqlx.Tx
}

func (t *lendingTx) LockUser(ctx context.Context, id int) (types.User, error) {
	return getUser(ctx, t.tx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (t *lendingTx) LockBook(ctx context.Context, id int) (types.Book, error) {
	return lockBook(ctx, t.tx, id)
}

func (t *lendingTx) LockBorrow(ctx context.Context, id int) (types.Borrow, error) {
	return getBorrow(ctx, t.tx, borrowSelect+` WHERE br.id = $1 FOR UPDATE OF br`, id)
}

func (t *lendingTx) CountOpenBorrows(ctx context.Context, userID int) (int, error) {
	var count int
	err := t.tx.GetContext(ctx, &count, `SELECT COUNT(1) FROM borrows WHERE user_id = $1 AND returned = FALSE`, userID)
	return count, err
}

// DecrementAvailable takes one copy off the shelf. It returns ErrNoCopies
// when none is left.
func (t *lendingTx) DecrementAvailable(ctx context.Context, bookID int, actorID int) error {
	const query = `
		UPDATE books
		SET available_copies = available_copies - 1,
			updated_at = $1,
			updated_by = $2
		WHERE id = $3 AND available_copies > 0`
	result, err := t.tx.ExecContext(ctx, query, time.Now(), nullableID(actorID), bookID)
	if err != nil {
		return translate(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNoCopies
	}
	return nil
}

func (t *lendingTx) IncrementAvailable(ctx context.Context, bookID int, actorID int) error {
	const query = `
		UPDATE books
		SET available_copies = available_copies + 1,
			updated_at = $1,
			updated_by = $2
		WHERE id = $3`
	result, err := t.tx.ExecContext(ctx, query, time.Now(), nullableID(actorID), bookID)
	if err != nil {
		return translate(err)
	}
	return affectedOne(result.RowsAffected())
}

func (t *lendingTx) InsertBorrow(ctx context.Context, borrow types.Borrow, actorID int) (types.Borrow, error) {
	now := time.Now()
	const query = `
		INSERT INTO borrows (user_id, book_id, borrow_date, due_date, returned,
			created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7)
		RETURNING id`
	var id int
	if err := t.tx.QueryRowxContext(
		ctx,
		query,
		borrow.UserID,
		borrow.BookID,
		borrow.BorrowDate,
		borrow.DueDate,
		now,
		now,
		nullableID(actorID),
	).Scan(&id); err != nil {
		return types.Borrow{}, translate(err)
	}
	return getBorrow(ctx, t.tx, borrowSelect+` WHERE br.id = $1`, id)
}

func (t *lendingTx) CloseBorrow(ctx context.Context, id int, returnedAt time.Time, actorID int) error {
	const query = `
		UPDATE borrows
		SET returned = TRUE,
			return_date = $1,
			updated_at = $2,
			updated_by = $3
		WHERE id = $4 AND returned = FALSE`
	result, err := t.tx.ExecContext(ctx, query, returnedAt, time.Now(), nullableID(actorID), id)
	if err != nil {
		return err
	}
	return affectedOne(result.RowsAffected())
}

// AddPenaltyPoints adds points to the user and returns the new total.
func (t *lendingTx) AddPenaltyPoints(ctx context.Context, userID int, points int, actorID int) (int, error) {
	const query = `
		UPDATE users
		SET penalty_points = penalty_points + $1,
			updated_at = $2,
			updated_by = $3
		WHERE id = $4
		RETURNING penalty_points`
	var total int
	if err := t.tx.QueryRowxContext(ctx, query, points, time.Now(), nullableID(actorID), userID).Scan(&total); err != nil {
		return 0, translate(err)
	}
	return total, nil
}
