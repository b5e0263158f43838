package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/libris-lms/apiserver/types"
)

const borrowSelect = `
	SELECT br.id, br.user_id, u.username AS user_username, br.book_id, bk.title AS book_title,
		br.borrow_date, br.due_date, br.return_date, br.returned,
		br.created_at, br.updated_at, br.created_by, br.updated_by
	FROM borrows br
	JOIN users u ON u.id = br.user_id
	JOIN books bk ON bk.id = br.book_id`

var borrowOrdering = map[string]string{
	"id":          "br.id",
	"borrow_date": "br.borrow_date",
	"due_date":    "br.due_date",
	"return_date": "br.return_date",
}

// BorrowRepository handles persistence for borrow records.
type BorrowRepository struct {
	db *sqlx.DB
}

func NewBorrowRepository(db *sqlx.DB) *BorrowRepository {
	return &BorrowRepository{db: db}
}

func (r *BorrowRepository) Get(ctx context.Context, id int) (types.Borrow, error) {
	return getBorrow(ctx, r.db, borrowSelect+` WHERE br.id = $1`, id)
}

func (r *BorrowRepository) List(ctx context.Context, filter types.BorrowFilter) ([]types.Borrow, int, error) {
	ds := dialect.From(goqu.T("borrows").As("br")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("br.user_id")))).
		Join(goqu.T("books").As("bk"), goqu.On(goqu.I("bk.id").Eq(goqu.I("br.book_id")))).
		Select(
			goqu.I("br.id"),
			goqu.I("br.user_id"),
			goqu.I("u.username").As("user_username"),
			goqu.I("br.book_id"),
			goqu.I("bk.title").As("book_title"),
			goqu.I("br.borrow_date"),
			goqu.I("br.due_date"),
			goqu.I("br.return_date"),
			goqu.I("br.returned"),
			goqu.I("br.created_at"),
			goqu.I("br.updated_at"),
			goqu.I("br.created_by"),
			goqu.I("br.updated_by"),
		)

	if filter.UserID > 0 {
		ds = ds.Where(goqu.I("br.user_id").Eq(filter.UserID))
	}
	if filter.BookID > 0 {
		ds = ds.Where(goqu.I("br.book_id").Eq(filter.BookID))
	}
	if filter.Returned != nil {
		ds = ds.Where(goqu.I("br.returned").Eq(*filter.Returned))
	}

	order := orderBy(filter.Ordering, borrowOrdering, "-borrow_date")
	return selectPage[types.Borrow](ctx, r.db, ds, order, filter.Offset, filter.Limit)
}

// WithinTx runs fn with a LendingTx bound to a fresh database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (r *BorrowRepository) WithinTx(ctx context.Context, fn func(tx LendingTx) error) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&lendingTx{tx: tx})
	})
}

// lockBorrows locks every borrow whose column equals id, in id order.
func lockBorrows(ctx context.Context, tx *sqlx.Tx, column string, id int) error {
	var ids []int
	query := `SELECT id FROM borrows WHERE ` + column + ` = $1 ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &ids, query, id); err != nil {
		return fmt.Errorf("lock borrows: %w", translate(err))
	}
	return nil
}

func getBorrow(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (types.Borrow, error) {
	var borrow types.Borrow
	if err := sqlx.GetContext(ctx, q, &borrow, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Borrow{}, ErrNotFound
		}
		return types.Borrow{}, err
	}
	return borrow, nil
}
