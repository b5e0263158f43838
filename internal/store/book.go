package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/libris-lms/apiserver/types"
)

const bookSelect = `
	SELECT b.id, b.title, b.description, b.author_id, a.name AS author_name,
		b.category_id, c.name AS category_name, b.total_copies, b.available_copies,
		b.cover_key, b.created_at, b.updated_at, b.created_by, b.updated_by
	FROM books b
	JOIN authors a ON a.id = b.author_id
	LEFT JOIN categories c ON c.id = b.category_id`

var bookOrdering = map[string]string{
	"id":               "b.id",
	"title":            "b.title",
	"name":             "b.title",
	"created_at":       "b.created_at",
	"available_copies": "b.available_copies",
}

// BookRepository handles persistence for books.
type BookRepository struct {
	db *sqlx.DB
}

func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) List(ctx context.Context, filter types.BookFilter) ([]types.Book, int, error) {
	ds := dialect.From(goqu.T("books").As("b")).
		Join(goqu.T("authors").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("b.author_id")))).
		LeftJoin(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id")))).
		Select(
			goqu.I("b.id"),
			goqu.I("b.title"),
			goqu.I("b.description"),
			goqu.I("b.author_id"),
			goqu.I("a.name").As("author_name"),
			goqu.I("b.category_id"),
			goqu.I("c.name").As("category_name"),
			goqu.I("b.total_copies"),
			goqu.I("b.available_copies"),
			goqu.I("b.cover_key"),
			goqu.I("b.created_at"),
			goqu.I("b.updated_at"),
			goqu.I("b.created_by"),
			goqu.I("b.updated_by"),
		)

	if strings.TrimSpace(filter.Search) != "" {
		pattern := likePattern(filter.Search)
		ds = ds.Where(goqu.Or(
			goqu.I("b.title").ILike(pattern),
			goqu.I("b.description").ILike(pattern),
		))
	}
	if filter.AuthorID > 0 {
		ds = ds.Where(goqu.I("b.author_id").Eq(filter.AuthorID))
	}
	if filter.CategoryID > 0 {
		ds = ds.Where(goqu.I("b.category_id").Eq(filter.CategoryID))
	}
	if filter.AvailableOnly {
		ds = ds.Where(goqu.I("b.available_copies").Gt(0))
	}

	order := orderBy(filter.Ordering, bookOrdering, "title")
	return selectPage[types.Book](ctx, r.db, ds, order, filter.Offset, filter.Limit)
}

func (r *BookRepository) Get(ctx context.Context, id int) (types.Book, error) {
	return getBook(ctx, r.db, bookSelect+` WHERE b.id = $1`, id)
}

// Create inserts a book. Every copy starts on the shelf.
func (r *BookRepository) Create(ctx context.Context, book types.Book, actorID int) (types.Book, error) {
	now := time.Now()
	book.AvailableCopies = book.TotalCopies

	const query = `
		INSERT INTO books (title, description, author_id, category_id, total_copies, available_copies,
			created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		book.Title,
		book.Description,
		book.AuthorID,
		book.CategoryID,
		book.TotalCopies,
		book.AvailableCopies,
		now,
		now,
		nullableID(actorID),
	).Scan(&book.ID); err != nil {
		return types.Book{}, translate(err)
	}
	return r.Get(ctx, book.ID)
}

// Update locks the book row, applies mutate to the current state and writes
// the result back in one transaction.
func (r *BookRepository) Update(ctx context.Context, id int, actorID int, mutate func(current types.Book) (types.Book, error)) (types.Book, error) {
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := lockBook(ctx, tx, id)
		if err != nil {
			return err
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}

		const query = `
			UPDATE books
			SET title = $1,
				description = $2,
				author_id = $3,
				category_id = $4,
				total_copies = $5,
				available_copies = $6,
				updated_at = $7,
				updated_by = $8
			WHERE id = $9`
		_, err = tx.ExecContext(
			ctx,
			query,
			next.Title,
			next.Description,
			next.AuthorID,
			next.CategoryID,
			next.TotalCopies,
			next.AvailableCopies,
			time.Now(),
			nullableID(actorID),
			id,
		)
		return translate(err)
	})
	if err != nil {
		return types.Book{}, err
	}
	return r.Get(ctx, id)
}

// SetCover records the object key of the book's cover image.
func (r *BookRepository) SetCover(ctx context.Context, id int, key string, actorID int) (types.Book, error) {
	const query = `
		UPDATE books
		SET cover_key = $1,
			updated_at = $2,
			updated_by = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), nullableID(actorID), id)
	if err != nil {
		return types.Book{}, err
	}
	if err := affectedOne(result.RowsAffected()); err != nil {
		return types.Book{}, err
	}
	return r.Get(ctx, id)
}

// Delete removes a book and its borrow history.
func (r *BookRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockBorrows(ctx, tx, `book_id`, id); err != nil {
			return err
		}
		if _, err := lockBook(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM borrows WHERE book_id = $1`, id); err != nil {
			return fmt.Errorf("delete borrows: %w", err)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
		return err
	})
}

func lockBook(ctx context.Context, q sqlx.QueryerContext, id int) (types.Book, error) {
	return getBook(ctx, q, bookSelect+` WHERE b.id = $1 FOR UPDATE OF b`, id)
}

func getBook(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (types.Book, error) {
	var book types.Book
	if err := sqlx.GetContext(ctx, q, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Book{}, ErrNotFound
		}
		return types.Book{}, err
	}
	return book, nil
}
