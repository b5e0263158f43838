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

const authorColumns = `id, name, bio, created_at, updated_at, created_by, updated_by`

var authorOrdering = map[string]string{
	"id":         "id",
	"name":       "name",
	"created_at": "created_at",
}

// AuthorRepository handles persistence for authors.
type AuthorRepository struct {
	db *sqlx.DB
}

func NewAuthorRepository(db *sqlx.DB) *AuthorRepository {
	return &AuthorRepository{db: db}
}

// List returns a page of authors whose name or bio matches search.
func (r *AuthorRepository) List(ctx context.Context, search, ordering string, offset, limit int) ([]types.Author, int, error) {
	ds := dialect.From("authors").Select(goqu.L(authorColumns))
	if strings.TrimSpace(search) != "" {
		pattern := likePattern(search)
		ds = ds.Where(goqu.Or(
			goqu.I("name").ILike(pattern),
			goqu.I("bio").ILike(pattern),
		))
	}
	return selectPage[types.Author](ctx, r.db, ds, orderBy(ordering, authorOrdering, "name"), offset, limit)
}

func (r *AuthorRepository) Get(ctx context.Context, id int) (types.Author, error) {
	var author types.Author
	err := r.db.GetContext(ctx, &author, `SELECT `+authorColumns+` FROM authors WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Author{}, ErrNotFound
		}
		return types.Author{}, err
	}
	return author, nil
}

func (r *AuthorRepository) Create(ctx context.Context, author types.Author, actorID int) (types.Author, error) {
	now := time.Now()
	author.CreatedAt = now
	author.UpdatedAt = now
	author.CreatedBy = nullableID(actorID)

	const query = `
		INSERT INTO authors (name, bio, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		author.Name,
		author.Bio,
		author.CreatedAt,
		author.UpdatedAt,
		author.CreatedBy,
	).Scan(&author.ID); err != nil {
		return types.Author{}, translate(err)
	}
	return author, nil
}

func (r *AuthorRepository) Update(ctx context.Context, author types.Author, actorID int) (types.Author, error) {
	const query = `
		UPDATE authors
		SET name = $1,
			bio = $2,
			updated_at = $3,
			updated_by = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, author.Name, author.Bio, time.Now(), nullableID(actorID), author.ID)
	if err != nil {
		return types.Author{}, translate(err)
	}
	if err := affectedOne(result.RowsAffected()); err != nil {
		return types.Author{}, err
	}
	return r.Get(ctx, author.ID)
}

// Delete removes an author together with the author's books and their borrows.
func (r *AuthorRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked int
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM authors WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		const deleteBorrows = `
			DELETE FROM borrows
			WHERE book_id IN (SELECT id FROM books WHERE author_id = $1)`
		if _, err := tx.ExecContext(ctx, deleteBorrows, id); err != nil {
			return fmt.Errorf("delete borrows: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE author_id = $1`, id); err != nil {
			return fmt.Errorf("delete books: %w", err)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM authors WHERE id = $1`, id)
		return err
	})
}
