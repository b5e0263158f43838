package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/libris-lms/apiserver/types"
)

const categoryColumns = `id, name, created_at, updated_at, created_by, updated_by`

var categoryOrdering = map[string]string{
	"id":         "id",
	"name":       "name",
	"created_at": "created_at",
}

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db *sqlx.DB
}

func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context, search, ordering string, offset, limit int) ([]types.Category, int, error) {
	ds := dialect.From("categories").Select(goqu.L(categoryColumns))
	if strings.TrimSpace(search) != "" {
		ds = ds.Where(goqu.I("name").ILike(likePattern(search)))
	}
	return selectPage[types.Category](ctx, r.db, ds, orderBy(ordering, categoryOrdering, "name"), offset, limit)
}

func (r *CategoryRepository) Get(ctx context.Context, id int) (types.Category, error) {
	var category types.Category
	err := r.db.GetContext(ctx, &category, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, err
	}
	return category, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category types.Category, actorID int) (types.Category, error) {
	now := time.Now()
	category.CreatedAt = now
	category.UpdatedAt = now
	category.CreatedBy = nullableID(actorID)

	const query = `
		INSERT INTO categories (name, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, category.Name, category.CreatedAt, category.UpdatedAt, category.CreatedBy).Scan(&category.ID); err != nil {
		return types.Category{}, translate(err)
	}
	return category, nil
}

func (r *CategoryRepository) Update(ctx context.Context, category types.Category, actorID int) (types.Category, error) {
	const query = `
		UPDATE categories
		SET name = $1,
			updated_at = $2,
			updated_by = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, category.Name, time.Now(), nullableID(actorID), category.ID)
	if err != nil {
		return types.Category{}, translate(err)
	}
	if err := affectedOne(result.RowsAffected()); err != nil {
		return types.Category{}, err
	}
	return r.Get(ctx, category.ID)
}

// Delete removes a category and clears it from every book that referenced it.
func (r *CategoryRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE books SET category_id = NULL, updated_at = $2 WHERE category_id = $1`, id, time.Now()); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return affectedOne(result.RowsAffected())
	})
}
