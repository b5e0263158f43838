package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

const defaultListLimit = 20

var dialect = goqu.Dialect("postgres")

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, context.Canceled) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		if errors.Is(translate(err), ErrTxConflict) {
			return fmt.Errorf("%w: %w", ErrTxConflict, err)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", translate(err))
	}
	return nil
}

// selectPage runs the count and page queries for a list dataset.
func selectPage[T any](ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset, order []exp.OrderedExpression, offset, limit int) ([]T, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = defaultListLimit
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := sqlx.GetContext(ctx, q, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}

	pageSQL, pageArgs, err := ds.Order(order...).Offset(uint(offset)).Limit(uint(limit)).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	items := make([]T, 0, limit)
	if err := sqlx.SelectContext(ctx, q, &items, pageSQL, pageArgs...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// orderBy resolves a client ordering such as "-title" against a whitelist of
// sortable fields. Unknown fields fall back to the given default.
func orderBy(ordering string, columns map[string]string, fallback string) []exp.OrderedExpression {
	build := func(raw string) ([]exp.OrderedExpression, bool) {
		raw = strings.TrimSpace(raw)
		desc := strings.HasPrefix(raw, "-")
		column, ok := columns[strings.TrimPrefix(raw, "-")]
		if !ok {
			return nil, false
		}
		col := goqu.I(column)
		if desc {
			return []exp.OrderedExpression{col.Desc()}, true
		}
		return []exp.OrderedExpression{col.Asc()}, true
	}

	if order, ok := build(ordering); ok {
		return order
	}
	order, _ := build(fallback)
	return order
}

func likePattern(search string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(search)) + "%"
}

func nullableID(id int) *int {
	if id < 1 {
		return nil
	}
	return &id
}

func affectedOne(rowsAffected int64, err error) error {
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
