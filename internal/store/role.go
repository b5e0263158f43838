package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/libris-lms/apiserver/types"
)

const roleColumns = `id, name, created_at, updated_at, created_by, updated_by`

// RoleRepository handles persistence for roles.
type RoleRepository struct {
	db *sqlx.DB
}

func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) List(ctx context.Context, offset, limit int) ([]types.Role, int, error) {
	ds := dialect.From("roles").Select(goqu.L(roleColumns))
	return selectPage[types.Role](ctx, r.db, ds, orderBy("-id", map[string]string{"id": "id"}, "-id"), offset, limit)
}

func (r *RoleRepository) Get(ctx context.Context, id int) (types.Role, error) {
	var role types.Role
	err := r.db.GetContext(ctx, &role, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) Create(ctx context.Context, role types.Role, actorID int) (types.Role, error) {
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now
	role.CreatedBy = nullableID(actorID)

	const query = `
		INSERT INTO roles (name, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, role.Name, role.CreatedAt, role.UpdatedAt, role.CreatedBy).Scan(&role.ID); err != nil {
		return types.Role{}, translate(err)
	}
	return role, nil
}

func (r *RoleRepository) Update(ctx context.Context, role types.Role, actorID int) (types.Role, error) {
	const query = `
		UPDATE roles
		SET name = $1,
			updated_at = $2,
			updated_by = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, role.Name, time.Now(), nullableID(actorID), role.ID)
	if err != nil {
		return types.Role{}, translate(err)
	}
	if err := affectedOne(result.RowsAffected()); err != nil {
		return types.Role{}, err
	}
	return r.Get(ctx, role.ID)
}

// Delete removes a role and detaches it from its users.
func (r *RoleRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET role_id = NULL, updated_at = $2 WHERE role_id = $1`, id, time.Now()); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return affectedOne(result.RowsAffected())
	})
}
