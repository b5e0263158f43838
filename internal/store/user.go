package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/libris-lms/apiserver/types"
)

const userColumns = `id, username, email, first_name, last_name, gender, phone, role_id,
	is_active, is_admin, penalty_points, password_hash, created_at, updated_at, created_by, updated_by`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	return getUser(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return getUser(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetByLogin finds a user by username, email or phone number.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (types.User, error) {
	const query = `SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR email = $2 OR phone = $2
		ORDER BY (username = $1) DESC, id
		LIMIT 1`
	return getUser(ctx, r.db, query, types.NormalizeUsername(login), login)
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Username = types.NormalizeUsername(user.Username)

	const query = `
		INSERT INTO users (username, email, first_name, last_name, gender, phone, role_id,
			is_active, is_admin, penalty_points, password_hash, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Gender,
		user.Phone,
		user.RoleID,
		user.IsActive,
		user.IsAdmin,
		user.PenaltyPoints,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
		user.CreatedBy,
		user.UpdatedBy,
	).Scan(&user.ID); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// ResetPenaltyPoints clears a user's penalty points and returns the updated user.
func (r *UserRepository) ResetPenaltyPoints(ctx context.Context, id int, actorID int) (types.User, error) {
	const query = `
		UPDATE users
		SET penalty_points = 0,
			updated_at = $1,
			updated_by = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, time.Now(), nullableID(actorID), id)
	if err != nil {
		return types.User{}, err
	}
	if err := affectedOne(result.RowsAffected()); err != nil {
		return types.User{}, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes a user. Copies held by the user's open borrows go back on
// the shelf and the user's borrows are removed in the same transaction.
// Borrow rows are locked before the user and the books, the order a return
// takes them in.
func (r *UserRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockBorrows(ctx, tx, `user_id`, id); err != nil {
			return err
		}
		if _, err := getUser(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}

		const restore = `
			UPDATE books b
			SET available_copies = b.available_copies + held.copies,
				updated_at = $2
			FROM (
				SELECT book_id, COUNT(1) AS copies
				FROM borrows
				WHERE user_id = $1 AND returned = FALSE
				GROUP BY book_id
			) held
			WHERE b.id = held.book_id`
		if _, err := tx.ExecContext(ctx, restore, id, time.Now()); err != nil {
			return fmt.Errorf("restore held copies: %w", translate(err))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM borrows WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("delete borrows: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return affectedOne(result.RowsAffected())
	})
}

func getUser(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (types.User, error) {
	var user types.User
	if err := sqlx.GetContext(ctx, q, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}
