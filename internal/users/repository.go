package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medistore/medistore/internal/platform/db"
)

const userColumns = `id, email, name, role_id, store_id, is_active, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes operations that run while the target role is locked.
type TxRepository interface {
	LockAssignableRole(ctx context.Context, roleID int64) error
	InsertUser(ctx context.Context, u User, passwordHash string) (User, error)
	UpdateRole(ctx context.Context, userID, roleID int64) error
	SetActive(ctx context.Context, userID int64, active bool) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// FindByID fetches a user by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// List returns all users ordered by id.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CountByRole returns how many users reference roleID.
func (r *Repository) CountByRole(ctx context.Context, roleID int64) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("users: count by role: %w", err)
	}
	return count, nil
}

// LockAssignableRole share-locks an active role. A concurrent role delete
// holds FOR UPDATE on the same row, so the two serialize.
func (t *txRepo) LockAssignableRole(ctx context.Context, roleID int64) error {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM roles WHERE id = $1 AND is_active FOR SHARE`, roleID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRoleUnavailable
	}
	if err != nil {
		return fmt.Errorf("users: lock role: %w", err)
	}
	return nil
}

func (t *txRepo) InsertUser(ctx context.Context, u User, passwordHash string) (User, error) {
	created, err := scanUser(t.tx.QueryRow(ctx, `
INSERT INTO users (email, name, password_hash, role_id, store_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+userColumns, u.Email, u.Name, passwordHash, u.RoleID, u.StoreID))
	switch {
	case db.IsUniqueViolation(err):
		return User{}, ErrDuplicateEmail
	case db.IsForeignKeyViolation(err):
		return User{}, ErrRoleUnavailable
	}
	return created, err
}

func (t *txRepo) UpdateRole(ctx context.Context, userID, roleID int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`, userID, roleID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrRoleUnavailable
		}
		return fmt.Errorf("users: update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetActive(ctx context.Context, userID int64, active bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, userID, active)
	if err != nil {
		return fmt.Errorf("users: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.RoleID, &u.StoreID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
