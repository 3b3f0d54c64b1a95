package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medistore/medistore/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Credentials, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches credentials with the role code resolved.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Credentials, error) {
	const query = `SELECT u.id, u.email, u.password_hash, COALESCE(r.code, ''), u.store_id, u.is_active
FROM users u
LEFT JOIN roles r ON r.id = u.role_id
WHERE u.email = $1`
	var c Credentials
	err := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).
		Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.RoleCode, &c.StoreID, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, shared.ErrInvalidCredentials
		}
		return Credentials{}, err
	}
	return c, nil
}

var _ Repository = (*PGRepository)(nil)
