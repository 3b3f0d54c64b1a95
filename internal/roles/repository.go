package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medistore/medistore/internal/platform/db"
	"github.com/medistore/medistore/internal/privileges"
)

const roleColumns = `id, code, name, description, is_active, is_system, created_at, updated_at`

// roleGraphQuery loads roles with their privileges in one round trip.
const roleGraphQuery = `
SELECT r.id, r.code, r.name, r.description, r.is_active, r.is_system, r.created_at, r.updated_at,
       p.id, p.code, p.name, p.description, p.category, p.is_active, p.created_at, p.updated_at
FROM roles r
LEFT JOIN role_privileges rp ON rp.role_id = r.id
LEFT JOIN privileges p ON p.id = rp.privilege_id
`

// Repository persists roles in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that must run under one transaction.
type TxRepository interface {
	LockRole(ctx context.Context, id int64) (Role, error)
	UpsertRole(ctx context.Context, in UpsertInput) (Role, error)
	InsertRole(ctx context.Context, in CreateInput) (Role, error)
	UpdateRole(ctx context.Context, role Role) error
	CountExistingPrivileges(ctx context.Context, ids []int64) (int, error)
	ReplacePrivileges(ctx context.Context, roleID int64, ids []int64) error
	CountUsers(ctx context.Context, roleID int64) (int, error)
	DeleteRole(ctx context.Context, id int64) error
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

// FindByID returns the role with its privileges resolved.
func (r *Repository) FindByID(ctx context.Context, id int64) (Role, error) {
	rows, err := r.pool.Query(ctx, roleGraphQuery+`WHERE r.id = $1 ORDER BY p.code`, id)
	if err != nil {
		return Role{}, fmt.Errorf("roles: find by id: %w", err)
	}
	return singleRole(rows)
}

// FindByCode returns the role with its privileges resolved.
func (r *Repository) FindByCode(ctx context.Context, code string) (Role, error) {
	rows, err := r.pool.Query(ctx, roleGraphQuery+`WHERE r.code = $1 ORDER BY p.code`, code)
	if err != nil {
		return Role{}, fmt.Errorf("roles: find by code: %w", err)
	}
	return singleRole(rows)
}

// List returns every role with its privileges, ordered by code.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, roleGraphQuery+`ORDER BY r.code, p.code`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return collectRoleGraph(rows)
}

func (t *txRepo) LockRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(t.tx.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Role{}, err
	}
	rows, err := t.tx.Query(ctx, `SELECT privilege_id FROM role_privileges WHERE role_id = $1 ORDER BY privilege_id`, id)
	if err != nil {
		return Role{}, fmt.Errorf("roles: load privilege ids: %w", err)
	}
	role.PrivilegeIDs, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return Role{}, fmt.Errorf("roles: load privilege ids: %w", err)
	}
	return role, nil
}

// UpsertRole inserts the role or refreshes name and description of an
// existing one. is_system and is_active of an existing row are preserved.
func (t *txRepo) UpsertRole(ctx context.Context, in UpsertInput) (Role, error) {
	return scanRole(t.tx.QueryRow(ctx, `
INSERT INTO roles (code, name, description, is_system)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = NOW()
RETURNING `+roleColumns, in.Code, in.Name, in.Description, in.IsSystem))
}

func (t *txRepo) InsertRole(ctx context.Context, in CreateInput) (Role, error) {
	role, err := scanRole(t.tx.QueryRow(ctx, `
INSERT INTO roles (code, name, description, is_system)
VALUES ($1, $2, $3, false)
RETURNING `+roleColumns, in.Code, in.Name, in.Description))
	if db.IsUniqueViolation(err) {
		return Role{}, ErrDuplicateCode
	}
	return role, err
}

func (t *txRepo) UpdateRole(ctx context.Context, role Role) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE roles SET name = $2, description = $3, is_active = $4, updated_at = NOW()
WHERE id = $1`, role.ID, role.Name, role.Description, role.IsActive)
	if err != nil {
		return fmt.Errorf("roles: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountExistingPrivileges counts ids that resolve and share-locks them so a
// concurrent privilege delete waits for this transaction.
func (t *txRepo) CountExistingPrivileges(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	rows, err := t.tx.Query(ctx, `SELECT id FROM privileges WHERE id = ANY($1) FOR SHARE`, ids)
	if err != nil {
		return 0, fmt.Errorf("roles: check privileges: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("roles: check privileges: %w", err)
	}
	return len(found), nil
}

func (t *txRepo) ReplacePrivileges(ctx context.Context, roleID int64, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_privileges WHERE role_id = $1 AND NOT (privilege_id = ANY($2))`, roleID, ids); err != nil {
		return fmt.Errorf("roles: detach privileges: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
INSERT INTO role_privileges (role_id, privilege_id)
SELECT $1, unnest($2::bigint[])
ON CONFLICT (role_id, privilege_id) DO NOTHING`, roleID, ids)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrUnknownPrivilege
		}
		return fmt.Errorf("roles: attach privileges: %w", err)
	}
	return nil
}

func (t *txRepo) CountUsers(ctx context.Context, roleID int64) (int, error) {
	var count int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("roles: count users: %w", err)
	}
	return count, nil
}

func (t *txRepo) DeleteRole(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("roles: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Code, &role.Name, &role.Description, &role.IsActive, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

func singleRole(rows pgx.Rows) (Role, error) {
	list, err := collectRoleGraph(rows)
	if err != nil {
		return Role{}, err
	}
	if len(list) == 0 {
		return Role{}, ErrNotFound
	}
	return list[0], nil
}

func collectRoleGraph(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var (
		out   []Role
		index = make(map[int64]int)
	)
	for rows.Next() {
		var (
			role    Role
			pID     *int64
			pCode   *string
			pName   *string
			pDesc   *string
			pCat    *string
			pActive *bool
			pCreate *time.Time
			pUpdate *time.Time
		)
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Description, &role.IsActive, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt,
			&pID, &pCode, &pName, &pDesc, &pCat, &pActive, &pCreate, &pUpdate); err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		pos, ok := index[role.ID]
		if !ok {
			role.PrivilegeIDs = []int64{}
			out = append(out, role)
			pos = len(out) - 1
			index[role.ID] = pos
		}
		if pID == nil {
			continue
		}
		out[pos].PrivilegeIDs = append(out[pos].PrivilegeIDs, *pID)
		out[pos].Privileges = append(out[pos].Privileges, privileges.Privilege{
			ID:          *pID,
			Code:        *pCode,
			Name:        *pName,
			Description: *pDesc,
			Category:    privileges.Category(*pCat),
			IsActive:    *pActive,
			CreatedAt:   *pCreate,
			UpdatedAt:   *pUpdate,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
