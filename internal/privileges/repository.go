package privileges

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medistore/medistore/internal/platform/db"
)

const privilegeColumns = `id, code, name, description, category, is_active, created_at, updated_at`

// Repository persists privileges in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the locking operations used by Delete.
type TxRepository interface {
	LockPrivilege(ctx context.Context, id int64) (Privilege, error)
	CountActiveRoleReferences(ctx context.Context, id int64) (int, error)
	DeletePrivilege(ctx context.Context, id int64) error
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

// InsertIfAbsent inserts in unless the code exists and returns the stored row.
// created is false when an existing row was returned untouched.
func (r *Repository) InsertIfAbsent(ctx context.Context, in Input) (Privilege, bool, error) {
	row := r.pool.QueryRow(ctx, `
WITH ins AS (
	INSERT INTO privileges (code, name, description, category)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (code) DO NOTHING
	RETURNING `+privilegeColumns+`
)
SELECT `+privilegeColumns+`, true FROM ins
UNION ALL
SELECT `+privilegeColumns+`, false FROM privileges WHERE code = $1
LIMIT 1`, in.Code, in.Name, in.Description, string(in.Category))

	var (
		p       Privilege
		created bool
	)
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Category, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent insert committed after this statement's snapshot.
		p, err = r.FindByCode(ctx, in.Code)
		return p, false, err
	}
	if err != nil {
		return Privilege{}, false, fmt.Errorf("privileges: insert if absent: %w", err)
	}
	return p, created, nil
}

// Insert creates a privilege and fails on a duplicate code.
func (r *Repository) Insert(ctx context.Context, in Input) (Privilege, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO privileges (code, name, description, category)
VALUES ($1, $2, $3, $4)
RETURNING `+privilegeColumns, in.Code, in.Name, in.Description, string(in.Category))
	p, err := scanPrivilege(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Privilege{}, ErrDuplicateCode
		}
		return Privilege{}, fmt.Errorf("privileges: insert: %w", err)
	}
	return p, nil
}

// FindByID fetches a privilege by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (Privilege, error) {
	return scanPrivilege(r.pool.QueryRow(ctx, `SELECT `+privilegeColumns+` FROM privileges WHERE id = $1`, id))
}

// FindByCode fetches a privilege by code.
func (r *Repository) FindByCode(ctx context.Context, code string) (Privilege, error) {
	return scanPrivilege(r.pool.QueryRow(ctx, `SELECT `+privilegeColumns+` FROM privileges WHERE code = $1`, code))
}

// ListActiveByCategory returns the active privileges of a category ordered by name.
func (r *Repository) ListActiveByCategory(ctx context.Context, category Category) ([]Privilege, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+privilegeColumns+` FROM privileges
WHERE category = $1 AND is_active
ORDER BY name ASC, id ASC`, string(category))
	if err != nil {
		return nil, fmt.Errorf("privileges: list by category: %w", err)
	}
	return collectPrivileges(rows)
}

// List returns every privilege ordered by category then code.
func (r *Repository) List(ctx context.Context) ([]Privilege, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+privilegeColumns+` FROM privileges ORDER BY category, code`)
	if err != nil {
		return nil, fmt.Errorf("privileges: list: %w", err)
	}
	return collectPrivileges(rows)
}

// SetActive toggles the active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (Privilege, error) {
	return scanPrivilege(r.pool.QueryRow(ctx, `
UPDATE privileges SET is_active = $2, updated_at = NOW()
WHERE id = $1
RETURNING `+privilegeColumns, id, active))
}

func (t *txRepo) LockPrivilege(ctx context.Context, id int64) (Privilege, error) {
	return scanPrivilege(t.tx.QueryRow(ctx, `SELECT `+privilegeColumns+` FROM privileges WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) CountActiveRoleReferences(ctx context.Context, id int64) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `
SELECT COUNT(*) FROM role_privileges rp
JOIN roles r ON r.id = rp.role_id
WHERE rp.privilege_id = $1 AND r.is_active`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("privileges: count references: %w", err)
	}
	return count, nil
}

// DeletePrivilege drops references held by inactive roles, then the privilege.
func (t *txRepo) DeletePrivilege(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_privileges WHERE privilege_id = $1`, id); err != nil {
		return fmt.Errorf("privileges: delete references: %w", err)
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM privileges WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("privileges: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPrivilege(row pgx.Row) (Privilege, error) {
	var p Privilege
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Category, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Privilege{}, ErrNotFound
	}
	return p, err
}

func collectPrivileges(rows pgx.Rows) ([]Privilege, error) {
	defer rows.Close()
	var out []Privilege
	for rows.Next() {
		p, err := scanPrivilege(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
