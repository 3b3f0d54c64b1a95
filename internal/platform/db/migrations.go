package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema history in apply order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create privileges table",
			SQL: `
				CREATE TABLE IF NOT EXISTS privileges (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(64) NOT NULL UNIQUE,
					name VARCHAR(120) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					category VARCHAR(32) NOT NULL CHECK (category IN (
						'user-management', 'inventory', 'sales', 'prescriptions',
						'reports', 'system', 'store-management', 'drug-management'
					)),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_privileges_category ON privileges(category) WHERE is_active;
			`,
		},
		{
			Version:     2,
			Description: "create roles and role_privileges tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(64) NOT NULL UNIQUE,
					name VARCHAR(120) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS role_privileges (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					privilege_id BIGINT NOT NULL REFERENCES privileges(id) ON DELETE RESTRICT,
					PRIMARY KEY (role_id, privilege_id)
				);

				CREATE INDEX IF NOT EXISTS idx_role_privileges_privilege_id ON role_privileges(privilege_id);
			`,
		},
		{
			Version:     3,
			Description: "create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(254) NOT NULL UNIQUE,
					name VARCHAR(120) NOT NULL,
					password_hash TEXT NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
					store_id TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);
			`,
		},
		{
			Version:     4,
			Description: "create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					actor_id BIGINT NOT NULL,
					action VARCHAR(64) NOT NULL,
					entity VARCHAR(64) NOT NULL,
					entity_id TEXT NOT NULL,
					meta JSONB NOT NULL DEFAULT '{}',
					occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_action_occurred ON audit_logs(action, occurred_at DESC);
			`,
		},
	}
}

// Migrate applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return 0, fmt.Errorf("platform/db: create schema_migrations: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return 0, fmt.Errorf("platform/db: read schema version: %w", err)
	}

	applied := 0
	for _, m := range Migrations() {
		if m.Version <= current {
			continue
		}
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("platform/db: migration %d (%s): %w", m.Version, m.Description, err)
		}
		applied++
	}
	return applied, nil
}
