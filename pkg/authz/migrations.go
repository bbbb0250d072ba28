package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a versioned DDL step for the access-control read model.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the read-model schema in apply order. The engine
// never writes to these tables; the administrative layer owns mutation.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants and subjects tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id VARCHAR(64) PRIMARY KEY,
					parent_tenant_id VARCHAR(64) REFERENCES tenants(id) ON DELETE SET NULL,
					isolation_mode VARCHAR(16) NOT NULL DEFAULT 'shared',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS subjects (
					id VARCHAR(64) PRIMARY KEY,
					tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					classification VARCHAR(32) NOT NULL DEFAULT 'standard',
					attributes JSONB NOT NULL DEFAULT '{}',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_subjects_tenant_id ON subjects(tenant_id);
			`,
		},
		{
			Version:     2,
			Description: "Create roles and groups tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id VARCHAR(64) PRIMARY KEY,
					tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					parent_role_id VARCHAR(64) REFERENCES roles(id) ON DELETE SET NULL,
					priority INTEGER NOT NULL DEFAULT 0,
					is_assignable BOOLEAN NOT NULL DEFAULT TRUE,
					role_type VARCHAR(16) NOT NULL DEFAULT 'custom',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, name)
				);

				CREATE INDEX idx_roles_tenant_id ON roles(tenant_id);
				CREATE INDEX idx_roles_parent_role_id ON roles(parent_role_id);

				CREATE TABLE IF NOT EXISTS groups (
					id VARCHAR(64) PRIMARY KEY,
					tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					parent_group_id VARCHAR(64) REFERENCES groups(id) ON DELETE SET NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, name)
				);

				CREATE INDEX idx_groups_tenant_id ON groups(tenant_id);
			`,
		},
		{
			Version:     3,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id VARCHAR(64) PRIMARY KEY,
					tenant_id VARCHAR(64) REFERENCES tenants(id) ON DELETE CASCADE,
					resource_type VARCHAR(128) NOT NULL,
					resource_id VARCHAR(255),
					path_prefix VARCHAR(1024),
					wildcard BOOLEAN NOT NULL DEFAULT FALSE,
					actions JSONB NOT NULL DEFAULT '[]',
					conditions JSONB NOT NULL DEFAULT '[]',
					field_grants JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_permissions_tenant_id ON permissions(tenant_id);
				CREATE INDEX idx_permissions_resource_type ON permissions(resource_type);
			`,
		},
		{
			Version:     4,
			Description: "Create assignment junction tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS subject_roles (
					subject_id VARCHAR(64) NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
					role_id VARCHAR(64) NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					granted_by VARCHAR(64),
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP,
					PRIMARY KEY (subject_id, role_id)
				);

				CREATE INDEX idx_subject_roles_role_id ON subject_roles(role_id);
				CREATE INDEX idx_subject_roles_expires_at ON subject_roles(expires_at);

				CREATE TABLE IF NOT EXISTS subject_groups (
					subject_id VARCHAR(64) NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
					group_id VARCHAR(64) NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					PRIMARY KEY (subject_id, group_id)
				);

				CREATE INDEX idx_subject_groups_group_id ON subject_groups(group_id);

				CREATE TABLE IF NOT EXISTS group_roles (
					group_id VARCHAR(64) NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					role_id VARCHAR(64) NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (group_id, role_id)
				);

				CREATE INDEX idx_group_roles_role_id ON group_roles(role_id);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id VARCHAR(64) NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id VARCHAR(64) NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);

				CREATE INDEX idx_role_permissions_permission_id ON role_permissions(permission_id);
			`,
		},
	}
}

// ApplyMigrations runs pending migrations in order, tracking progress in
// a schema_migrations table.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, migration := range Migrations() {
		var exists int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE version = $1`, migration.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", migration.Version, err)
		}
		if exists > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, migration.Version,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
