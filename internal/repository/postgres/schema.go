package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the form tables and indexes if they do not exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	createForms := `
		CREATE TABLE IF NOT EXISTS ` + tables.Forms + ` (
			name TEXT PRIMARY KEY,
			owner TEXT,
			title TEXT NOT NULL,
			slug TEXT,
			status TEXT NOT NULL DEFAULT 'Draft',
			schema_json TEXT NOT NULL DEFAULT '{}',
			current_version INTEGER NOT NULL DEFAULT 1 CHECK (current_version >= 1),
			published_on TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createForms); err != nil {
		return fmt.Errorf("create %s: %w", tables.Forms, err)
	}

	createVersions := `
		CREATE TABLE IF NOT EXISTS ` + tables.FormVersions + ` (
			id UUID PRIMARY KEY,
			form_name TEXT NOT NULL REFERENCES ` + tables.Forms + `(name) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			version INTEGER NOT NULL CHECK (version >= 1),
			schema_json TEXT NOT NULL,
			changelog TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(form_name, version)
		)
	`
	if _, err := pool.Exec(ctx, createVersions); err != nil {
		return fmt.Errorf("create %s: %w", tables.FormVersions, err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tables.Prefix + `forms_updated_at ON ` + tables.Forms + `(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tables.Prefix + `forms_slug ON ` + tables.Forms + `(slug)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tables.Prefix + `form_versions_form ON ` + tables.FormVersions + `(form_name, idx)`,
	}
	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// DropSchema drops every form table
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, table := range tables.All() {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

// ClearData deletes all forms and their versions, keeping the schema
func ClearData(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	if _, err := pool.Exec(ctx, "DELETE FROM "+tables.Forms); err != nil {
		return fmt.Errorf("clear %s: %w", tables.Forms, err)
	}
	return nil
}
