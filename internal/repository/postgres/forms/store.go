package forms

import (
	"context"
	"fmt"
	"log/slog"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	"formbuilder/internal/domain/repositories"
	formsRepo "formbuilder/internal/domain/repositories/forms"
	"formbuilder/internal/repository/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresFormStore implements the FormStore interface
type PostgresFormStore struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewFormStore creates a new form store
func NewFormStore(config *postgres.RepositoryConfig) formsRepo.FormStore {
	return &PostgresFormStore{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts the form row and its initial versions
func (s *PostgresFormStore) Create(ctx context.Context, form *models.Form) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, owner, title, slug, status, schema_json, current_version, published_on, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, s.tables.Forms)

	executor := postgres.GetExecutor(ctx, s.pool)
	err := executor.QueryRow(ctx, query,
		form.Name,
		form.Owner,
		form.Title,
		form.Slug,
		form.Status,
		form.SchemaJSON,
		form.CurrentVersion,
		form.PublishedOn,
		form.CreatedAt,
		form.UpdatedAt,
	).Scan(&form.CreatedAt, &form.UpdatedAt)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("form '%s' already exists", form.Name),
				ResourceType: "form",
				ResourceID:   form.Name,
			}
		}
		return fmt.Errorf("create form: %w", err)
	}

	return s.AppendVersions(ctx, form.Name, form.Versions)
}

// GetByName retrieves a form with its version history. Inside a transaction
// the form row is locked until commit.
func (s *PostgresFormStore) GetByName(ctx context.Context, name string) (*models.Form, error) {
	query := fmt.Sprintf(`
		SELECT name, owner, title, slug, status, schema_json, current_version, published_on, created_at, updated_at
		FROM %s
		WHERE name = $1
	`, s.tables.Forms)
	if repositories.TxFrom(ctx) != nil {
		query += " FOR UPDATE"
	}

	executor := postgres.GetExecutor(ctx, s.pool)
	var form models.Form
	err := executor.QueryRow(ctx, query, name).Scan(
		&form.Name,
		&form.Owner,
		&form.Title,
		&form.Slug,
		&form.Status,
		&form.SchemaJSON,
		&form.CurrentVersion,
		&form.PublishedOn,
		&form.CreatedAt,
		&form.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("form %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get form: %w", err)
	}

	versions, err := s.listVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	form.Versions = versions
	return &form, nil
}

func (s *PostgresFormStore) listVersions(ctx context.Context, name string) ([]models.FormVersion, error) {
	query := fmt.Sprintf(`
		SELECT id, form_name, idx, version, schema_json, changelog, created_at
		FROM %s
		WHERE form_name = $1
		ORDER BY idx, version
	`, s.tables.FormVersions)

	executor := postgres.GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("list form versions: %w", err)
	}
	defer rows.Close()

	versions := []models.FormVersion{}
	for rows.Next() {
		var v models.FormVersion
		if err := rows.Scan(&v.ID, &v.FormName, &v.Idx, &v.Version, &v.SchemaJSON, &v.Changelog, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan form version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate form versions: %w", err)
	}
	return versions, nil
}

// List retrieves form metadata without schema or versions
func (s *PostgresFormStore) List(ctx context.Context, opts formsRepo.ListOptions) ([]models.Form, error) {
	order := "DESC"
	if opts.Ascending {
		order = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT name, owner, title, slug, status, current_version, published_on, created_at, updated_at
		FROM %s
		ORDER BY updated_at %s, name %s
	`, s.tables.Forms, order, order)

	args := []any{}
	if opts.Limit > 0 {
		query += " LIMIT $1"
		args = append(args, opts.Limit)
	}

	executor := postgres.GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	forms := []models.Form{}
	for rows.Next() {
		var f models.Form
		err := rows.Scan(
			&f.Name,
			&f.Owner,
			&f.Title,
			&f.Slug,
			&f.Status,
			&f.CurrentVersion,
			&f.PublishedOn,
			&f.CreatedAt,
			&f.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forms: %w", err)
	}
	return forms, nil
}

// Update writes the parent record fields. Versions are not touched.
func (s *PostgresFormStore) Update(ctx context.Context, form *models.Form) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, slug = $2, status = $3, schema_json = $4, current_version = $5,
			published_on = $6, updated_at = $7
		WHERE name = $8
	`, s.tables.Forms)

	executor := postgres.GetExecutor(ctx, s.pool)
	result, err := executor.Exec(ctx, query,
		form.Title,
		form.Slug,
		form.Status,
		form.SchemaJSON,
		form.CurrentVersion,
		form.PublishedOn,
		form.UpdatedAt,
		form.Name,
	)
	if err != nil {
		return fmt.Errorf("update form: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("form %s: %w", form.Name, domain.ErrNotFound)
	}
	return nil
}

// AppendVersions inserts version rows. IDs are assigned when empty.
func (s *PostgresFormStore) AppendVersions(ctx context.Context, name string, versions []models.FormVersion) error {
	if len(versions) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, form_name, idx, version, schema_json, changelog, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.tables.FormVersions)

	executor := postgres.GetExecutor(ctx, s.pool)
	for i := range versions {
		v := &versions[i]
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		v.FormName = name
		_, err := executor.Exec(ctx, query, v.ID, name, v.Idx, v.Version, v.SchemaJSON, v.Changelog, v.CreatedAt)
		if err != nil {
			if postgres.IsPgDuplicateError(err) {
				return &domain.ConflictError{
					Message:      fmt.Sprintf("version %d of form '%s' already exists", v.Version, name),
					ResourceType: "version",
					ResourceID:   fmt.Sprintf("%s@%d", name, v.Version),
				}
			}
			if postgres.IsPgForeignKeyError(err) {
				return fmt.Errorf("form %s: %w", name, domain.ErrNotFound)
			}
			return fmt.Errorf("append form version: %w", err)
		}
	}

	s.logger.Debug("form versions appended", "name", name, "count", len(versions))
	return nil
}

// Delete removes the form; versions cascade
func (s *PostgresFormStore) Delete(ctx context.Context, name string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, s.tables.Forms)

	executor := postgres.GetExecutor(ctx, s.pool)
	result, err := executor.Exec(ctx, query, name)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("form %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

// Ping checks the database answers
func (s *PostgresFormStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}
