package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	formsRepo "formbuilder/internal/domain/repositories/forms"
	formsSvc "formbuilder/internal/service/forms"
)

const (
	// Backend is the name reported in repository errors
	Backend = "remote"

	InitialChangelog = "Initial"
	UpdateChangelog  = "Update"
)

var listFields = []string{"name", "title", "status", "creation", "modified"}

// FormRepository stores forms as documents on the remote document store and
// keeps an append-only version history for every schema change.
//
// Updates are read-modify-write without a concurrency token: two writers
// racing on one document can lose an update.
type FormRepository struct {
	client *Client
	logger *slog.Logger
}

var _ formsRepo.FormRepository = (*FormRepository)(nil)

func NewFormRepository(client *Client, logger *slog.Logger) *FormRepository {
	return &FormRepository{client: client, logger: logger}
}

func (r *FormRepository) List(ctx context.Context) ([]models.FormSummary, error) {
	docs, err := r.client.List(ctx, models.DocType, ListParams{
		Fields:  listFields,
		OrderBy: "modified desc",
	})
	if err != nil {
		return nil, domain.NewRepositoryError(Backend, "list", "", err)
	}

	rows := make([]models.FormSummary, 0, len(docs))
	for i := range docs {
		rows = append(rows, docs[i].Summary())
	}
	return rows, nil
}

func (r *FormRepository) Get(ctx context.Context, name string) (*models.FormDetail, error) {
	if name == "" {
		return nil, domain.NewRepositoryError(Backend, "get", name,
			fmt.Errorf("%w: missing form name", domain.ErrValidation))
	}
	doc, err := r.client.Get(ctx, models.DocType, name)
	if err != nil {
		return nil, domain.NewRepositoryError(Backend, "get", name, err)
	}
	return doc.Detail(), nil
}

func (r *FormRepository) Upsert(ctx context.Context, input models.UpsertInput) (*models.UpsertResult, error) {
	if err := formsSvc.ValidateUpsert(&input); err != nil {
		return nil, domain.NewRepositoryError(Backend, "upsert", input.Name, err)
	}

	schema := models.SchemaField(input.SchemaJSON)

	if input.Name == "" {
		title := formsSvc.DefaultTitle(input.Title)
		slug := formsSvc.Slugify(title)
		if input.Slug != nil {
			slug = *input.Slug
		}
		return r.create(ctx, title, slug, schema, input.Changelog)
	}

	// always start from the stored document, never from a cached copy
	current, err := r.client.Get(ctx, models.DocType, input.Name)
	if err != nil {
		return nil, domain.NewRepositoryError(Backend, "upsert", input.Name, err)
	}

	// title and slug only change when the caller supplies them
	title := input.Title
	if strings.TrimSpace(title) == "" && current.Title != nil {
		title = *current.Title
	}
	title = formsSvc.DefaultTitle(title)
	patch := &models.FormPatch{
		Title:      &title,
		Slug:       input.Slug,
		SchemaJSON: &schema,
	}

	if r.schemaChanged(current, input.SchemaJSON) {
		next := latestVersion(current) + 1
		changelog := UpdateChangelog
		if input.Changelog != nil && *input.Changelog != "" {
			changelog = *input.Changelog
		}
		patch.CurrentVersion = &next
		patch.Versions = append(append([]models.FormVersionDoc{}, current.Versions...), models.FormVersionDoc{
			DocType:    models.VersionDocType,
			Version:    next,
			SchemaJSON: schema,
			Changelog:  &changelog,
		})
		r.logger.Debug("remote form schema changed", "name", input.Name, "version", next)
	}

	if _, err := r.client.Update(ctx, models.DocType, input.Name, patch); err != nil {
		return nil, domain.NewRepositoryError(Backend, "upsert", input.Name, err)
	}
	return &models.UpsertResult{Name: input.Name}, nil
}

func (r *FormRepository) create(ctx context.Context, title, slug string, schema models.SchemaField, changelog *string) (*models.UpsertResult, error) {
	status := models.StatusDraft
	version := 1
	note := InitialChangelog
	if changelog != nil && *changelog != "" {
		note = *changelog
	}

	doc := &models.FormDoc{
		Title:          &title,
		Slug:           &slug,
		Status:         &status,
		SchemaJSON:     &schema,
		CurrentVersion: &version,
		Versions: []models.FormVersionDoc{{
			DocType:    models.VersionDocType,
			Version:    version,
			SchemaJSON: schema,
			Changelog:  &note,
		}},
	}

	created, err := r.client.Insert(ctx, models.DocType, doc)
	if err != nil {
		return nil, domain.NewRepositoryError(Backend, "upsert", "", err)
	}
	r.logger.Debug("remote form created", "name", created.Name)
	return &models.UpsertResult{Name: created.Name}, nil
}

func (r *FormRepository) Remove(ctx context.Context, name string) error {
	if err := r.client.Delete(ctx, models.DocType, name); err != nil {
		return domain.NewRepositoryError(Backend, "remove", name, err)
	}
	return nil
}

func (r *FormRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx); err != nil {
		return domain.NewRepositoryError(Backend, "ping", "", err)
	}
	return nil
}

// schemaChanged compares canonical forms. A stored schema that does not parse
// counts as changed.
func (r *FormRepository) schemaChanged(current *models.FormDoc, next string) bool {
	stored := "{}"
	if current.SchemaJSON != nil {
		stored = string(*current.SchemaJSON)
	}
	same, err := formsSvc.SameSchema(stored, next)
	if err != nil {
		r.logger.Warn("stored schema not comparable", "name", current.Name, "error", err)
		return true
	}
	return !same
}

// latestVersion is the larger of current_version and the highest history entry
func latestVersion(doc *models.FormDoc) int {
	latest := doc.Version()
	for _, v := range doc.Versions {
		if v.Version > latest {
			latest = v.Version
		}
	}
	return latest
}
