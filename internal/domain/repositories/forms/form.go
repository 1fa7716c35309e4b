package forms

import (
	"context"

	"formbuilder/internal/domain/models/forms"
)

// FormRepository is the uniform CRUD contract implemented by every
// persistence backend. All errors are *domain.RepositoryError.
type FormRepository interface {
	// List returns summaries ordered by modified descending
	List(ctx context.Context) ([]forms.FormSummary, error)

	// Get returns the full form; wraps domain.ErrNotFound when missing
	Get(ctx context.Context, name string) (*forms.FormDetail, error)

	// Upsert creates the form when input.Name is empty, updates it otherwise
	Upsert(ctx context.Context, input forms.UpsertInput) (*forms.UpsertResult, error)

	// Remove deletes the form
	Remove(ctx context.Context, name string) error

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
}
