package forms

import (
	"context"

	"formbuilder/internal/domain/models/forms"
)

// ListOptions controls document store list queries
type ListOptions struct {
	Ascending bool // default: modified descending
	Limit     int  // 0 = no limit
}

// FormStore defines data access for the server-side document store
type FormStore interface {
	// Create inserts the form and its initial versions
	Create(ctx context.Context, form *forms.Form) error

	// GetByName retrieves a form with its full version history
	GetByName(ctx context.Context, name string) (*forms.Form, error)

	// List retrieves form metadata without versions
	List(ctx context.Context, opts ListOptions) ([]forms.Form, error)

	// Update writes the parent record fields
	Update(ctx context.Context, form *forms.Form) error

	// AppendVersions inserts new version rows for an existing form
	AppendVersions(ctx context.Context, name string, versions []forms.FormVersion) error

	// Delete removes the form and its versions
	Delete(ctx context.Context, name string) error

	// Ping checks the database is reachable
	Ping(ctx context.Context) error
}
