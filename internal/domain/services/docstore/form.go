package docstore

import (
	"context"
	"time"

	models "formbuilder/internal/domain/models/forms"
	formsRepo "formbuilder/internal/domain/repositories/forms"
)

// OptionalSlug tracks tri-state semantics for slug updates.
// Transport-agnostic: the handler maps it from httputil.OptionalString.
//   - Present=false: leave unchanged
//   - Present=true, Value=nil: clear
//   - Present=true, Value=&"x": set
type OptionalSlug struct {
	Present bool
	Value   *string
}

// OptionalTime is the same tri-state for timestamps
type OptionalTime struct {
	Present bool
	Value   *time.Time
}

// VersionInput is one version entry sent by a client
type VersionInput struct {
	Version    int
	SchemaJSON string
	Changelog  *string
}

// CreateFormRequest creates a form. Zero values get defaults.
type CreateFormRequest struct {
	Name           string
	Owner          string
	Title          string
	Slug           *string
	Status         models.FormStatus
	SchemaJSON     *string
	CurrentVersion *int
	PublishedOn    *time.Time
	Versions       []VersionInput
}

// UpdateFormRequest is a partial update. Nil fields are left unchanged.
// Versions may echo the whole history; only entries above the stored
// maximum are appended.
type UpdateFormRequest struct {
	Title          *string
	Slug           OptionalSlug
	Status         *models.FormStatus
	SchemaJSON     *string
	CurrentVersion *int
	PublishedOn    OptionalTime
	Versions       []VersionInput
}

// FormService is the document store's business logic
type FormService interface {
	CreateForm(ctx context.Context, req *CreateFormRequest) (*models.Form, error)
	GetForm(ctx context.Context, name string) (*models.Form, error)
	ListForms(ctx context.Context, opts formsRepo.ListOptions) ([]models.Form, error)
	UpdateForm(ctx context.Context, name string, req *UpdateFormRequest) (*models.Form, error)
	DeleteForm(ctx context.Context, name string) error

	// Ping checks the store is reachable
	Ping(ctx context.Context) error
}
