package forms

import (
	"context"

	"formbuilder/internal/domain/models/forms"
)

// ResponseRepository stores responses collected for a form
type ResponseRepository interface {
	Add(ctx context.Context, formName string, rec forms.ResponseRecord) error
	List(ctx context.Context, formName string) ([]forms.ResponseRecord, error)
	Clear(ctx context.Context, formName string) error
}
