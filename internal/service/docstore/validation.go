package docstore

import (
	"fmt"

	"formbuilder/internal/config"
	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
	docstoreSvc "formbuilder/internal/domain/services/docstore"
	formsSvc "formbuilder/internal/service/forms"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var statusRule = validation.By(func(value interface{}) error {
	var s models.FormStatus
	switch v := value.(type) {
	case models.FormStatus:
		s = v
	case *models.FormStatus:
		if v == nil {
			return nil
		}
		s = *v
	}
	if s != "" && !s.Valid() {
		return fmt.Errorf("must be one of Draft, Published, Archived")
	}
	return nil
})

var schemaRules = []validation.Rule{
	formsSvc.MaxBytes(config.MaxSchemaBytes),
	is.JSON,
}

func validateCreateRequest(req *docstoreSvc.CreateFormRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Length(0, 140)),
		validation.Field(&req.Title, validation.Length(0, config.MaxFormTitleLength)),
		validation.Field(&req.Slug, validation.Length(0, config.MaxSlugLength)),
		validation.Field(&req.Status, statusRule),
		validation.Field(&req.SchemaJSON, schemaRules...),
		validation.Field(&req.CurrentVersion, validation.Min(1)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return validateVersions(req.Versions)
}

func validateUpdateRequest(req *docstoreSvc.UpdateFormRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Length(0, config.MaxFormTitleLength)),
		validation.Field(&req.Status, statusRule),
		validation.Field(&req.SchemaJSON, schemaRules...),
		validation.Field(&req.CurrentVersion, validation.Min(1)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if req.Slug.Value != nil {
		if err := validation.Validate(*req.Slug.Value, validation.Length(0, config.MaxSlugLength)); err != nil {
			return fmt.Errorf("%w: slug: %v", domain.ErrValidation, err)
		}
	}
	return validateVersions(req.Versions)
}

// validateVersions checks numbers are positive and unique
func validateVersions(versions []docstoreSvc.VersionInput) error {
	seen := make(map[int]bool, len(versions))
	for _, v := range versions {
		if v.Version < 1 {
			return fmt.Errorf("%w: version numbers start at 1", domain.ErrValidation)
		}
		if seen[v.Version] {
			return fmt.Errorf("%w: duplicate version %d", domain.ErrValidation, v.Version)
		}
		seen[v.Version] = true
		if err := validation.Validate(v.SchemaJSON, schemaRules...); err != nil {
			return fmt.Errorf("%w: version %d schema: %v", domain.ErrValidation, v.Version, err)
		}
		if err := validation.Validate(v.Changelog, validation.Length(0, config.MaxChangelogLength)); err != nil {
			return fmt.Errorf("%w: version %d changelog: %v", domain.ErrValidation, v.Version, err)
		}
	}
	return nil
}
