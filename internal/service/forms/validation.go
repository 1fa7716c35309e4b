package forms

import (
	"fmt"
	"regexp"

	"formbuilder/internal/config"
	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]*$`)

// MaxBytes limits the encoded size of a string or *string. validation.Length
// counts runes, which lets multi-byte content past a byte budget.
func MaxBytes(limit int) validation.Rule {
	return validation.By(func(value interface{}) error {
		var n int
		switch v := value.(type) {
		case string:
			n = len(v)
		case *string:
			if v == nil {
				return nil
			}
			n = len(*v)
		default:
			return fmt.Errorf("cannot measure %T", value)
		}
		if n > limit {
			return fmt.Errorf("must be at most %d bytes (got %d)", limit, n)
		}
		return nil
	})
}

// ValidateUpsert checks an UpsertInput before it reaches a backend.
// Returned errors wrap domain.ErrValidation.
func ValidateUpsert(input *models.UpsertInput) error {
	err := validation.ValidateStruct(input,
		validation.Field(&input.Title, validation.Length(0, config.MaxFormTitleLength)),
		validation.Field(&input.Slug,
			validation.Length(0, config.MaxSlugLength),
			validation.Match(slugPattern).Error("slug may only contain a-z, 0-9 and hyphens"),
		),
		validation.Field(&input.SchemaJSON,
			validation.Required,
			MaxBytes(config.MaxSchemaBytes),
			is.JSON,
		),
		validation.Field(&input.Changelog, validation.Length(0, config.MaxChangelogLength)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}
