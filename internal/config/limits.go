package config

import "time"

const (
	// MaxFormTitleLength is the maximum length for form titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxFormTitleLength = 255

	// MaxSlugLength caps slugs derived from titles.
	MaxSlugLength = 64

	// MaxChangelogLength is the maximum length for a version changelog note.
	MaxChangelogLength = 140

	// MaxSchemaBytes bounds a single serialized schema.
	MaxSchemaBytes = 10 << 20

	// MaxRequestBodyBytes caps request bodies on the document store. A create
	// may carry the schema plus a version copy, both string-escaped.
	MaxRequestBodyBytes = 32 << 20

	// DefaultFormTitle is used whenever a title is blank.
	DefaultFormTitle = "Untitled Form"
)

const (
	// DefaultAutosaveDebounce is the trailing-edge debounce before an autosave fires.
	DefaultAutosaveDebounce = 500 * time.Millisecond

	// DefaultSavedBadge is how long the "saved" status stays visible after an autosave.
	DefaultSavedBadge = 3000 * time.Millisecond

	// DefaultResetBadge is how long the "saved" status stays visible after a reset.
	DefaultResetBadge = 1500 * time.Millisecond
)
