package forms

import "time"

// FormStatus is the publication state of a form. Remote backend only.
type FormStatus string

const (
	StatusDraft     FormStatus = "Draft"
	StatusPublished FormStatus = "Published"
	StatusArchived  FormStatus = "Archived"
)

// Valid reports whether s is one of the known statuses
func (s FormStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Form is a stored form definition with its version history
type Form struct {
	Name           string        `json:"name" db:"name"`
	Owner          *string       `json:"owner" db:"owner"`
	Title          string        `json:"title" db:"title"`
	Slug           *string       `json:"slug" db:"slug"`
	Status         FormStatus    `json:"status" db:"status"`
	SchemaJSON     string        `json:"schema_json" db:"schema_json"`
	CurrentVersion int           `json:"current_version" db:"current_version"`
	PublishedOn    *time.Time    `json:"published_on" db:"published_on"`
	Versions       []FormVersion `json:"versions,omitempty"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// FormVersion is one immutable schema snapshot
type FormVersion struct {
	ID         string    `json:"id" db:"id"`
	FormName   string    `json:"form_name" db:"form_name"`
	Idx        int       `json:"idx" db:"idx"`
	Version    int       `json:"version" db:"version"`
	SchemaJSON string    `json:"schema_json" db:"schema_json"`
	Changelog  *string   `json:"changelog" db:"changelog"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// MaxVersion returns the highest version number in the history, 0 when empty
func (f *Form) MaxVersion() int {
	max := 0
	for _, v := range f.Versions {
		if v.Version > max {
			max = v.Version
		}
	}
	return max
}

// FormSummary is a list row. Timestamps are epoch milliseconds.
type FormSummary struct {
	Name     string  `json:"name"`
	Title    string  `json:"title"`
	Status   *string `json:"status"` // nil for the local backend
	Creation int64   `json:"creation"`
	Modified int64   `json:"modified"`
}

// FormDetail is a single form including its current schema
type FormDetail struct {
	FormSummary
	SchemaJSON string `json:"schema_json"`
}

// UpsertInput creates a form when Name is empty and updates it otherwise
type UpsertInput struct {
	Name       string  `json:"name,omitempty"`
	Title      string  `json:"title"`
	Slug       *string `json:"slug,omitempty"`
	SchemaJSON string  `json:"schema_json"`
	Changelog  *string `json:"changelog,omitempty"`
}

// UpsertResult carries the identifier assigned (or kept) by the backend
type UpsertResult struct {
	Name string `json:"name"`
}
