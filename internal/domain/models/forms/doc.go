package forms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DocType is the doctype name used on the document store API
const DocType = "DL Form"

// DocTimeLayout is the document store's timestamp layout (server local time, microseconds)
const DocTimeLayout = "2006-01-02 15:04:05.000000"

// DocTime marshals as a document store timestamp string
type DocTime struct {
	time.Time
}

func NewDocTime(t time.Time) *DocTime {
	return &DocTime{Time: t}
}

func (t DocTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(DocTimeLayout))
}

func (t *DocTime) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{DocTimeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid document timestamp %q", s)
}

// EpochMillis converts a possibly-nil timestamp, falling back to now
func EpochMillis(t *DocTime) int64 {
	if t == nil || t.IsZero() {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}

// SchemaField holds a schema that may arrive as a JSON string or an inline JSON value.
// It always marshals as a string.
type SchemaField string

func (s SchemaField) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (s *SchemaField) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case string(trimmed) == "null":
		*s = "{}"
	case len(trimmed) > 0 && trimmed[0] == '"':
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return err
		}
		*s = SchemaField(str)
	default:
		*s = SchemaField(strings.TrimSpace(string(trimmed)))
	}
	return nil
}

// FormDoc is the wire representation of a form on the document store API.
// Pointer fields are omitted from partial updates.
type FormDoc struct {
	Name           string           `json:"name,omitempty"`
	Owner          *string          `json:"owner,omitempty"`
	Creation       *DocTime         `json:"creation,omitempty"`
	Modified       *DocTime         `json:"modified,omitempty"`
	Title          *string          `json:"title,omitempty"`
	Slug           *string          `json:"slug"`
	Status         *FormStatus      `json:"status,omitempty"`
	SchemaJSON     *SchemaField     `json:"schema_json,omitempty"`
	CurrentVersion *int             `json:"current_version,omitempty"`
	PublishedOn    *DocTime         `json:"published_on,omitempty"`
	Versions       []FormVersionDoc `json:"versions,omitempty"`
}

// FormPatch is a partial update body. Nil fields are left out of the JSON
// so the store keeps its values; FormDoc sends slug as null instead.
type FormPatch struct {
	Title          *string          `json:"title,omitempty"`
	Slug           *string          `json:"slug,omitempty"`
	SchemaJSON     *SchemaField     `json:"schema_json,omitempty"`
	CurrentVersion *int             `json:"current_version,omitempty"`
	Versions       []FormVersionDoc `json:"versions,omitempty"`
}

// FormVersionDoc is a row of the versions child table
type FormVersionDoc struct {
	DocType    string      `json:"doctype,omitempty"`
	Name       string      `json:"name,omitempty"`
	Parent     string      `json:"parent,omitempty"`
	ParentType string      `json:"parenttype,omitempty"`
	Idx        int         `json:"idx,omitempty"`
	Version    int         `json:"version"`
	SchemaJSON SchemaField `json:"schema_json"`
	Changelog  *string     `json:"changelog"`
}

// VersionDocType is the child doctype of the versions table
const VersionDocType = "DL Form Version"

// ToDoc converts a stored form to its wire form
func (f *Form) ToDoc() *FormDoc {
	title := f.Title
	status := f.Status
	schema := SchemaField(f.SchemaJSON)
	current := f.CurrentVersion
	doc := &FormDoc{
		Name:           f.Name,
		Owner:          f.Owner,
		Creation:       NewDocTime(f.CreatedAt),
		Modified:       NewDocTime(f.UpdatedAt),
		Title:          &title,
		Slug:           f.Slug,
		Status:         &status,
		SchemaJSON:     &schema,
		CurrentVersion: &current,
	}
	if f.PublishedOn != nil {
		doc.PublishedOn = NewDocTime(*f.PublishedOn)
	}
	for _, v := range f.Versions {
		doc.Versions = append(doc.Versions, FormVersionDoc{
			DocType:    VersionDocType,
			Name:       v.ID,
			Parent:     f.Name,
			ParentType: DocType,
			Idx:        v.Idx,
			Version:    v.Version,
			SchemaJSON: SchemaField(v.SchemaJSON),
			Changelog:  v.Changelog,
		})
	}
	return doc
}

// Summary projects a wire document onto a list row
func (d *FormDoc) Summary() FormSummary {
	s := FormSummary{
		Name:     d.Name,
		Creation: EpochMillis(d.Creation),
		Modified: EpochMillis(d.Modified),
	}
	if d.Title != nil {
		s.Title = *d.Title
	}
	if d.Status != nil && *d.Status != "" {
		status := string(*d.Status)
		s.Status = &status
	}
	return s
}

// Detail projects a wire document onto a detail view
func (d *FormDoc) Detail() *FormDetail {
	schema := "{}"
	if d.SchemaJSON != nil {
		schema = string(*d.SchemaJSON)
	}
	return &FormDetail{FormSummary: d.Summary(), SchemaJSON: schema}
}

// Version returns the current version number, 0 if absent
func (d *FormDoc) Version() int {
	if d.CurrentVersion == nil {
		return 0
	}
	return *d.CurrentVersion
}
