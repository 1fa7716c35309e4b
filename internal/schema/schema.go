// Package schema reads survey schemas: pages, nested panels and the
// questions inside them.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"formbuilder/internal/domain"
	"formbuilder/internal/editorconfig"
)

const (
	typePanel        = "panel"
	typePanelDynamic = "paneldynamic"
)

// Element is a question or panel as it appears in the schema
type Element struct {
	Type             string          `json:"type"`
	Name             string          `json:"name"`
	Title            json.RawMessage `json:"title,omitempty"`
	DreamlinkID      string          `json:"dreamlinkId,omitempty"`
	Elements         []Element       `json:"elements,omitempty"`
	TemplateElements []Element       `json:"templateElements,omitempty"`
}

// Page is one page of a survey
type Page struct {
	Name     string    `json:"name"`
	Elements []Element `json:"elements"`
}

// Survey is the parsed schema. Surveys without pages keep their questions in
// Elements.
type Survey struct {
	Title    json.RawMessage `json:"title,omitempty"`
	Pages    []Page          `json:"pages"`
	Elements []Element       `json:"elements"`
}

// Question is a flattened view of one question
type Question struct {
	Name        string
	Title       string
	Type        string
	DreamlinkID string
	Page        string
}

// Parse decodes a schema. Invalid JSON wraps domain.ErrValidation.
func Parse(schemaJSON string) (*Survey, error) {
	var s Survey
	if err := json.Unmarshal([]byte(schemaJSON), &s); err != nil {
		return nil, fmt.Errorf("%w: schema: %v", domain.ErrValidation, err)
	}
	return &s, nil
}

// Questions returns every question in page order. Panels are walked but not
// returned; dynamic panels are returned as one question.
func (s *Survey) Questions() []Question {
	var out []Question
	var walk func(page string, els []Element)
	walk = func(page string, els []Element) {
		for _, el := range els {
			if el.Type == typePanel {
				walk(page, el.Elements)
				continue
			}
			out = append(out, Question{
				Name:        el.Name,
				Title:       textOr(el.Title, el.Name),
				Type:        el.Type,
				DreamlinkID: el.DreamlinkID,
				Page:        page,
			})
		}
	}

	walk("", s.Elements)
	for _, p := range s.Pages {
		walk(p.Name, p.Elements)
	}
	return out
}

// FindByDreamlinkID returns the first question carrying id
func (s *Survey) FindByDreamlinkID(id string) (Question, bool) {
	for _, q := range s.Questions() {
		if q.DreamlinkID == id {
			return q, true
		}
	}
	return Question{}, false
}

// GroupByDreamlinkID groups questions by id. Questions without one are left out.
func (s *Survey) GroupByDreamlinkID() map[string][]Question {
	groups := make(map[string][]Question)
	for _, q := range s.Questions() {
		if q.DreamlinkID != "" {
			groups[q.DreamlinkID] = append(groups[q.DreamlinkID], q)
		}
	}
	return groups
}

// ValidateDreamlinkIDs reports whether every question has an id and lists
// the ones that do not.
func (s *Survey) ValidateDreamlinkIDs() (bool, []Question) {
	var missing []Question
	for _, q := range s.Questions() {
		if q.DreamlinkID == "" {
			missing = append(missing, q)
		}
	}
	return len(missing) == 0, missing
}

// UnknownTypes lists element types cfg cannot edit, sorted and deduplicated
func (s *Survey) UnknownTypes(cfg editorconfig.Config) []string {
	seen := map[string]struct{}{}
	var walk func(els []Element)
	walk = func(els []Element) {
		for _, el := range els {
			if el.Type != "" && !cfg.KnownType(el.Type) {
				seen[el.Type] = struct{}{}
			}
			walk(el.Elements)
			walk(el.TemplateElements)
		}
	}
	walk(s.Elements)
	for _, p := range s.Pages {
		walk(p.Elements)
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// textOr returns a plain or localized ("default") string, or fallback
func textOr(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return fallback
		}
		return s
	}
	var localized map[string]string
	if err := json.Unmarshal(raw, &localized); err == nil && localized["default"] != "" {
		return localized["default"]
	}
	return fallback
}
