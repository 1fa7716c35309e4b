package forms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"formbuilder/internal/config"
	"formbuilder/internal/domain"

	"github.com/microcosm-cc/bluemonday"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	slugInvalid   = regexp.MustCompile(`[^a-z0-9-]`)
	titlePolicy   = bluemonday.StrictPolicy()
)

// Slugify lowercases the title, turns whitespace runs into hyphens, strips
// everything outside [a-z0-9-] and caps the result at MaxSlugLength.
func Slugify(title string) string {
	s := strings.TrimSpace(strings.ToLower(title))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = slugInvalid.ReplaceAllString(s, "")
	if len(s) > config.MaxSlugLength {
		s = s[:config.MaxSlugLength]
	}
	return s
}

// DefaultTitle returns title, or the placeholder when it is blank
func DefaultTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return config.DefaultFormTitle
	}
	return title
}

// TitleOf extracts the top-level title from a survey schema. Localized
// titles ({"default": "...", "de": "..."}) resolve to "default". Markup is
// stripped. Unparseable or untitled schemas get the placeholder.
func TitleOf(schemaJSON string) string {
	var head struct {
		Title json.RawMessage `json:"title"`
	}
	if err := json.Unmarshal([]byte(schemaJSON), &head); err != nil || len(head.Title) == 0 {
		return config.DefaultFormTitle
	}

	var title string
	if err := json.Unmarshal(head.Title, &title); err != nil {
		var localized map[string]string
		if err := json.Unmarshal(head.Title, &localized); err != nil {
			return config.DefaultFormTitle
		}
		title = localized["default"]
	}

	title = strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(title)))
	return DefaultTitle(title)
}

// Canonicalize reparses and reserializes a schema so that formatting and
// object key order do not affect comparisons. Empty input canonicalizes to {}.
func Canonicalize(schemaJSON string) (string, error) {
	if strings.TrimSpace(schemaJSON) == "" {
		return "{}", nil
	}

	dec := json.NewDecoder(strings.NewReader(schemaJSON))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: schema is not valid JSON: %v", domain.ErrValidation, err)
	}
	if dec.More() {
		return "", fmt.Errorf("%w: schema has trailing data", domain.ErrValidation)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// SameSchema reports whether two schemas are equal after canonicalization
func SameSchema(a, b string) (bool, error) {
	ca, err := Canonicalize(a)
	if err != nil {
		return false, err
	}
	cb, err := Canonicalize(b)
	if err != nil {
		return false, err
	}
	return ca == cb, nil
}
