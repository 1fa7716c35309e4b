// Package editorconfig loads the form editor configuration (custom question
// types, custom question properties and UI strings) from embedded YAML.
package editorconfig

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// DefaultLocale is the fallback language for every lookup
const DefaultLocale = "en"

// Registry holds the editor configuration loaded at startup
type Registry struct {
	questions questionsFile
	locales   map[string]map[string]string
	mu        sync.RWMutex
}

// NewRegistry creates a registry from the embedded YAML files
func NewRegistry() (*Registry, error) {
	r := &Registry{}

	if err := r.loadFile("config/questions.yaml", &r.questions); err != nil {
		return nil, fmt.Errorf("failed to load question types: %w", err)
	}
	if err := r.loadFile("config/locales.yaml", &r.locales); err != nil {
		return nil, fmt.Errorf("failed to load locales: %w", err)
	}
	if _, ok := r.locales[DefaultLocale]; !ok {
		return nil, fmt.Errorf("locales: missing %s", DefaultLocale)
	}

	return r, nil
}

func (r *Registry) loadFile(filename string, dest any) error {
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}
	return nil
}

// Config returns the editor configuration for locale. Unknown locales use
// DefaultLocale strings.
func (r *Registry) Config(locale string) Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.locales[locale]; !ok {
		locale = DefaultLocale
	}
	builtin := make(map[string]struct{}, len(r.questions.Builtin))
	for _, t := range r.questions.Builtin {
		builtin[t] = struct{}{}
	}
	return Config{
		Locale:             locale,
		Builtin:            builtin,
		CustomTypes:        append([]QuestionType(nil), r.questions.CustomTypes...),
		QuestionProperties: append([]Property(nil), r.questions.QuestionProperties...),
		translate:          r.Translate,
	}
}

// Translate looks key up in locale, then in DefaultLocale. A missing key
// returns the key itself.
func (r *Registry) Translate(locale, key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.locales[locale][key]; ok && s != "" {
		return s
	}
	if s, ok := r.locales[DefaultLocale][key]; ok && s != "" {
		return s
	}
	return key
}

// Locales lists the configured languages, sorted
func (r *Registry) Locales() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.locales))
	for l := range r.locales {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Config is the editor configuration handed to an editor at construction
type Config struct {
	Locale             string
	Builtin            map[string]struct{}
	CustomTypes        []QuestionType
	QuestionProperties []Property

	translate func(locale, key string) string
}

// KnownType reports whether questions of type t can be edited
func (c Config) KnownType(t string) bool {
	if _, ok := c.Builtin[t]; ok {
		return true
	}
	_, ok := c.CustomType(t)
	return ok
}

// CustomType returns the custom question type named t
func (c Config) CustomType(t string) (*QuestionType, bool) {
	for i := range c.CustomTypes {
		if c.CustomTypes[i].Name == t {
			return &c.CustomTypes[i], true
		}
	}
	return nil, false
}

// Property returns the custom question property called name
func (c Config) Property(name string) (*Property, bool) {
	for i := range c.QuestionProperties {
		if c.QuestionProperties[i].Name == name {
			return &c.QuestionProperties[i], true
		}
	}
	return nil, false
}

// T translates key in the config's locale
func (c Config) T(key string) string {
	if c.translate == nil {
		return key
	}
	return c.translate(c.Locale, key)
}

// TypeLabel is the palette label for a question type
func (c Config) TypeLabel(t string) string {
	if t == "" {
		return ""
	}
	if label := c.T("qt." + t); label != "qt."+t {
		return label
	}
	if qt, ok := c.CustomType(t); ok && qt.DisplayName != "" {
		return qt.DisplayName
	}
	return strings.ToUpper(t[:1]) + t[1:]
}
