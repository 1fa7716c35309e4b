package schema

import (
	"fmt"

	"formbuilder/internal/editorconfig"
)

// Issue is one lint finding
type Issue struct {
	Question string `json:"question,omitempty"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	if i.Question == "" {
		return i.Message
	}
	return i.Question + ": " + i.Message
}

// Lint checks a survey against the editor configuration: unknown question
// types, duplicate question names and dreamlinkId values outside the
// configured choices. Missing dreamlinkIds are only reported when
// requireIDs is set.
func Lint(s *Survey, cfg editorconfig.Config, requireIDs bool) []Issue {
	var issues []Issue

	for _, t := range s.UnknownTypes(cfg) {
		issues = append(issues, Issue{Message: fmt.Sprintf("unknown question type %q", t)})
	}

	prop, hasProp := cfg.Property("dreamlinkId")
	names := map[string]int{}
	for _, q := range s.Questions() {
		names[q.Name]++
		if names[q.Name] == 2 {
			issues = append(issues, Issue{Question: q.Name, Message: "duplicate question name"})
		}
		if q.DreamlinkID != "" && hasProp && !prop.AllowsValue(q.DreamlinkID) {
			issues = append(issues, Issue{Question: q.Name, Message: fmt.Sprintf("dreamlinkId %q is not a configured choice", q.DreamlinkID)})
		}
	}

	if requireIDs {
		if ok, missing := s.ValidateDreamlinkIDs(); !ok {
			for _, q := range missing {
				issues = append(issues, Issue{Question: q.Name, Message: "missing dreamlinkId"})
			}
		}
	}
	return issues
}
