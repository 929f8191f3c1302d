// Package requirements defines the payload consumed by the pipeline
// coordinator. An external requirements-analysis collaborator produces it;
// this package only inspects it.
package requirements

import (
	"encoding/json"
	"strings"
)

// Payload is either a flat key→values structure, free text, or both.
type Payload struct {
	Fields   map[string][]string `json:"fields,omitempty"`
	FreeText string              `json:"free_text,omitempty"`
}

// IsEmpty reports whether the payload carries no information at all.
// An empty payload is still a valid generation request.
func (p Payload) IsEmpty() bool {
	return len(p.Fields) == 0 && strings.TrimSpace(p.FreeText) == ""
}

// Render formats the payload for inclusion in a generation prompt:
// structured fields as indented JSON, otherwise the free text verbatim.
func (p Payload) Render() string {
	if len(p.Fields) > 0 {
		data, err := json.MarshalIndent(p.Fields, "", "  ")
		if err == nil {
			if p.FreeText != "" {
				return string(data) + "\n" + p.FreeText
			}
			return string(data)
		}
	}
	if p.FreeText != "" {
		return "User requirements: " + p.FreeText
	}
	return "No specific requirements were provided. Build a minimal generic application."
}

// uiKeywords is the fixed vocabulary of UI-indicating terms. The threshold is
// a single indicator anywhere in the payload; see uiFieldNames for key names
// that match on their own. Bare "ui" and "interface" are deliberately absent:
// as substrings they fire on phrases like "chat interface" or "quiz" that say
// nothing about wanting a frontend.
var uiKeywords = []string{
	"frontend", "react", "vue", "angular",
	"web page", "website", "responsive", "user interface",
	"dashboard", "display", "visualization",
}

// uiFieldNames are requirement keys that indicate a UI regardless of value.
var uiFieldNames = map[string]bool{
	"ui":                 true,
	"ui_components":      true,
	"design":             true,
	"design_preferences": true,
	"interface":          true,
	"frontend":           true,
	"display":            true,
}

// NeedsUI decides whether the payload calls for a generated user interface.
// The membership test is case-insensitive and runs over requirement keys,
// requirement values, and the free text.
func NeedsUI(p Payload) bool {
	for key := range p.Fields {
		if uiFieldNames[strings.ToLower(key)] {
			return true
		}
	}

	var values []string
	for _, vs := range p.Fields {
		for _, v := range vs {
			values = append(values, strings.ToLower(v))
		}
	}
	joined := strings.Join(values, " ")
	for _, kw := range uiKeywords {
		if strings.Contains(joined, kw) {
			return true
		}
	}

	text := strings.ToLower(p.FreeText)
	if text != "" {
		for _, kw := range uiKeywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}

	return false
}
