package requirements

import (
	"strings"
	"testing"
)

func TestNeedsUIFieldNameAloneTriggers(t *testing.T) {
	p := Payload{Fields: map[string][]string{
		"ui_components": {"table"},
	}}
	if !NeedsUI(p) {
		t.Fatalf("expected ui field name to trigger UI generation")
	}
}

func TestNeedsUIKeywordInValues(t *testing.T) {
	p := Payload{Fields: map[string][]string{
		"functionalities": {"interactive dashboard", "csv export"},
	}}
	if !NeedsUI(p) {
		t.Fatalf("expected keyword in field value to trigger UI generation")
	}
}

func TestNeedsUIKeywordInFreeText(t *testing.T) {
	p := Payload{FreeText: "Build me a responsive React app for tracking workouts"}
	if !NeedsUI(p) {
		t.Fatalf("expected free-text keywords to trigger UI generation")
	}
}

func TestNeedsUICaseInsensitive(t *testing.T) {
	p := Payload{FreeText: "I want a WEBSITE with a Dashboard"}
	if !NeedsUI(p) {
		t.Fatalf("expected case-insensitive keyword match")
	}
}

func TestNeedsUIChatInterfaceIsBackendOnly(t *testing.T) {
	// "chat interface" contains "interface" but does not ask for a frontend.
	p := Payload{Fields: map[string][]string{
		"functionalities": {"chat interface"},
	}}
	if NeedsUI(p) {
		t.Fatalf("chat interface alone must not trigger UI generation")
	}
}

func TestNeedsUIBackendOnlyPayload(t *testing.T) {
	p := Payload{Fields: map[string][]string{
		"functionalities": {"rest api", "data processing"},
		"database":        {"sqlite"},
	}}
	if NeedsUI(p) {
		t.Fatalf("backend-only payload must not trigger UI generation")
	}
}

func TestRenderStructuredFields(t *testing.T) {
	p := Payload{Fields: map[string][]string{
		"functionalities": {"quiz"},
	}}
	out := p.Render()
	if !strings.Contains(out, `"functionalities"`) || !strings.Contains(out, `"quiz"`) {
		t.Fatalf("rendered fields missing content: %q", out)
	}
}

func TestRenderFreeTextOnly(t *testing.T) {
	p := Payload{FreeText: "a todo list service"}
	out := p.Render()
	if out != "User requirements: a todo list service" {
		t.Fatalf("unexpected render: %q", out)
	}
}

func TestRenderEmptyPayloadFallsBack(t *testing.T) {
	var p Payload
	if !p.IsEmpty() {
		t.Fatalf("zero payload should report empty")
	}
	out := p.Render()
	if !strings.Contains(out, "minimal generic application") {
		t.Fatalf("empty payload should render generic instructions, got %q", out)
	}
}
