// Package assemble merges generated artifacts into a project layout plus
// derived manifest content. Assembly is a pure function over its inputs;
// persisting the layout is the caller's concern.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"botforge/internal/generation"
	"botforge/internal/requirements"
)

// Artifact is one generated text payload plus the package names inferred
// from it.
type Artifact struct {
	Role                generation.Role
	Content             string
	DerivedDependencies []string
}

// ProjectLayout is the in-memory unit handed to the supervisor. Immutable
// after assembly.
type ProjectLayout struct {
	RootName    string
	BackendDir  string
	FrontendDir string
	HasFrontend bool
	// Files maps layout-relative paths to content.
	Files map[string]string
}

// dependencyPin maps a scan trigger to the pinned requirement line emitted
// when any trigger substring appears in the backend artifact.
type dependencyPin struct {
	name     string
	triggers []string
	pin      string
}

// baselinePins are always included regardless of scan results.
var baselinePins = []string{
	"fastapi>=0.100.0",
	"uvicorn>=0.23.0",
	"sqlalchemy>=2.0.0",
	"pydantic>=2.0.0",
	"python-dotenv>=1.0.0",
}

// scannedPins is the fixed set of known library name substrings searched for
// (case-insensitive) in the backend artifact.
var scannedPins = []dependencyPin{
	{name: "pandas", triggers: []string{"pandas"}, pin: "pandas>=2.0.0"},
	{name: "numpy", triggers: []string{"numpy"}, pin: "numpy>=1.24.0"},
	{name: "scikit-learn", triggers: []string{"scikit-learn", "sklearn"}, pin: "scikit-learn>=1.3.0"},
	{name: "matplotlib", triggers: []string{"matplotlib", "pyplot"}, pin: "matplotlib>=3.7.0"},
	{name: "requests", triggers: []string{"requests"}, pin: "requests>=2.31.0"},
}

// ScanDependencies returns the names of known libraries referenced by the
// artifact text, in deterministic order.
func ScanDependencies(content string) []string {
	lower := strings.ToLower(content)
	var found []string
	for _, dep := range scannedPins {
		for _, trig := range dep.triggers {
			if strings.Contains(lower, trig) {
				found = append(found, dep.name)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}

// backendManifest renders requirements.txt: the baseline framework pins plus
// one pinned line per scanned library.
func backendManifest(content string) string {
	var b strings.Builder
	for _, pin := range baselinePins {
		b.WriteString(pin)
		b.WriteByte('\n')
	}
	lower := strings.ToLower(content)
	for _, dep := range scannedPins {
		for _, trig := range dep.triggers {
			if strings.Contains(lower, trig) {
				b.WriteString(dep.pin)
				b.WriteByte('\n')
				break
			}
		}
	}
	return b.String()
}

// Assemble merges the backend artifact and, when present, the UI artifact
// into a directory layout. It never fails: empty artifacts still produce a
// minimal valid layout.
func Assemble(rootName string, backend Artifact, ui *Artifact, req requirements.Payload) *ProjectLayout {
	layout := &ProjectLayout{
		RootName:    rootName,
		BackendDir:  "backend",
		FrontendDir: "frontend",
		HasFrontend: ui != nil,
		Files:       make(map[string]string),
	}

	layout.Files["backend/app.py"] = backend.Content
	layout.Files["backend/requirements.txt"] = backendManifest(backend.Content)

	if ui != nil {
		layout.Files["frontend/App.jsx"] = ui.Content
		layout.Files["frontend/index.html"] = indexHTML
		layout.Files["frontend/package.json"] = packageJSON
		layout.Files["frontend/config.js"] = frontendConfigJS
	}

	layout.Files["README.md"] = renderReadme(rootName, ui != nil)

	return layout
}

// BuildArtifact wraps generated text with its derived dependency set.
func BuildArtifact(role generation.Role, content string) Artifact {
	return Artifact{
		Role:                role,
		Content:             content,
		DerivedDependencies: ScanDependencies(content),
	}
}

// WriteTo persists the layout under root, creating backend/ and frontend/
// directories as needed. Returns the absolute project directory.
func (l *ProjectLayout) WriteTo(root string) (string, error) {
	projectDir := filepath.Join(root, l.RootName)

	for rel, content := range l.Files {
		path := filepath.Join(projectDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}

	return projectDir, nil
}
