package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a mica.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "test-app"
version = "0.1.0"
entry = "app.mica"

[vm]
gc-stress = true
gc-threshold = 4096
trace = true

[repl]
history = false
history-path = "hist.db"
`
	if err := os.WriteFile(filepath.Join(dir, "mica.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if m.Project.Entry != "app.mica" {
		t.Errorf("project entry = %q, want app.mica", m.Project.Entry)
	}
	if !m.VM.GCStress {
		t.Error("vm gc-stress = false, want true")
	}
	if m.VM.GCThreshold != 4096 {
		t.Errorf("vm gc-threshold = %d, want 4096", m.VM.GCThreshold)
	}
	if !m.VM.Trace {
		t.Error("vm trace = false, want true")
	}
	if m.REPL.History {
		t.Error("repl history = true, want false")
	}
	if m.REPL.HistoryPath != "hist.db" {
		t.Errorf("repl history-path = %q, want hist.db", m.REPL.HistoryPath)
	}
	if m.Dir == "" {
		t.Error("Dir not set after Load")
	}
}

func TestLoadManifestMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Error("expected error loading from directory without mica.toml")
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mica.toml"), []byte("[project\nname="), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	content := "[project]\nname = \"walker\"\n"
	if err := os.WriteFile(filepath.Join(root, "mica.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m.Project.Name != "walker" {
		t.Errorf("project name = %q, want walker", m.Project.Name)
	}
}

func TestFindAndLoadDefaults(t *testing.T) {
	// A directory tree with no manifest anywhere above it is unlikely in a
	// real checkout, so exercise Default directly and via a load failure.
	m := Default()
	if m.Project.Entry != "main.mica" {
		t.Errorf("default entry = %q, want main.mica", m.Project.Entry)
	}
	if !m.REPL.History {
		t.Error("default repl history = false, want true")
	}
}

func TestHistoryDBPath(t *testing.T) {
	m := Default()
	m.Dir = "/proj"
	if got, want := m.HistoryDBPath(), filepath.Join("/proj", ".mica", "history.db"); got != want {
		t.Errorf("HistoryDBPath = %q, want %q", got, want)
	}

	m.REPL.HistoryPath = "custom.db"
	if got, want := m.HistoryDBPath(), filepath.Join("/proj", "custom.db"); got != want {
		t.Errorf("HistoryDBPath = %q, want %q", got, want)
	}

	m.REPL.HistoryPath = "/abs/custom.db"
	if got := m.HistoryDBPath(); got != "/abs/custom.db" {
		t.Errorf("HistoryDBPath = %q, want /abs/custom.db", got)
	}
}
