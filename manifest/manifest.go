// Package manifest handles mica.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a mica.toml project configuration.
type Manifest struct {
	Project Project    `toml:"project"`
	VM      VMConfig   `toml:"vm"`
	REPL    REPLConfig `toml:"repl"`

	// Dir is the directory containing the mica.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"`
}

// VMConfig tunes the interpreter.
type VMConfig struct {
	// GCStress forces a collection before every allocation.
	GCStress bool `toml:"gc-stress"`
	// GCThreshold is the initial collection threshold in bytes; zero keeps
	// the built-in default.
	GCThreshold int64 `toml:"gc-threshold"`
	// Trace logs every instruction as it executes.
	Trace bool `toml:"trace"`
}

// REPLConfig configures the interactive session.
type REPLConfig struct {
	History     bool   `toml:"history"`
	HistoryPath string `toml:"history-path"`
}

// Default returns the manifest used when no mica.toml exists.
func Default() *Manifest {
	return &Manifest{
		Project: Project{Entry: "main.mica"},
		REPL:    REPLConfig{History: true},
	}
}

// Load parses a mica.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "mica.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a mica.toml file, then loads
// and returns the manifest. Returns the defaults if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "mica.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the configured entry script.
func (m *Manifest) EntryPath() string {
	if m.Dir == "" {
		return m.Project.Entry
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

// HistoryDBPath returns where the REPL history database lives: the
// configured path, or .mica/history.db next to the manifest, or a
// per-user fallback when there is no project.
func (m *Manifest) HistoryDBPath() string {
	if m.REPL.HistoryPath != "" {
		if filepath.IsAbs(m.REPL.HistoryPath) || m.Dir == "" {
			return m.REPL.HistoryPath
		}
		return filepath.Join(m.Dir, m.REPL.HistoryPath)
	}
	if m.Dir != "" {
		return filepath.Join(m.Dir, ".mica", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mica-history.db")
	}
	return filepath.Join(home, ".mica", "history.db")
}
