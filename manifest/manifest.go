// Package manifest handles tape.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/tape/compiler"
	"github.com/chazu/tape/vm"
)

// FileName is the name of the configuration file.
const FileName = "tape.toml"

// Manifest represents a tape.toml configuration.
type Manifest struct {
	Run    RunConfig    `toml:"run"`
	REPL   REPLConfig   `toml:"repl"`
	Server ServerConfig `toml:"server"`

	// Dir is the directory containing the tape.toml file (set at load time).
	Dir string `toml:"-"`
}

// RunConfig configures the interpreter.
type RunConfig struct {
	Syntax        string `toml:"syntax"`
	Mode          string `toml:"mode"`
	MaxIterations int    `toml:"max-iterations"`
	Trace         bool   `toml:"trace"`
}

// REPLConfig configures the interactive shell.
type REPLConfig struct {
	Prompt string `toml:"prompt"`
	Store  string `toml:"store"`
}

// ServerConfig configures the evaluation server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no tape.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses a tape.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if _, err := m.InterpreterConfig(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a tape.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = "bf> "
	}
	if m.REPL.Store == "" {
		m.REPL.Store = filepath.Join(".tape", "snapshots.db")
	}
	if m.Server.Addr == "" {
		m.Server.Addr = ":4567"
	}
}

// InterpreterConfig converts the [run] section to a vm.Config.
func (m *Manifest) InterpreterConfig() (vm.Config, error) {
	syntax, err := compiler.ParseSyntax(m.Run.Syntax)
	if err != nil {
		return vm.Config{}, err
	}
	mode, err := vm.ParseMode(m.Run.Mode)
	if err != nil {
		return vm.Config{}, err
	}
	return vm.Config{
		Syntax:        syntax,
		Mode:          mode,
		MaxIterations: m.Run.MaxIterations,
		Trace:         m.Run.Trace,
	}, nil
}

// StorePath returns the snapshot database path. Relative paths are taken
// from the manifest directory, or from the home directory when there is
// no manifest.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.REPL.Store) {
		return m.REPL.Store
	}
	base := m.Dir
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return m.REPL.Store
		}
		base = home
	}
	return filepath.Join(base, m.REPL.Store)
}
