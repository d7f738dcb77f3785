// Package manifest handles pl0.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/chazu/pl0c/compiler"
)

// FileName is the manifest file looked up in project directories.
const FileName = "pl0.toml"

// Output formats.
const (
	FormatListing = "listing" // <base>.tac.txt
	FormatRecords = "records" // <base>.tac
	FormatTokens  = "tokens"  // <base>.tokens.json
	FormatTree    = "tree"    // <base>.ast.json
	FormatSymbols = "symbols" // <base>.symbols.json
	FormatCBOR    = "cbor"    // <base>.tac.cbor
)

// Manifest represents a pl0.toml project configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	Source   Source         `toml:"source"`
	Compiler CompilerConfig `toml:"compiler"`
	Output   Output         `toml:"output"`
	Build    BuildConfig    `toml:"build"`
	Cache    CacheConfig    `toml:"cache"`

	// Dir is the directory containing the pl0.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs []string `toml:"dirs"`
	Ext  string   `toml:"ext"`
}

// CompilerConfig maps onto compiler.Options.
type CompilerConfig struct {
	TolerantLexer bool   `toml:"tolerant-lexer"`
	MainLabel     string `toml:"main-label"`
}

// Output configures build artifacts.
type Output struct {
	Dir     string   `toml:"dir"`
	Formats []string `toml:"formats"`
}

// BuildConfig configures the build driver.
type BuildConfig struct {
	Jobs int `toml:"jobs"`
}

// CacheConfig configures the artifact cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load parses and validates a pl0.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := validateRaw(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
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
	return &m, nil
}

// Default returns the manifest used for a directory without a pl0.toml.
func Default(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m := &Manifest{Dir: abs}
	m.Project.Name = filepath.Base(abs)
	m.Source.Dirs = []string{"."}
	m.applyDefaults()
	return m, nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Source.Ext == "" {
		m.Source.Ext = ".pl0"
	}
	if m.Compiler.MainLabel == "" {
		m.Compiler.MainLabel = compiler.DefaultMainLabel
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "out"
	}
	if len(m.Output.Formats) == 0 {
		m.Output.Formats = []string{FormatListing, FormatRecords}
	}
	if m.Build.Jobs <= 0 {
		m.Build.Jobs = runtime.GOMAXPROCS(0)
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".pl0c", "cache.db")
	}
}

// FindAndLoad walks up from startDir to find a pl0.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
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

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// OutputDir returns the absolute output directory.
func (m *Manifest) OutputDir() string {
	return m.resolve(m.Output.Dir)
}

// CachePath returns the absolute path of the artifact cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// HasFormat reports whether the output format is enabled.
func (m *Manifest) HasFormat(format string) bool {
	for _, f := range m.Output.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// CompilerOptions returns the options every unit of the project compiles with.
func (m *Manifest) CompilerOptions() compiler.Options {
	return compiler.Options{
		TolerantLexer: m.Compiler.TolerantLexer,
		MainLabel:     m.Compiler.MainLabel,
	}
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
