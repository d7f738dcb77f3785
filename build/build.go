// Package build compiles every source file of a project in parallel and
// writes the configured output formats.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chazu/pl0c/compiler"
	"github.com/chazu/pl0c/manifest"
	"github.com/chazu/pl0c/store"
	"github.com/chazu/pl0c/tac"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("pl0c.build")

// Option configures a build.
type Option func(*config)

type config struct {
	jobs  int
	store *store.Store
	files []string
}

// WithJobs overrides the manifest's parallelism.
func WithJobs(n int) Option {
	return func(c *config) { c.jobs = n }
}

// WithStore uses an already open artifact cache instead of the one named in
// the manifest.
func WithStore(s *store.Store) Option {
	return func(c *config) { c.store = s }
}

// WithFiles builds the given source files instead of discovering them.
func WithFiles(paths ...string) Option {
	return func(c *config) { c.files = append(c.files, paths...) }
}

// UnitReport describes the build of one source file.
type UnitReport struct {
	ID          string
	Source      string
	Outputs     []string
	Bytes       int64
	Cached      bool
	Duration    time.Duration
	Err         error
	Diagnostics []compiler.Diagnostic
}

// Report summarizes a build.
type Report struct {
	ID        string
	Units     []*UnitReport
	CacheHits int
	Bytes     int64
	Failed    int
}

// ErrUnitsFailed is wrapped by the error Run returns when any unit failed.
var ErrUnitsFailed = errors.New("build failed")

// Run builds the project described by m. A failing unit does not stop the
// others; Run returns an error wrapping ErrUnitsFailed if any unit failed,
// alongside the complete report.
func Run(ctx context.Context, m *manifest.Manifest, opts ...Option) (*Report, error) {
	cfg := &config{jobs: m.Build.Jobs}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.jobs <= 0 {
		cfg.jobs = 1
	}

	files := cfg.files
	if len(files) == 0 {
		var err error
		if files, err = Discover(m); err != nil {
			return nil, err
		}
	}

	if cfg.store == nil && m.Cache.Enabled {
		s, err := store.Open(ctx, m.CachePath())
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		defer s.Close()
		cfg.store = s
	}

	outDir := m.OutputDir()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	report := &Report{ID: uuid.NewString(), Units: make([]*UnitReport, len(files))}
	log.Infof("build %s: %d units, %d jobs", report.ID, len(files), cfg.jobs)

	b := &builder{m: m, cfg: cfg, outDir: outDir, bases: make(map[string]string)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.jobs)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Units[i] = b.unit(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, u := range report.Units {
		if u == nil {
			continue
		}
		report.Bytes += u.Bytes
		if u.Cached {
			report.CacheHits++
		}
		if u.Err != nil {
			report.Failed++
			log.Errorf("%s: %s", u.Source, u.Err)
		}
	}
	log.Infof("build %s: %d units, %d cached, %d failed", report.ID, len(report.Units), report.CacheHits, report.Failed)

	if report.Failed > 0 {
		return report, fmt.Errorf("%w: %d of %d units failed", ErrUnitsFailed, report.Failed, len(report.Units))
	}
	return report, nil
}

// Discover lists the source files of m in sorted order.
func Discover(m *manifest.Manifest) ([]string, error) {
	var files []string
	for _, dir := range m.SourceDirPaths() {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%q is not a directory", dir)
		}
		err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() && p != dir && (p == m.OutputDir() || strings.HasPrefix(info.Name(), ".")) {
				return filepath.SkipDir
			}
			if !info.IsDir() && strings.HasSuffix(p, m.Source.Ext) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

type builder struct {
	m      *manifest.Manifest
	cfg    *config
	outDir string

	mu    sync.Mutex
	bases map[string]string // output base -> source
}

func (b *builder) unit(ctx context.Context, path string) *UnitReport {
	start := time.Now()
	u := &UnitReport{ID: uuid.NewString(), Source: path}
	defer func() { u.Duration = time.Since(start) }()

	if err := b.compile(ctx, u); err != nil {
		u.Err = err
		u.Diagnostics = compiler.Diagnostics(err)
	}
	return u
}

func (b *builder) compile(ctx context.Context, u *UnitReport) error {
	data, err := os.ReadFile(u.Source)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", u.Source, err)
	}
	unit := compiler.NewUnit(u.Source, string(data), b.m.CompilerOptions())
	unit.Generate = func(prog *compiler.Program, table *compiler.SymbolTable) (*tac.Code, error) {
		code, cached, err := store.Generate(ctx, b.cfg.store, unit.Name, prog, table, unit.Options.MainLabel)
		u.Cached = cached
		return code, err
	}
	res, err := unit.Compile()
	if err != nil {
		return err
	}

	base, err := b.base(u.Source)
	if err != nil {
		return err
	}
	for _, format := range b.m.Output.Formats {
		out := filepath.Join(b.outDir, base+extensions[format])
		n, err := writeOutput(out, format, res)
		if err != nil {
			return err
		}
		u.Outputs = append(u.Outputs, out)
		u.Bytes += n
	}
	log.Debugf("%s: %d instructions, %d outputs", u.Source, res.Code.Len(), len(u.Outputs))
	return nil
}

// base maps a source path to its output base name: the path relative to
// its source directory without the extension. Two sources mapping to the
// same base is an error.
func (b *builder) base(path string) (string, error) {
	rel := filepath.Base(path)
	for _, dir := range b.m.SourceDirPaths() {
		if r, err := filepath.Rel(dir, path); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
			break
		}
	}
	base := strings.TrimSuffix(rel, b.m.Source.Ext)

	b.mu.Lock()
	defer b.mu.Unlock()
	if other, ok := b.bases[base]; ok && other != path {
		return "", fmt.Errorf("%s: output name %q already used by %s", path, base, other)
	}
	b.bases[base] = path
	return base, nil
}
