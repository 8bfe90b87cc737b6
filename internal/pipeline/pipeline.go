// Package pipeline extracts embedded queries from a source tree, evaluates
// them and keeps the result cache and generated pages up to date as files
// change.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kmcaloon/groqcache/api"
	"github.com/kmcaloon/groqcache/internal/cache"
	"github.com/kmcaloon/groqcache/internal/dataset"
	"github.com/kmcaloon/groqcache/internal/eval"
	"github.com/kmcaloon/groqcache/internal/extract"
	"github.com/kmcaloon/groqcache/internal/fragments"
	"github.com/kmcaloon/groqcache/internal/pages"
)

// State is the phase of a build.
type State int32

const (
	Idle State = iota
	Resetting
	Scanning
	Extracting
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resetting:
		return "resetting"
	case Scanning:
		return "scanning"
	case Extracting:
		return "extracting"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Pipeline holds every collaborator of extraction and reconciliation.
// It is not safe for concurrent builds; the fragments Store is the only
// state shared with other goroutines.
type Pipeline struct {
	Config    api.Config
	Extractor *extract.Extractor
	Fragments *fragments.Store
	Loader    *fragments.Loader
	Adapter   *eval.Adapter
	Cache     *cache.Cache
	Dataset   dataset.Source
	// Pages is optional. Without it page queries are cached but no page is refreshed.
	Pages  pages.Registry
	Logger *slog.Logger

	state atomic.Int32
}

// New wires a Pipeline from cfg with the built-in extractor and query engine.
func New(cfg api.Config, c *cache.Cache, ds dataset.Source, reg pages.Registry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	store := fragments.NewStore(nil)
	c.Logger = logger
	return &Pipeline{
		Config:    cfg,
		Extractor: extract.New(cfg.PageExport, cfg.Hook, logger),
		Fragments: store,
		Loader:    &fragments.Loader{Logger: logger},
		Adapter:   eval.New(store, logger),
		Cache:     c,
		Dataset:   ds,
		Pages:     reg,
		Logger:    logger,
	}
}

// State returns the current build phase.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	p.Logger.Debug("build.state", "state", s.String())
}

// Summary describes a finished build.
type Summary struct {
	Files         int
	PageQueries   int
	StaticQueries int
	Skipped       int
	PagesUpdated  int
	Duration      time.Duration
}

// Build runs a cold build: reset the cache, load fragments, scan the source
// tree and process every file. Per-file problems are logged and skipped.
// Cache write failures do not stop the scan but are returned, joined, at the end.
func (p *Pipeline) Build(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary
	defer p.setState(Done)

	p.setState(Resetting)
	if err := p.Cache.Reset(); err != nil {
		return sum, err
	}
	if err := p.Cache.WriteOptions(p.Config); err != nil {
		return sum, err
	}
	p.ReloadFragments()

	nodes, err := p.Dataset.Nodes(ctx)
	if err != nil {
		return sum, fmt.Errorf("load dataset: %w", err)
	}

	p.setState(Scanning)
	p.Logger.Info("extract.start", "root", p.Config.SourceDir())
	files, err := Scan(p.Config.SourceDir(), p.Config.Extensions)
	if err != nil {
		return sum, fmt.Errorf("scan %s: %w", p.Config.SourceDir(), err)
	}
	sum.Files = len(files)

	p.setState(Extracting)
	var ioErrs []error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := p.ProcessFile(ctx, f, nodes)
		if err != nil {
			ioErrs = append(ioErrs, err)
		}
		if res.PageID != "" {
			sum.PageQueries++
		}
		sum.StaticQueries += len(res.StaticIDs)
		sum.Skipped += res.Skipped
	}

	if p.Pages != nil {
		n, err := p.RefreshAll(ctx, nodes)
		sum.PagesUpdated = n
		if err != nil {
			return sum, err
		}
	}

	sum.Duration = time.Since(start)
	p.Logger.Info("extract.done",
		"files", sum.Files, "page_queries", sum.PageQueries, "static_queries", sum.StaticQueries,
		"skipped", sum.Skipped, "pages_updated", sum.PagesUpdated, "elapsed", sum.Duration)
	return sum, errors.Join(ioErrs...)
}

// ReloadFragments re-reads the fragments module and swaps the registry in
// whole. A failed load leaves the registry empty so stale fragments are
// never used.
func (p *Pipeline) ReloadFragments() {
	dir := p.Config.FragmentsPath()
	if dir == "" {
		return
	}
	reg, err := p.Loader.Load(dir)
	if err != nil {
		p.Logger.Warn("fragments.load", "dir", dir, "error", err)
		p.Fragments.Swap(nil)
		return
	}
	p.Fragments.Swap(reg)
	p.Logger.Info("fragments.load", "dir", dir, "fragments", reg.Len(), "version", reg.Version())
}

// InFragmentsDir reports whether path lies in the configured fragments directory.
func (p *Pipeline) InFragmentsDir(path string) bool {
	dir := p.Config.FragmentsPath()
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(absPath(dir), absPath(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ComponentKey is the hash key material of a page query: the file path
// relative to root with forward slashes. Paths outside root are kept whole.
func ComponentKey(root, path string) string {
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(absPath(root), path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
