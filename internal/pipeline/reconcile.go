package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Op is the kind of change observed on a file.
type Op int

const (
	Write Op = iota
	Create
	Remove
	Rename
)

func (o Op) String() string {
	switch o {
	case Write:
		return "write"
	case Create:
		return "create"
	case Remove:
		return "remove"
	case Rename:
		return "rename"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// ChangeEvent reports a change to one file.
type ChangeEvent struct {
	Path string
	Op   Op
}

// Reconciler applies change events to the cache and the page registry.
// Events are handled one at a time.
type Reconciler struct {
	p *Pipeline
}

// Reconciler returns the change handler of p.
func (p *Pipeline) Reconciler() *Reconciler {
	return &Reconciler{p: p}
}

// Run handles events in arrival order until ctx is done or events is
// closed. A failing event is logged and never stops the loop.
func (r *Reconciler) Run(ctx context.Context, events <-chan ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.Handle(ctx, ev); err != nil {
				r.p.Logger.Error("reconcile.failed", "file", ev.Path, "op", ev.Op.String(), "error", err)
			}
		}
	}
}

// Handle reprocesses the file named by ev. A change inside the fragments
// directory reloads the fragments and reprocesses every file that uses
// placeholders.
func (r *Reconciler) Handle(ctx context.Context, ev ChangeEvent) error {
	p := r.p
	if ev.Op == Remove || ev.Op == Rename {
		// Cache entries are never deleted individually.
		p.Logger.Debug("reconcile.ignore", "file", ev.Path, "op", ev.Op.String())
		return nil
	}
	if p.InFragmentsDir(ev.Path) {
		return r.fragmentsChanged(ctx)
	}
	if !r.watched(ev.Path) {
		return nil
	}
	return r.reprocess(ctx, ev.Path, nil)
}

func (r *Reconciler) watched(path string) bool {
	exts := make(map[string]struct{}, len(r.p.Config.Extensions))
	for _, e := range r.p.Config.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	if !Matches(filepath.Base(path), exts) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "node_modules" {
			return false
		}
	}
	return true
}

// reprocess re-extracts one file. nodes is loaded fresh when nil.
func (r *Reconciler) reprocess(ctx context.Context, path string, nodes []any) error {
	p := r.p
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if !p.Extractor.HasPageQuery(src) && !p.Extractor.HasStaticQuery(src) {
		return nil
	}

	p.Logger.Info("reconcile.start", "file", path)
	sites, err := p.Extractor.Extract(path, src)
	if err != nil {
		p.logSkip(path, err)
		return nil
	}
	if nodes == nil {
		if nodes, err = p.Dataset.Nodes(ctx); err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}
	}

	res := FileResult{Path: path}
	if err := p.processPage(path, sites.Page, &res); err != nil {
		return err
	}
	if res.PageID != "" {
		n, err := p.RefreshComponent(ctx, path, nodes)
		if err != nil {
			p.Logger.Error("reconcile.pages", "file", path, "error", err)
		}
		p.Logger.Info("reconcile.pages", "file", path, "updated", n)
	}
	if err := p.processStatic(ctx, path, sites.Static, nodes, &res); err != nil {
		return err
	}
	p.Logger.Info("reconcile.done", "file", path, "static_queries", len(res.StaticIDs), "skipped", res.Skipped)
	return nil
}

func (r *Reconciler) fragmentsChanged(ctx context.Context) error {
	p := r.p
	p.ReloadFragments()

	files, err := Scan(p.Config.SourceDir(), p.Config.Extensions)
	if err != nil {
		return fmt.Errorf("scan %s: %w", p.Config.SourceDir(), err)
	}
	var nodes []any
	var errs []error
	for _, f := range files {
		if p.InFragmentsDir(f) {
			continue
		}
		src, err := os.ReadFile(f)
		if err != nil || !bytes.Contains(src, []byte("${")) {
			continue
		}
		if nodes == nil {
			if nodes, err = p.Dataset.Nodes(ctx); err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			if nodes == nil {
				nodes = []any{}
			}
		}
		if err := r.reprocess(ctx, f, nodes); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
