// Package watch turns file system notifications into change events.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kmcaloon/groqcache/internal/pipeline"
)

// Watcher reports changes below Roots. Events for the same file arriving
// within Debounce of each other are coalesced into one, carrying the last op.
type Watcher struct {
	Roots      []string
	Extensions []string
	Debounce   time.Duration
	Logger     *slog.Logger
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

// Run watches until ctx is done, sending events to out. It does not close out.
func (w *Watcher) Run(ctx context.Context, out chan<- pipeline.ChangeEvent) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	for _, root := range w.Roots {
		if err := w.addTree(fw, root); err != nil {
			return err
		}
	}
	exts := make(map[string]struct{}, len(w.Extensions))
	for _, e := range w.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}

	d := newDebouncer(ctx, w.Debounce)
	defer d.stop()

	w.logger().Info("watch.start", "roots", w.Roots, "debounce", w.Debounce)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger().Warn("watch.error", "error", err)
		case ev, ok := <-d.fired:
			if !ok {
				return nil
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := w.addTree(fw, ev.Name); err != nil {
					w.logger().Warn("watch.add", "dir", ev.Name, "error", err)
				}
				continue
			}
			op, ok := convert(ev.Op)
			if !ok || !pipeline.Matches(filepath.Base(ev.Name), exts) {
				continue
			}
			ce := pipeline.ChangeEvent{Path: ev.Name, Op: op}
			if w.Debounce > 0 {
				d.add(ce)
				continue
			}
			select {
			case out <- ce:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// addTree registers root and every directory below it that a scan would visit.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (d.Name() == "node_modules" || strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func convert(op fsnotify.Op) (pipeline.Op, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return pipeline.Remove, true
	case op.Has(fsnotify.Rename):
		return pipeline.Rename, true
	case op.Has(fsnotify.Create):
		return pipeline.Create, true
	case op.Has(fsnotify.Write):
		return pipeline.Write, true
	}
	return 0, false
}

// debouncer delays each path's event until no newer event for that path
// arrived within the window.
type debouncer struct {
	ctx    context.Context
	window time.Duration
	fired  chan pipeline.ChangeEvent

	mu      sync.Mutex
	pending map[string]*time.Timer
	last    map[string]pipeline.ChangeEvent
}

func newDebouncer(ctx context.Context, window time.Duration) *debouncer {
	return &debouncer{
		ctx:     ctx,
		window:  window,
		fired:   make(chan pipeline.ChangeEvent, 64),
		pending: make(map[string]*time.Timer),
		last:    make(map[string]pipeline.ChangeEvent),
	}
}

func (d *debouncer) add(ev pipeline.ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last[ev.Path] = ev
	if t, ok := d.pending[ev.Path]; ok {
		t.Reset(d.window)
		return
	}
	d.pending[ev.Path] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		latest, ok := d.last[ev.Path]
		if !ok {
			// Already emitted by a run that raced with Reset.
			d.mu.Unlock()
			return
		}
		delete(d.last, ev.Path)
		delete(d.pending, ev.Path)
		d.mu.Unlock()
		d.emit(latest)
	})
}

func (d *debouncer) emit(ev pipeline.ChangeEvent) {
	select {
	case d.fired <- ev:
	case <-d.ctx.Done():
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, t := range d.pending {
		t.Stop()
		delete(d.pending, path)
	}
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
