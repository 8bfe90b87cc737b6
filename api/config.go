package api

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Modes select where the result cache lives.
const (
	Development = "development"
	Production  = "production"
)

// DefaultExtensions are the source extensions scanned for embedded queries.
var DefaultExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"}

// Config is the runtime configuration of the extraction pipeline.
// It can be loaded from a groqcache.hcl (or .json) file and overridden by flags.
type Config struct {
	// Root is the project root. Relative paths below are resolved against it.
	Root string `hcl:"root,optional" json:"root,omitempty"`
	// SourceRoot is the directory scanned for queries. Defaults to <Root>/src.
	SourceRoot string `hcl:"source_root,optional" json:"source_root,omitempty"`
	// FragmentsDir holds the fragments module (index.js). Optional.
	FragmentsDir string `hcl:"fragments_dir,optional" json:"fragments_dir,omitempty"`
	// CacheDir overrides the mode-derived cache root.
	CacheDir string `hcl:"cache_dir,optional" json:"cache_dir,omitempty"`
	// Mode is development or production.
	Mode string `hcl:"mode,optional" json:"mode,omitempty"`
	// Dataset is the path of the content nodes (.json, .ndjson, .db).
	Dataset string `hcl:"dataset,optional" json:"dataset,omitempty"`
	// DatasetSelector is a JSONPath selecting the node list inside a JSON dataset.
	DatasetSelector string `hcl:"dataset_selector,optional" json:"dataset_selector,omitempty"`
	// PagesDB is the SQLite page registry.
	PagesDB string `hcl:"pages_db,optional" json:"pages_db,omitempty"`
	// Extensions lists the scanned source extensions.
	Extensions []string `hcl:"extensions,optional" json:"extensions,omitempty"`
	// PageExport is the exported identifier holding a page query.
	PageExport string `hcl:"page_export,optional" json:"page_export,omitempty"`
	// Hook is the static query hook name.
	Hook string `hcl:"hook,optional" json:"hook,omitempty"`
	// DebounceMillis coalesces bursts of change events per file. 0 means the
	// default; a negative value disables coalescing.
	DebounceMillis int `hcl:"debounce_ms,optional" json:"debounce_ms,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Root:           ".",
		Mode:           Development,
		Extensions:     append([]string(nil), DefaultExtensions...),
		PageExport:     "groqQuery",
		Hook:           "useGroqQuery",
		DebounceMillis: 100,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Root == "" {
		c.Root = d.Root
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if len(c.Extensions) == 0 {
		c.Extensions = d.Extensions
	}
	if c.PageExport == "" {
		c.PageExport = d.PageExport
	}
	if c.Hook == "" {
		c.Hook = d.Hook
	}
	if c.DebounceMillis == 0 {
		c.DebounceMillis = d.DebounceMillis
	}
	return c
}

// SourceDir returns the absolute-or-relative directory that is scanned.
func (c Config) SourceDir() string {
	if c.SourceRoot == "" {
		return filepath.Join(c.Root, "src")
	}
	return c.resolve(c.SourceRoot)
}

// FragmentsPath returns the fragments directory, or "" if none is configured.
func (c Config) FragmentsPath() string {
	if c.FragmentsDir == "" {
		return ""
	}
	return c.resolve(c.FragmentsDir)
}

// CacheRoot returns the directory holding one JSON file per cache entry.
func (c Config) CacheRoot() string {
	if c.CacheDir != "" {
		return c.resolve(c.CacheDir)
	}
	if c.Mode == Production {
		return filepath.Join(c.Root, "public", "static", "groq")
	}
	return filepath.Join(c.Root, ".cache", "groq")
}

// Validate rejects a cache root that equals or contains the project root or
// the source directory, since resetting the cache removes its whole tree.
func (c Config) Validate() error {
	cache := clean(c.CacheRoot())
	for _, dir := range []struct{ name, path string }{
		{"project root", c.Root},
		{"source directory", c.SourceDir()},
	} {
		if within(cache, clean(dir.path)) {
			return fmt.Errorf("cache directory %s would contain the %s %s", cache, dir.name, dir.path)
		}
	}
	return nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func clean(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// DatasetPath returns the dataset location, or "" if none is configured.
func (c Config) DatasetPath() string {
	if c.Dataset == "" {
		return ""
	}
	return c.resolve(c.Dataset)
}

// PagesDBPath returns the page registry database, or "" for none.
func (c Config) PagesDBPath() string {
	if c.PagesDB == "" {
		return ""
	}
	return c.resolve(c.PagesDB)
}

func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}
