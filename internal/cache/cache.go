// Package cache stores query results as one JSON file per identifier.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/kmcaloon/groqcache/internal/ident"
)

// OptionsFile holds the build options next to the entries.
const OptionsFile = "options.json"

// ErrNotFound is returned by Get when no entry exists for an identifier.
var ErrNotFound = errors.New("cache entry not found")

// IOError is a failed cache write. A missing entry breaks readers far from
// the cause, so callers treat it as fatal for the current operation.
type IOError struct {
	ID  ident.Identifier
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// PageEntry is the payload of a page query: the resolved query text, to be
// interpolated with page context later.
type PageEntry struct {
	Unprocessed string `json:"unprocessed"`
}

// Cache is a directory of <identifier>.json files on a billy filesystem.
type Cache struct {
	fs     billy.Filesystem
	dir    string
	Logger *slog.Logger
}

// New returns a cache rooted at dir inside fs.
func New(fs billy.Filesystem, dir string) *Cache {
	return &Cache{fs: fs, dir: dir}
}

// Open returns a cache at the OS path root.
func Open(root string) *Cache {
	root = filepath.Clean(root)
	return New(osfs.New(filepath.Dir(root)), filepath.Base(root))
}

func (c *Cache) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Dir returns the cache directory relative to its filesystem.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) path(id ident.Identifier) string {
	return c.fs.Join(c.dir, id.FileName())
}

// Reset deletes and recreates the cache directory.
func (c *Cache) Reset() error {
	if err := util.RemoveAll(c.fs, c.dir); err != nil {
		return &IOError{Op: "reset", Err: err}
	}
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return &IOError{Op: "reset", Err: err}
	}
	return nil
}

// Put writes payload under id, replacing any previous entry. []byte and
// json.RawMessage payloads are written as-is; anything else is encoded as
// JSON. The entry is written to a temporary file and renamed into place so
// readers never observe a partial file.
func (c *Cache) Put(id ident.Identifier, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return &IOError{ID: id, Op: "encode", Err: err}
	}
	if err := c.writeAtomic(c.path(id), data); err != nil {
		return &IOError{ID: id, Op: "write", Err: err}
	}
	return nil
}

// WriteOptions records the options a build ran with.
func (c *Cache) WriteOptions(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &IOError{Op: "encode options", Err: err}
	}
	if err := c.writeAtomic(c.fs.Join(c.dir, OptionsFile), data); err != nil {
		return &IOError{Op: "write options", Err: err}
	}
	return nil
}

func (c *Cache) writeAtomic(target string, data []byte) error {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	tmp, err := c.fs.TempFile(c.dir, ".tmp-")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		c.fs.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		c.fs.Remove(name)
		return err
	}
	if err := c.fs.Rename(name, target); err != nil {
		c.fs.Remove(name)
		return err
	}
	return nil
}

func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Get returns the raw bytes stored under id.
func (c *Cache) Get(id ident.Identifier) ([]byte, error) {
	f, err := c.fs.Open(c.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// GetValue returns the decoded entry stored under id.
func (c *Cache) GetValue(id ident.Identifier) (any, error) {
	data, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", id, err)
	}
	return v, nil
}

// GetPage returns the page entry stored under id.
func (c *Cache) GetPage(id ident.Identifier) (PageEntry, error) {
	var e PageEntry
	data, err := c.Get(id)
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode page entry %s: %w", id, err)
	}
	return e, nil
}

// Has reports whether an entry exists for id.
func (c *Cache) Has(id ident.Identifier) bool {
	_, err := c.fs.Stat(c.path(id))
	return err == nil
}

// Entries lists the identifiers currently stored, in directory order.
func (c *Cache) Entries() ([]ident.Identifier, error) {
	infos, err := c.fs.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []ident.Identifier
	for _, fi := range infos {
		name := fi.Name()
		if fi.IsDir() || name == OptionsFile || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, ident.Identifier(name[:len(name)-len(".json")]))
	}
	return ids, nil
}

// Lookup is the runtime read path: it hashes query the way static entries
// are keyed and returns the cached result. A missing entry is expected on a
// first build, so it is logged and reported as absent.
func (c *Cache) Lookup(query string) (any, bool) {
	id := ident.Hash(query)
	v, err := c.GetValue(id)
	if err != nil {
		c.logger().Warn("cache.lookup.miss", "id", id.String(), "error", err)
		return nil, false
	}
	return v, true
}
