// Package render is the read side of the result cache, for code that renders
// pages and components. It never runs queries: results come from a build.
package render

import (
	"log/slog"

	"github.com/kmcaloon/groqcache/internal/cache"
)

// Reader reads cached query results from one cache root.
type Reader struct {
	cache *cache.Cache
}

// NewReader returns a Reader for the cache directory at cacheRoot. A nil
// logger uses slog.Default.
func NewReader(cacheRoot string, logger *slog.Logger) *Reader {
	c := cache.Open(cacheRoot)
	c.Logger = logger
	return &Reader{cache: c}
}

// UseQuery returns the cached result of a static query. query must be the
// text after fragment substitution, exactly as extracted. A missing result
// is logged and reported as nil, since it may not exist before the first build.
func (r *Reader) UseQuery(query string) any {
	v, _ := r.cache.Lookup(query)
	return v
}

// Lookup is UseQuery that also reports whether a result was found.
func (r *Reader) Lookup(query string) (any, bool) {
	return r.cache.Lookup(query)
}

// UseQuery reads one result from the cache at cacheRoot.
func UseQuery(cacheRoot, query string) any {
	return NewReader(cacheRoot, nil).UseQuery(query)
}
