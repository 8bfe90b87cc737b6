// Package fragments holds reusable query snippets and substitutes them into
// query text.
package fragments

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Kind tells string fragments from generator functions.
type Kind int

const (
	String Kind = iota
	Callable
)

func (k Kind) String() string {
	if k == Callable {
		return "callable"
	}
	return "string"
}

// Fragment is a named piece of query text. For Callable fragments Value holds
// the function source and is never substituted.
type Fragment struct {
	Name  string
	Kind  Kind
	Value string
}

var versions atomic.Uint64

// Registry is an immutable set of fragments. A reload builds a new Registry.
type Registry struct {
	version uint64
	byName  map[string]Fragment
	names   []string
}

// NewRegistry builds a registry. Later definitions of a name replace earlier ones.
func NewRegistry(frags ...Fragment) *Registry {
	r := &Registry{
		version: versions.Add(1),
		byName:  make(map[string]Fragment, len(frags)),
	}
	for _, f := range frags {
		r.byName[f.Name] = f
	}
	r.names = make([]string, 0, len(r.byName))
	for name := range r.byName {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// Version increases with every registry built in this process.
func (r *Registry) Version() uint64 {
	if r == nil {
		return 0
	}
	return r.version
}

// Len returns the number of fragments. A nil registry is empty.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Lookup returns the fragment with the given name.
func (r *Registry) Lookup(name string) (Fragment, bool) {
	if r == nil {
		return Fragment{}, false
	}
	f, ok := r.byName[name]
	return f, ok
}

// Names returns the fragment names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Store owns the current registry. Readers always see a complete registry:
// a reload replaces the pointer, never the contents.
type Store struct {
	mu      sync.RWMutex
	current *Registry
}

func NewStore(initial *Registry) *Store {
	return &Store{current: initial}
}

// Current returns the registry in effect.
func (s *Store) Current() *Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Swap replaces the registry and returns the previous one.
func (s *Store) Swap(next *Registry) *Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = next
	return prev
}
