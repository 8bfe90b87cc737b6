package pages

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/kmcaloon/groqcache/api"
)

// MemoryRegistry keeps pages in memory with a component → pages bitmap index.
type MemoryRegistry struct {
	mu          sync.RWMutex
	pages       map[string]api.Page
	pathIntID   map[string]uint32 // page path → internal ID
	intToPath   []string
	nextIntID   uint32
	byComponent map[string]*roaring.Bitmap
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		pages:       make(map[string]api.Page),
		pathIntID:   make(map[string]uint32),
		byComponent: make(map[string]*roaring.Bitmap),
	}
}

func (r *MemoryRegistry) Pages(context.Context) ([]api.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]api.Page, 0, len(r.pages))
	for _, p := range r.pages {
		out = append(out, p.Clone())
	}
	sortByPath(out)
	return out, nil
}

func (r *MemoryRegistry) CreatePage(_ context.Context, page api.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(page.Path)

	intID, ok := r.pathIntID[page.Path]
	if !ok {
		intID = r.nextIntID
		r.nextIntID++
		r.pathIntID[page.Path] = intID
		for uint32(len(r.intToPath)) <= intID {
			r.intToPath = append(r.intToPath, "")
		}
		r.intToPath[intID] = page.Path
	}
	bm, exists := r.byComponent[page.Component]
	if !exists {
		bm = roaring.New()
		r.byComponent[page.Component] = bm
	}
	bm.Add(intID)
	r.pages[page.Path] = page.Clone()
	return nil
}

func (r *MemoryRegistry) DeletePage(_ context.Context, page api.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(page.Path)
	return nil
}

// remove drops a page and its index bit. Must be called with r.mu held.
func (r *MemoryRegistry) remove(path string) {
	old, ok := r.pages[path]
	if !ok {
		return
	}
	delete(r.pages, path)
	if bm, ok := r.byComponent[old.Component]; ok {
		bm.Remove(r.pathIntID[path])
		if bm.IsEmpty() {
			delete(r.byComponent, old.Component)
		}
	}
}

func (r *MemoryRegistry) PagesForComponent(_ context.Context, component string) ([]api.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bm, ok := r.byComponent[component]
	if !ok {
		return nil, nil
	}
	out := make([]api.Page, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		path := r.intToPath[it.Next()]
		out = append(out, r.pages[path].Clone())
	}
	sortByPath(out)
	return out, nil
}
