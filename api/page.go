package api

// Page is a generated page as known to the host page registry.
type Page struct {
	// Path is the public URL path and the page identity.
	Path string `json:"path"`
	// Component is the source file that renders the page.
	Component string `json:"component"`
	// Context holds the per-page values. Page query results land in Context["data"].
	Context map[string]any `json:"context,omitempty"`
}

// Clone returns a copy whose Context map can be modified independently.
func (p Page) Clone() Page {
	ctx := make(map[string]any, len(p.Context))
	for k, v := range p.Context {
		ctx[k] = v
	}
	p.Context = ctx
	return p
}
