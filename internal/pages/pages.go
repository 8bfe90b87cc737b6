// Package pages is the page registry that page queries feed: every page is
// bound to the component file that renders it and carries a context.
package pages

import (
	"context"
	"slices"
	"sort"

	"github.com/kmcaloon/groqcache/api"
)

// Registry is the host's page store.
type Registry interface {
	// Pages returns every page ordered by path.
	Pages(ctx context.Context) ([]api.Page, error)
	// DeletePage removes the page with the same path. Deleting a missing page is not an error.
	DeletePage(ctx context.Context, page api.Page) error
	// CreatePage adds a page, replacing any page with the same path.
	CreatePage(ctx context.Context, page api.Page) error
}

// ComponentIndex is implemented by registries that can find pages by
// component without a full listing.
type ComponentIndex interface {
	PagesForComponent(ctx context.Context, component string) ([]api.Page, error)
}

// ForComponent returns the pages rendered by component. Pages registered
// under one of aliases, such as the absolute form of a relative component
// path, are included.
func ForComponent(ctx context.Context, reg Registry, component string, aliases ...string) ([]api.Page, error) {
	names := append([]string{component}, aliases...)
	var out []api.Page
	if idx, ok := reg.(ComponentIndex); ok {
		seen := make(map[string]bool)
		for _, name := range names {
			ps, err := idx.PagesForComponent(ctx, name)
			if err != nil {
				return nil, err
			}
			for _, p := range ps {
				if !seen[p.Path] {
					seen[p.Path] = true
					out = append(out, p)
				}
			}
		}
		sortByPath(out)
		return out, nil
	}
	all, err := reg.Pages(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if slices.Contains(names, p.Component) {
			out = append(out, p)
		}
	}
	return out, nil
}

func sortByPath(ps []api.Page) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Path < ps[j].Path })
}
