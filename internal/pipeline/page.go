package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kmcaloon/groqcache/api"
	"github.com/kmcaloon/groqcache/internal/cache"
	"github.com/kmcaloon/groqcache/internal/eval"
	"github.com/kmcaloon/groqcache/internal/ident"
	"github.com/kmcaloon/groqcache/internal/pages"
)

// ErrNoPageQuery is returned when a page's component has no cached page query.
var ErrNoPageQuery = errors.New("component has no page query")

// PageQueryToContext evaluates the cached page query of page's component with
// the page context bound and returns a copy of page with the result in
// Context["data"].
func (p *Pipeline) PageQueryToContext(ctx context.Context, page api.Page, nodes []any) (api.Page, error) {
	id := ident.Hash(ComponentKey(p.Config.Root, page.Component))
	entry, err := p.Cache.GetPage(id)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return page, ErrNoPageQuery
		}
		return page, err
	}
	// Fragments were substituted when the entry was written.
	query := eval.Interpolate(entry.Unprocessed, page.Context)
	result, err := p.Adapter.Evaluate(ctx, page.Component, query, nodes)
	if err != nil {
		return page, err
	}
	next := page.Clone()
	next.Context["data"] = result
	return next, nil
}

// replacePage deletes and recreates page in the registry. The component is
// stored in its root-relative form.
func (p *Pipeline) replacePage(ctx context.Context, page api.Page) error {
	page.Component = ComponentKey(p.Config.Root, page.Component)
	if err := p.Pages.DeletePage(ctx, page); err != nil {
		return fmt.Errorf("delete page %s: %w", page.Path, err)
	}
	if err := p.Pages.CreatePage(ctx, page); err != nil {
		return fmt.Errorf("create page %s: %w", page.Path, err)
	}
	return nil
}

// OnCreatePage injects page query results into a newly created page. Pages
// whose component has no page query, or whose query fails, are registered
// without data.
func (p *Pipeline) OnCreatePage(ctx context.Context, page api.Page) (api.Page, error) {
	if p.Pages == nil {
		return page, errors.New("no page registry configured")
	}
	page.Component = ComponentKey(p.Config.Root, page.Component)
	if !p.Cache.Has(ident.Hash(page.Component)) {
		return page, p.replacePage(ctx, page)
	}
	next, err := p.pageWithData(ctx, page)
	if err != nil {
		p.logSkip(page.Component, err)
		p.Logger.Warn("page.create.nodata", "path", page.Path, "component", page.Component)
		return page, p.replacePage(ctx, page)
	}
	return next, p.replacePage(ctx, next)
}

func (p *Pipeline) pageWithData(ctx context.Context, page api.Page) (api.Page, error) {
	nodes, err := p.Dataset.Nodes(ctx)
	if err != nil {
		return page, fmt.Errorf("load dataset: %w", err)
	}
	return p.PageQueryToContext(ctx, page, nodes)
}

// RefreshComponent recomputes the context of every page rendered by
// component. Pages are updated independently; a failing page is logged and
// the rest still refreshed. It returns how many pages were updated.
func (p *Pipeline) RefreshComponent(ctx context.Context, component string, nodes []any) (int, error) {
	if p.Pages == nil {
		return 0, nil
	}
	key := ComponentKey(p.Config.Root, component)
	abs := filepath.Join(absPath(p.Config.Root), filepath.FromSlash(key))
	targets, err := pages.ForComponent(ctx, p.Pages, key, abs)
	if err != nil {
		return 0, fmt.Errorf("list pages for %s: %w", key, err)
	}
	updated := 0
	for _, page := range targets {
		if p.refresh(ctx, page, nodes) {
			updated++
		}
	}
	return updated, nil
}

// RefreshAll recomputes every registered page whose component has a page query.
func (p *Pipeline) RefreshAll(ctx context.Context, nodes []any) (int, error) {
	all, err := p.Pages.Pages(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pages: %w", err)
	}
	updated := 0
	for _, page := range all {
		if !p.Cache.Has(ident.Hash(ComponentKey(p.Config.Root, page.Component))) {
			continue
		}
		if p.refresh(ctx, page, nodes) {
			updated++
		}
	}
	return updated, nil
}

func (p *Pipeline) refresh(ctx context.Context, page api.Page, nodes []any) bool {
	next, err := p.PageQueryToContext(ctx, page, nodes)
	if err != nil {
		p.logSkip(page.Component, err)
		return false
	}
	if err := p.replacePage(ctx, next); err != nil {
		p.Logger.Error("page.update", "path", page.Path, "error", err)
		return false
	}
	p.Logger.Info("page.update", "path", page.Path, "component", page.Component)
	return true
}
