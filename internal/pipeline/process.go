package pipeline

import (
	"context"
	"errors"
	"os"

	"github.com/kmcaloon/groqcache/internal/cache"
	"github.com/kmcaloon/groqcache/internal/eval"
	"github.com/kmcaloon/groqcache/internal/extract"
	"github.com/kmcaloon/groqcache/internal/fragments"
	"github.com/kmcaloon/groqcache/internal/ident"
)

// FileResult is what processing one file wrote to the cache.
type FileResult struct {
	Path      string
	PageID    ident.Identifier
	StaticIDs []ident.Identifier
	// Skipped counts queries that were found but not cached.
	Skipped int
}

// ProcessFile extracts and caches the page query and static queries of one
// file. Only cache write failures are returned; everything else is logged
// and the affected query skipped.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, nodes []any) (FileResult, error) {
	res := FileResult{Path: path}
	src, err := os.ReadFile(path)
	if err != nil {
		p.Logger.Warn("extract.file.skip", "file", path, "error", err)
		return res, nil
	}
	sites, err := p.Extractor.Extract(path, src)
	if err != nil {
		p.logSkip(path, err)
		res.Skipped++
		return res, nil
	}
	if err := p.processPage(path, sites.Page, &res); err != nil {
		return res, err
	}
	if err := p.processStatic(ctx, path, sites.Static, nodes, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) processPage(path string, site *extract.Site, res *FileResult) error {
	if site == nil {
		return nil
	}
	text, err := p.Adapter.Resolve(path, site.RawText)
	if err != nil {
		p.logSkip(path, err)
		res.Skipped++
		return nil
	}
	id := ident.Hash(ComponentKey(p.Config.Root, path))
	p.Logger.Info("cache.page", "file", path, "id", id.String())
	if err := p.Cache.Put(id, cache.PageEntry{Unprocessed: text}); err != nil {
		p.Logger.Error("cache.write", "file", path, "id", id.String(), "error", err)
		return err
	}
	res.PageID = id
	return nil
}

func (p *Pipeline) processStatic(ctx context.Context, path string, sites []extract.Site, nodes []any, res *FileResult) error {
	for _, site := range sites {
		text, err := p.Adapter.Resolve(path, site.RawText)
		if err != nil {
			p.logSkip(path, err)
			res.Skipped++
			continue
		}
		result, err := p.Adapter.Evaluate(ctx, path, text, nodes)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logSkip(path, err)
			res.Skipped++
			continue
		}
		id := ident.Hash(text)
		p.Logger.Info("cache.static", "file", path, "line", site.Span.Line+1, "id", id.String())
		if err := p.Cache.Put(id, result); err != nil {
			p.Logger.Error("cache.write", "file", path, "id", id.String(), "error", err)
			return err
		}
		res.StaticIDs = append(res.StaticIDs, id)
	}
	return nil
}

// logSkip reports a query that will have no cached result.
func (p *Pipeline) logSkip(path string, err error) {
	var (
		perr *extract.ParseError
		eerr *eval.EvalError
		cerr *fragments.CallableFragmentError
	)
	switch {
	case errors.Is(err, fragments.ErrMissingFragments):
		p.Logger.Warn("extract.query.skip", "file", path, "reason", "missing_fragments", "error", err)
	case errors.As(err, &perr):
		p.Logger.Warn("extract.file.skip", "file", path, "reason", "parse", "error", err)
	case errors.As(err, &cerr):
		p.Logger.Error("extract.query.skip", "file", path, "reason", "callable_fragment", "error", err)
	case errors.As(err, &eerr):
		p.Logger.Error("eval.failed", "file", path, "query", eerr.Query, "error", eerr.Err)
	default:
		p.Logger.Error("extract.query.skip", "file", path, "error", err)
	}
}
