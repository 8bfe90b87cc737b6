// Package extract locates page and static queries embedded in JavaScript and
// TypeScript source files.
package extract

import (
	"bytes"
	"errors"
	"log/slog"
	"regexp"
)

// Extractor finds Query Sites in source text.
type Extractor struct {
	PageExport string
	Hook       string
	Locator    Locator
	Logger     *slog.Logger

	pageMarker *regexp.Regexp
}

// New returns an Extractor backed by the tree-sitter locator.
func New(pageExport, hook string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		PageExport: pageExport,
		Hook:       hook,
		Locator:    NewSitterLocator(),
		Logger:     logger,
		pageMarker: regexp.MustCompile(`export\s+(?:const|let|var)\s+` + regexp.QuoteMeta(pageExport) + `\b`),
	}
}

// HasPageQuery is the cheap textual pre-check for a page query export.
func (e *Extractor) HasPageQuery(src []byte) bool {
	return e.pageMarker.Match(src)
}

// HasStaticQuery is the cheap textual pre-check for a hook call.
func (e *Extractor) HasStaticQuery(src []byte) bool {
	return bytes.Contains(src, []byte(e.Hook))
}

// Sites is every query found in one file.
type Sites struct {
	// Page is nil when the file has no page query.
	Page   *Site
	Static []Site
	// Dynamic holds hook calls whose first argument is not a literal.
	Dynamic []Span
}

// Extract returns the page query and the static queries of a file. The file
// is parsed at most once, and not at all when neither textual pre-check
// matches.
func (e *Extractor) Extract(path string, src []byte) (Sites, error) {
	return e.extract(path, src, e.HasPageQuery(src), e.HasStaticQuery(src))
}

// PageQuery returns the page query of a file, or nil if it has none.
// Only the first matching top-level export is honored.
func (e *Extractor) PageQuery(path string, src []byte) (*Site, error) {
	sites, err := e.extract(path, src, e.HasPageQuery(src), false)
	return sites.Page, err
}

// StaticQueries returns one Site per hook call in the file.
func (e *Extractor) StaticQueries(path string, src []byte) ([]Site, error) {
	sites, err := e.extract(path, src, false, e.HasStaticQuery(src))
	return sites.Static, err
}

func (e *Extractor) extract(path string, src []byte, page, static bool) (Sites, error) {
	var sites Sites
	if !page && !static {
		return sites, nil
	}
	lang, ok := LanguageFor(path)
	if !ok {
		return sites, nil
	}
	var targets []Target
	if page {
		targets = append(targets, Target{Kind: Page, Name: e.PageExport})
	}
	if static {
		targets = append(targets, Target{Kind: Static, Name: e.Hook})
	}
	found, err := e.Locator.Locate(src, lang, targets...)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.File = path
		}
		return sites, err
	}

	for i, t := range targets {
		spans := found[i]
		switch t.Kind {
		case Page:
			if len(spans) == 0 {
				continue
			}
			if len(spans) > 1 {
				e.Logger.Warn("extract.page.ambiguous",
					"file", path, "exports", len(spans), "used_line", spans[0].Line+1)
			}
			s := spans[0]
			sites.Page = &Site{Kind: Page, File: path, RawText: string(src[s.Start:s.End]), Span: s}
		case Static:
			for _, s := range spans {
				if s.Dynamic {
					e.Logger.Warn("extract.static.dynamic",
						"file", path, "line", s.Line+1, "hook", e.Hook)
					sites.Dynamic = append(sites.Dynamic, s)
					continue
				}
				sites.Static = append(sites.Static, Site{Kind: Static, File: path, RawText: string(src[s.Start:s.End]), Span: s})
			}
		}
	}
	return sites, nil
}
