// Package linter checks embedded queries without evaluating them. It reports
// what a build would skip: unparseable files, hook calls whose argument is not
// a literal, fragment problems and query syntax errors.
package linter

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kmcaloon/groqcache/internal/eval"
	"github.com/kmcaloon/groqcache/internal/extract"
	"github.com/kmcaloon/groqcache/internal/fragments"
	"github.com/kmcaloon/groqcache/internal/groq"
)

type Diagnostic struct {
	File    string
	Line    uint32 // 0-indexed
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s", d.File, d.Line+1, d.Message)
}

// Linter checks files with the same extractor and fragments a build uses.
type Linter struct {
	Extractor *extract.Extractor
	Fragments *fragments.Store
}

// Lint checks the queries of one source file. Files of unsupported
// languages yield no diagnostics.
func (l *Linter) Lint(path string, src []byte) ([]Diagnostic, error) {
	sites, err := l.Extractor.Extract(path, src)
	if err != nil {
		var perr *extract.ParseError
		if !errors.As(err, &perr) {
			return nil, err
		}
		return []Diagnostic{{File: path, Line: perr.Line, Message: perr.Message}}, nil
	}

	var diags []Diagnostic
	if sites.Page != nil {
		diags = append(diags, l.check(*sites.Page)...)
	}
	for _, s := range sites.Dynamic {
		diags = append(diags, Diagnostic{
			File:    path,
			Line:    s.Line,
			Message: fmt.Sprintf("%s is called with a non-literal query; it cannot be cached", l.Extractor.Hook),
		})
	}
	for _, site := range sites.Static {
		diags = append(diags, l.check(site)...)
	}
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Line < diags[j].Line })
	return diags, nil
}

func (l *Linter) check(site extract.Site) []Diagnostic {
	report := func(err error) []Diagnostic {
		return []Diagnostic{{
			File:    site.File,
			Line:    site.Span.Line,
			Message: fmt.Sprintf("%s query: %v", site.Kind, err),
		}}
	}
	text, err := fragments.Resolve(site.RawText, l.Fragments.Current())
	if err != nil {
		return report(err)
	}
	if names := fragments.Unresolved(text); len(names) > 0 {
		return report(&fragments.UnresolvedPlaceholderError{Names: names})
	}
	if _, err := groq.Parse(eval.Clean(text)); err != nil {
		return report(err)
	}
	return nil
}
