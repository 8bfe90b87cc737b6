// Package groq implements the subset of the GROQ query language used by
// page and component queries: filters, projections, references, ordering
// and a handful of functions.
package groq

import (
	"context"
	"sync"
)

const parseCacheSize = 512

// Engine parses and evaluates queries. The zero value is ready to use and is
// safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	parsed map[string]Node
}

// Evaluate runs query against dataset. Errors are *SyntaxError or *RuntimeError,
// or the context error when ctx is done.
func (e *Engine) Evaluate(ctx context.Context, query string, dataset []any, params map[string]any) (any, error) {
	n, err := e.parse(query)
	if err != nil {
		return nil, err
	}
	return Eval(ctx, n, dataset, params)
}

func (e *Engine) parse(query string) (Node, error) {
	e.mu.Lock()
	n, ok := e.parsed[query]
	e.mu.Unlock()
	if ok {
		return n, nil
	}
	n, err := Parse(query)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parsed == nil || len(e.parsed) >= parseCacheSize {
		e.parsed = make(map[string]Node)
	}
	e.parsed[query] = n
	return n, nil
}
