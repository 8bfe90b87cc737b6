// Package eval adapts query text found in source files to the query engine.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kmcaloon/groqcache/internal/fragments"
	"github.com/kmcaloon/groqcache/internal/groq"
)

// Engine is the query engine: parsed query plus dataset in, result or error out.
type Engine interface {
	Evaluate(ctx context.Context, query string, dataset []any, params map[string]any) (any, error)
}

// EvalError is a query that failed to parse or evaluate.
type EvalError struct {
	File  string
	Query string
	Err   error
}

func (e *EvalError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("query failed: %v\n%s", e.Err, e.Query)
	}
	return fmt.Sprintf("%s: query failed: %v\n%s", e.File, e.Err, e.Query)
}

func (e *EvalError) Unwrap() error { return e.Err }

// IsSyntax reports whether the engine rejected the query grammar.
func (e *EvalError) IsSyntax() bool {
	var serr *groq.SyntaxError
	return errors.As(e.Err, &serr)
}

// Adapter resolves fragments and runs queries through an Engine.
type Adapter struct {
	Engine    Engine
	Fragments *fragments.Store
	Logger    *slog.Logger
}

// New returns an Adapter backed by the built-in engine.
func New(store *fragments.Store, logger *slog.Logger) *Adapter {
	return &Adapter{Engine: &groq.Engine{}, Fragments: store, Logger: logger}
}

func (a *Adapter) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// Resolve substitutes fragments into raw query text using the registry
// currently in effect. Placeholders with no matching fragment are kept and
// reported as a warning.
func (a *Adapter) Resolve(file, raw string) (string, error) {
	var reg *fragments.Registry
	if a.Fragments != nil {
		reg = a.Fragments.Current()
	}
	text, err := fragments.Resolve(raw, reg)
	if err != nil {
		return "", err
	}
	if names := fragments.Unresolved(text); len(names) > 0 {
		a.logger().Warn("fragments.unresolved", "file", file,
			"error", (&fragments.UnresolvedPlaceholderError{Names: names}).Error())
	}
	return text, nil
}

// Evaluate runs resolved query text against dataset.
func (a *Adapter) Evaluate(ctx context.Context, file, text string, dataset []any) (any, error) {
	return a.EvaluateParams(ctx, file, text, dataset, nil)
}

// EvaluateParams is Evaluate with $parameters bound.
func (a *Adapter) EvaluateParams(ctx context.Context, file, text string, dataset []any, params map[string]any) (any, error) {
	query := Clean(text)
	result, err := a.Engine.Evaluate(ctx, query, dataset, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &EvalError{File: file, Query: query, Err: err}
	}
	return result, nil
}

// Clean removes template-literal delimiters left over from extraction.
func Clean(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "`", ""))
}
