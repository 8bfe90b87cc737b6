// Package mcpserver exposes the result cache and the query engine as MCP
// tools, so an agent can read precomputed results the way a renderer does.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/kmcaloon/groqcache/internal/cache"
	"github.com/kmcaloon/groqcache/internal/dataset"
	"github.com/kmcaloon/groqcache/internal/eval"
	"github.com/kmcaloon/groqcache/internal/ident"
)

// New returns an MCP server with the cached_query and run_query tools.
func New(version string, c *cache.Cache, a *eval.Adapter, ds dataset.Source) *server.MCPServer {
	s := server.NewMCPServer(
		"groqcache",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	cached := &CachedQueryTool{Cache: c}
	s.AddTool(cached.Definition(), cached.Handle)

	run := &RunQueryTool{Adapter: a, Dataset: ds}
	s.AddTool(run.Definition(), run.Handle)
	return s
}

// CachedQueryTool returns the cached result of a static query.
type CachedQueryTool struct {
	Cache *cache.Cache
}

func (t *CachedQueryTool) Definition() mcp.Tool {
	return mcp.NewTool("cached_query",
		mcp.WithDescription("Return the cached result of a query, keyed by the exact query text. "+
			"Fails if the query has not been extracted and cached by a build."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query text exactly as passed to the hook")),
	)
}

func (t *CachedQueryTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := ident.Hash(query)
	v, err := t.Cache.GetValue(id)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no cached result for query (id %s)", id)), nil
		}
		return nil, err
	}
	return mcp.NewToolResultText(render(v)), nil
}

// RunQueryTool evaluates a query against the current dataset.
type RunQueryTool struct {
	Adapter *eval.Adapter
	Dataset dataset.Source
}

func (t *RunQueryTool) Definition() mcp.Tool {
	return mcp.NewTool("run_query",
		mcp.WithDescription("Resolve fragments in a query and evaluate it against the current dataset."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query text; ${name} fragment placeholders are resolved")),
		mcp.WithString("params", mcp.Description("JSON object of $parameters")),
	)
}

func (t *RunQueryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var params map[string]any
	if raw := req.GetString("params", ""); raw != "" {
		v, err := oj.ParseString(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid params: %v", err)), nil
		}
		m, ok := v.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("params must be a JSON object"), nil
		}
		params = m
	}

	text, err := t.Adapter.Resolve("mcp", query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodes, err := t.Dataset.Nodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	v, err := t.Adapter.EvaluateParams(ctx, "mcp", text, nodes, params)
	if err != nil {
		var eerr *eval.EvalError
		if errors.As(err, &eerr) {
			return mcp.NewToolResultError(eerr.Err.Error()), nil
		}
		return nil, err
	}
	return mcp.NewToolResultText(render(v)), nil
}

func render(v any) string {
	return oj.JSON(v, &ojg.Options{Indent: 2, Sort: true})
}
