// Package dataset loads the content nodes queries run against.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

// Source yields a fresh snapshot of all nodes. It is called once per build
// and once per reconciliation; results are never cached here.
type Source interface {
	Nodes(ctx context.Context) ([]any, error)
}

// Static is a fixed set of nodes.
type Static []any

func (s Static) Nodes(context.Context) ([]any, error) {
	return []any(s), nil
}

// JSONFile reads nodes from a JSON document. Selector is a JSONPath
// expression selecting the nodes; when empty a top-level array is used
// as-is and any other value becomes a single node.
type JSONFile struct {
	Path     string
	Selector string
}

func (j JSONFile) Nodes(ctx context.Context) ([]any, error) {
	data, err := os.ReadFile(j.Path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", j.Path, err)
	}
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", j.Path, err)
	}
	return selectNodes(root, j.Selector)
}

// NDJSON reads one node per line. Blank lines are ignored.
type NDJSON struct {
	Path string
}

func (n NDJSON) Nodes(ctx context.Context) ([]any, error) {
	f, err := os.Open(n.Path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", n.Path, err)
	}
	defer func() { _ = f.Close() }()

	var nodes []any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		v, err := oj.Parse(b)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", n.Path, line, err)
		}
		nodes = append(nodes, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", n.Path, err)
	}
	return nodes, nil
}

// SQLite reads JSON records from the results table of a database.
type SQLite struct {
	Path string
}

func (s SQLite) Nodes(ctx context.Context) ([]any, error) {
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", s.Path, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.QueryContext(ctx, "SELECT record FROM results")
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var nodes []any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		v, err := oj.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse record json: %w", err)
		}
		nodes = append(nodes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return nodes, nil
}

func selectNodes(root any, selector string) ([]any, error) {
	if selector == "" {
		if arr, ok := root.([]any); ok {
			return arr, nil
		}
		return []any{root}, nil
	}
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return x.Get(root), nil
}

// Open picks a Source by file extension: .db/.sqlite/.sqlite3 read the
// results table, .ndjson/.jsonl read line-delimited records and anything
// else is read as a JSON document. An empty path yields an empty dataset.
func Open(path, selector string) Source {
	if path == "" {
		return Static(nil)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return SQLite{Path: path}
	case ".ndjson", ".jsonl":
		return NDJSON{Path: path}
	}
	return JSONFile{Path: path, Selector: selector}
}
