package pages

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/kmcaloon/groqcache/api"
)

const pagesSchema = `
	CREATE TABLE IF NOT EXISTS pages (
		path TEXT PRIMARY KEY,
		component TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_pages_component ON pages(component);
`

// SQLiteRegistry persists pages in a SQLite database so that separate
// build and watch processes share them.
type SQLiteRegistry struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the pages database at path.
func OpenSQLite(path string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on pages db: %w", err)
	}
	if _, err := db.Exec(pagesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create pages schema: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

func (r *SQLiteRegistry) Pages(ctx context.Context) ([]api.Page, error) {
	return r.query(ctx, "SELECT path, component, context FROM pages ORDER BY path")
}

func (r *SQLiteRegistry) PagesForComponent(ctx context.Context, component string) ([]api.Page, error) {
	return r.query(ctx, "SELECT path, component, context FROM pages WHERE component = ? ORDER BY path", component)
}

func (r *SQLiteRegistry) CreatePage(ctx context.Context, page api.Page) error {
	raw, err := json.Marshal(page.Context)
	if err != nil {
		return fmt.Errorf("encode context of %s: %w", page.Path, err)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO pages (path, component, context) VALUES (?, ?, ?)",
		page.Path, page.Component, string(raw))
	if err != nil {
		return fmt.Errorf("create page %s: %w", page.Path, err)
	}
	return nil
}

func (r *SQLiteRegistry) DeletePage(ctx context.Context, page api.Page) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM pages WHERE path = ?", page.Path); err != nil {
		return fmt.Errorf("delete page %s: %w", page.Path, err)
	}
	return nil
}

func (r *SQLiteRegistry) query(ctx context.Context, q string, args ...any) ([]api.Page, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []api.Page
	for rows.Next() {
		var p api.Page
		var raw string
		if err := rows.Scan(&p.Path, &p.Component, &raw); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		v, err := oj.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse context of %s: %w", p.Path, err)
		}
		if m, ok := v.(map[string]any); ok {
			p.Context = m
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}
