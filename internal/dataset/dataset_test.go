package dataset

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestJSONFile_TopLevelArray(t *testing.T) {
	p := write(t, "data.json", `[{"_id":"a","n":1},{"_id":"b","n":2.5}]`)
	nodes, err := Open(p, "").Nodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"_id": "a", "n": int64(1)},
		map[string]any{"_id": "b", "n": 2.5},
	}, nodes)
}

func TestJSONFile_Selector(t *testing.T) {
	p := write(t, "export.json", `{"result":{"documents":[{"_id":"a"},{"_id":"b"}]}}`)
	nodes, err := Open(p, "$.result.documents[*]").Nodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Equal(t, map[string]any{"_id": "b"}, nodes[1])
}

func TestJSONFile_Errors(t *testing.T) {
	_, err := JSONFile{Path: filepath.Join(t.TempDir(), "missing.json")}.Nodes(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	p := write(t, "bad.json", `{"a":`)
	_, err = JSONFile{Path: p}.Nodes(context.Background())
	assert.Error(t, err)
}

func TestNDJSON(t *testing.T) {
	p := write(t, "data.ndjson", "{\"_id\":\"a\"}\n\n{\"_id\":\"b\"}\n")
	src := Open(p, "")
	require.IsType(t, NDJSON{}, src)
	nodes, err := src.Nodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"_id": "a"}, map[string]any{"_id": "b"}}, nodes)
}

func TestSQLite_ResultsTable(t *testing.T) {
	p := filepath.Join(t.TempDir(), "content.db")
	db, err := sql.Open("sqlite", p)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE results (id TEXT PRIMARY KEY, record TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO results (id, record) VALUES ('p1', '{"_id":"p1","_type":"post"}'), ('p2', '{"_id":"p2","_type":"post"}')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src := Open(p, "")
	require.IsType(t, SQLite{}, src)
	nodes, err := src.Nodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Contains(t, nodes, map[string]any{"_id": "p1", "_type": "post"})
}

func TestOpen_EmptyPath(t *testing.T) {
	nodes, err := Open("", "").Nodes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
