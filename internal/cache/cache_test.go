package cache

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmcaloon/groqcache/internal/ident"
)

func newMemCache(t *testing.T) *Cache {
	t.Helper()
	c := New(memfs.New(), ".cache/groq")
	require.NoError(t, c.Reset())
	return c
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	c := newMemCache(t)
	payload := []any{
		map[string]any{"title": "Hello", "rank": 2.0, "tags": []any{"a", "b"}},
		nil,
	}
	id := ident.Hash("*[_type == 'post']")
	require.NoError(t, c.Put(id, payload))

	got, err := c.GetValue(id)
	require.NoError(t, err)
	assert.Equal(t, any(payload), got)
	assert.True(t, c.Has(id))
}

func TestCache_PageEntryFormat(t *testing.T) {
	c := newMemCache(t)
	id := ident.Hash("Page.js")
	require.NoError(t, c.Put(id, PageEntry{Unprocessed: "*[_type=='post']{title}"}))

	raw, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, `{"unprocessed":"*[_type=='post']{title}"}`, string(raw))

	entry, err := c.GetPage(id)
	require.NoError(t, err)
	assert.Equal(t, "*[_type=='post']{title}", entry.Unprocessed)
}

func TestCache_RawPayloadWrittenAsIs(t *testing.T) {
	c := newMemCache(t)
	id := ident.Hash("raw")
	require.NoError(t, c.Put(id, json.RawMessage(`[1,2,3]`)))
	raw, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", string(raw))
}

func TestCache_LastWriteWins(t *testing.T) {
	c := newMemCache(t)
	id := ident.Hash("same")
	require.NoError(t, c.Put(id, "first"))
	require.NoError(t, c.Put(id, "second"))
	got, err := c.GetValue(id)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	ids, err := c.Entries()
	require.NoError(t, err)
	assert.Equal(t, []ident.Identifier{id}, ids, "no temporary files are left behind")
}

func TestCache_NotFound(t *testing.T) {
	c := newMemCache(t)
	_, err := c.Get(ident.Hash("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, c.Has(ident.Hash("missing")))

	v, ok := c.Lookup("missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestCache_ResetClearsEntries(t *testing.T) {
	c := newMemCache(t)
	id := ident.Hash("x")
	require.NoError(t, c.Put(id, 1))
	require.NoError(t, c.WriteOptions(map[string]string{"mode": "development"}))

	require.NoError(t, c.Reset())
	assert.False(t, c.Has(id))
	ids, err := c.Entries()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCache_LookupHashesQueryText(t *testing.T) {
	c := newMemCache(t)
	query := `*[_type == "job"]{name}`
	require.NoError(t, c.Put(ident.Hash(query), []any{map[string]any{"name": "Smith"}}))

	v, ok := c.Lookup(query)
	require.True(t, ok)
	assert.Equal(t, []any{map[string]any{"name": "Smith"}}, v)
}

func TestCache_OptionsFile(t *testing.T) {
	fs := memfs.New()
	c := New(fs, "groq")
	require.NoError(t, c.WriteOptions(map[string]string{"mode": "production"}))
	data, err := util.ReadFile(fs, "groq/"+OptionsFile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"production"}`, string(data))
}

func TestOpen_OnDisk(t *testing.T) {
	root := filepath.Join(t.TempDir(), "public", "static", "groq")
	c := Open(root)
	require.NoError(t, c.Reset())
	id := ident.Hash("abc")
	require.NoError(t, c.Put(id, map[string]any{"ok": true}))

	assert.FileExists(t, filepath.Join(root, "78af5f94892f3950.json"))
	v, ok := c.Lookup("abc")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"ok": true}, v)
}
