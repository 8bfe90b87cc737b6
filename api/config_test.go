package api

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{Root: "/site", Hook: "useQuery"}.WithDefaults()
	assert.Equal(t, Development, c.Mode)
	assert.Equal(t, DefaultExtensions, c.Extensions)
	assert.Equal(t, "groqQuery", c.PageExport)
	assert.Equal(t, "useQuery", c.Hook)
	assert.Equal(t, 100, c.DebounceMillis)

	off := Config{DebounceMillis: -1}.WithDefaults()
	assert.Equal(t, -1, off.DebounceMillis)
}

func TestConfig_Paths(t *testing.T) {
	c := Config{Root: "/site"}.WithDefaults()
	assert.Equal(t, filepath.Join("/site", "src"), c.SourceDir())
	assert.Equal(t, filepath.Join("/site", ".cache", "groq"), c.CacheRoot())
	assert.Empty(t, c.FragmentsPath())
	assert.Empty(t, c.DatasetPath())
	assert.Empty(t, c.PagesDBPath())

	c.Mode = Production
	assert.Equal(t, filepath.Join("/site", "public", "static", "groq"), c.CacheRoot())

	c.CacheDir = "out"
	c.SourceRoot = "app"
	c.FragmentsDir = "/shared/fragments"
	c.Dataset = "data.json"
	assert.Equal(t, filepath.Join("/site", "out"), c.CacheRoot())
	assert.Equal(t, filepath.Join("/site", "app"), c.SourceDir())
	assert.Equal(t, "/shared/fragments", c.FragmentsPath())
	assert.Equal(t, filepath.Join("/site", "data.json"), c.DatasetPath())
}

func TestPage_CloneIsIndependent(t *testing.T) {
	p := Page{Path: "/a", Component: "src/A.js", Context: map[string]any{"slug": "a"}}
	c := p.Clone()
	c.Context["data"] = 1
	assert.NotContains(t, p.Context, "data")
	assert.Equal(t, "a", c.Context["slug"])
}

func TestConfig_ValidateRejectsCacheOverSources(t *testing.T) {
	ok := Config{Root: "/site"}.WithDefaults()
	assert.NoError(t, ok.Validate())
	ok.CacheDir = "src/.groq"
	assert.NoError(t, ok.Validate())
	ok.CacheDir = "/tmp/groq"
	assert.NoError(t, ok.Validate())

	for _, dir := range []string{".", "src", "/", "/site/", "../"} {
		c := Config{Root: "/site", CacheDir: dir}.WithDefaults()
		assert.Error(t, c.Validate(), dir)
	}

	c := Config{Root: "/site", SourceRoot: "app/src", CacheDir: "app"}.WithDefaults()
	err := c.Validate()
	assert.ErrorContains(t, err, "source directory")
}
