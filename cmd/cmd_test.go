package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmcaloon/groqcache/internal/ident"
)

var project = map[string]string{
	"src/pages/Post.js": "export const groqQuery = `*[_type == \"post\" && slug == $slug][0]{title}`;\n" +
		"export default function Post() { return null; }\n",
	"src/components/Nav.js": "export const Nav = () => {\n" +
		"  const posts = useGroqQuery(`*[_type == \"post\"]{title}`);\n" +
		"  return null;\n};\n",
	"src/components/First.js": "export const First = () => {\n" +
		"  const first = useGroqQuery(`*[_type == \"post\"][0]{${postFields}}`);\n" +
		"  return null;\n};\n",
	"fragments/index.js": "export const postFields = `title`;\n",
	"data.json": `[{"_id":"p1","_type":"post","slug":"hello","title":"Hello"},` +
		`{"_id":"a1","_type":"author","name":"Ann"}]`,
}

func newProject(t *testing.T, extra map[string]string) string {
	t.Helper()
	t.Setenv("NODE_ENV", "")
	root := t.TempDir()
	for _, files := range []map[string]string{project, extra} {
		for name, content := range files {
			path := filepath.Join(root, name)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		}
	}
	return root
}

func run(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(append([]string{"--root", root, "--dataset", "data.json", "--fragments", "fragments"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func parseOutput(t *testing.T, out string) any {
	t.Helper()
	v, err := oj.ParseString(out)
	require.NoError(t, err)
	return v
}

func TestBuild_ThenGet(t *testing.T) {
	root := newProject(t, nil)
	out, err := run(t, root, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "Cached 1 page and 2 static queries from 3 files")

	assert.FileExists(t, filepath.Join(root, ".cache", "groq", string(ident.Hash("src/pages/Post.js"))+".json"))
	assert.FileExists(t, filepath.Join(root, ".cache", "groq", "options.json"))

	out, err = run(t, root, "get", `*[_type == "post"]{title}`)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"title": "Hello"}}, parseOutput(t, out))

	out, err = run(t, root, "get", `*[_type == "post"][0]{title}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "Hello"}, parseOutput(t, out))
}

func TestGet_MissingResult(t *testing.T) {
	root := newProject(t, nil)
	_, err := run(t, root, "build")
	require.NoError(t, err)

	_, err = run(t, root, "get", `*[_type == "job"]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cached result")
}

func TestBuild_ModeSelectsCacheRoot(t *testing.T) {
	t.Run("config file", func(t *testing.T) {
		root := newProject(t, map[string]string{ConfigFile: "mode = \"production\"\n"})
		_, err := run(t, root, "build")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(root, "public", "static", "groq", "options.json"))
	})

	t.Run("flag wins over config file", func(t *testing.T) {
		root := newProject(t, map[string]string{ConfigFile: "mode = \"production\"\n"})
		_, err := run(t, root, "--mode", "development", "build")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(root, ".cache", "groq", "options.json"))
		assert.NoDirExists(t, filepath.Join(root, "public"))
	})

	t.Run("NODE_ENV", func(t *testing.T) {
		root := newProject(t, nil)
		t.Setenv("NODE_ENV", "production")
		_, err := run(t, root, "build")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(root, "public", "static", "groq", "options.json"))
	})

	t.Run("explicit cache dir", func(t *testing.T) {
		root := newProject(t, map[string]string{ConfigFile: "cache_dir = \"out/results\"\n"})
		_, err := run(t, root, "build")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(root, "out", "results", "options.json"))
	})
}

func TestUnknownModeRejected(t *testing.T) {
	root := newProject(t, nil)
	_, err := run(t, root, "--mode", "staging", "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestCacheDirOverProjectRejected(t *testing.T) {
	for _, dir := range []string{".", "src"} {
		root := newProject(t, nil)
		_, err := run(t, root, "--cache-dir", dir, "build")
		require.Error(t, err, dir)
		assert.Contains(t, err.Error(), "cache directory")
		assert.FileExists(t, filepath.Join(root, "src", "pages", "Post.js"))
	}
}

func TestMissingExplicitConfigRejected(t *testing.T) {
	root := newProject(t, nil)
	_, err := run(t, root, "--config", filepath.Join(root, "nope.hcl"), "build")
	require.Error(t, err)
}

func TestQuery_ResolvesFragmentsAndParams(t *testing.T) {
	root := newProject(t, nil)

	out, err := run(t, root, "query", `*[_type == "post" && slug == $slug][0].title`, "--param", "slug=hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", parseOutput(t, out))

	out, err = run(t, root, "query", `*[_type == "post"][0]{${postFields}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "Hello"}, parseOutput(t, out))

	_, err = run(t, root, "query", `*[_type == `)
	require.Error(t, err)
}

func TestPages_AddListAndRefresh(t *testing.T) {
	root := newProject(t, nil)
	db := []string{"--pages-db", "pages.db"}

	_, err := run(t, root, append(db, "build")...)
	require.NoError(t, err)

	out, err := run(t, root, append(db, "pages", "add", "--path", "/hello", "--component", "src/pages/Post.js", "--context", "slug=hello")...)
	require.NoError(t, err)
	assert.Contains(t, out, "/hello\tsrc/pages/Post.js\t")
	assert.Contains(t, out, `"data":{"title":"Hello"}`)

	out, err = run(t, root, append(db, "pages", "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "/hello\tsrc/pages/Post.js\t")
	assert.Contains(t, out, `"slug":"hello"`)

	out, err = run(t, root, append(db, "build")...)
	require.NoError(t, err)
	assert.Contains(t, out, "1 pages updated")
}

func TestPages_RequireRegistry(t *testing.T) {
	root := newProject(t, nil)
	_, err := run(t, root, "pages", "list")
	require.ErrorIs(t, err, errNoPagesDB)
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"slug=hello", "n=3", "ok=true", "tags=[\"a\"]", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"slug":  "hello",
		"n":     int64(3),
		"ok":    true,
		"tags":  []any{"a"},
		"empty": "",
	}, got)

	_, err = parseParams([]string{"novalue"})
	require.Error(t, err)
}

func TestLint(t *testing.T) {
	root := newProject(t, nil)
	_, err := run(t, root, "lint")
	require.NoError(t, err)

	root = newProject(t, map[string]string{
		"src/components/Bad.js": "const q = useGroqQuery(`*[_type == `);\n",
	})
	out, err := run(t, root, "lint")
	require.Error(t, err)
	assert.Contains(t, out, "src/components/Bad.js:1: static query: groq: syntax error")
}
