package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postTemplate = "import React from 'react';\n" +
	"import { useGroqQuery } from 'groqcache';\n" +
	"\n" +
	"export const groqQuery = `{\n" +
	"  \"post\": *[ _type == \"post\" && _id == $_id ]{ title }[0]\n" +
	"}`;\n" +
	"\n" +
	"export const Post = ({ pageContext }) => {\n" +
	"  const contact = useGroqQuery( `*[ _id == \"settingsContact\" ]{ email }[0]` );\n" +
	"  const menu = useGroqQuery(\"*[_type == 'menu']\");\n" +
	"  return <div>{ pageContext.data.post.title }{ contact.email }</div>;\n" +
	"};\n" +
	"export default Post;\n"

func newTestExtractor() *Extractor {
	return New("groqQuery", "useGroqQuery", nil)
}

func TestExtractor_PageAndStaticQueries(t *testing.T) {
	e := newTestExtractor()
	src := []byte(postTemplate)

	page, err := e.PageQuery("src/templates/Post.js", src)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, Page, page.Kind)
	assert.Equal(t, "src/templates/Post.js", page.File)
	assert.Equal(t, "{\n  \"post\": *[ _type == \"post\" && _id == $_id ]{ title }[0]\n}", page.RawText)
	assert.Equal(t, uint32(3), page.Span.Line)

	statics, err := e.StaticQueries("src/templates/Post.js", src)
	require.NoError(t, err)
	require.Len(t, statics, 2)
	assert.Equal(t, `*[ _id == "settingsContact" ]{ email }[0]`, statics[0].RawText)
	assert.Equal(t, `*[_type == 'menu']`, statics[1].RawText)
	for _, s := range statics {
		assert.Equal(t, Static, s.Kind)
	}
}

func TestExtractor_DoubleQuotedPageQuery(t *testing.T) {
	e := newTestExtractor()
	src := []byte("export const groqQuery = \"*[_type=='post']{title}\";\n")

	page, err := e.PageQuery("Page.js", src)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, "*[_type=='post']{title}", page.RawText)
}

func TestExtractor_FragmentPlaceholderKeptVerbatim(t *testing.T) {
	e := newTestExtractor()
	src := []byte("import { jobs } from '../fragments';\n" +
		"export const groqQuery = `{ \"worlds\": *[ _type == \"world\" ]{ name, \"jobs\": ${jobs} } }`;\n")

	page, err := e.PageQuery("src/pages/index.js", src)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, `{ "worlds": *[ _type == "world" ]{ name, "jobs": ${jobs} } }`, page.RawText)
}

func TestExtractor_FirstExportWins(t *testing.T) {
	e := newTestExtractor()
	src := []byte("export const groqQuery = `*[_type == \"a\"]`;\n" +
		"export let groqQuery2 = `unrelated`;\n" +
		"export var groqQuery = `*[_type == \"b\"]`;\n")

	page, err := e.PageQuery("dup.js", src)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, `*[_type == "a"]`, page.RawText)
}

func TestExtractor_NestedDeclarationIgnored(t *testing.T) {
	e := newTestExtractor()
	// The marker matches textually but the export is not top-level code.
	src := []byte("// export const groqQuery = `*`\n" +
		"function f() { const groqQuery = `*[_type == \"x\"]`; return groqQuery; }\n")

	page, err := e.PageQuery("nested.js", src)
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestExtractor_NoMarkerSkipsParse(t *testing.T) {
	e := newTestExtractor()
	e.Locator = failingLocator{t: t}
	src := []byte("export const Header = () => null;\n")

	page, err := e.PageQuery("Header.js", src)
	require.NoError(t, err)
	assert.Nil(t, page)

	statics, err := e.StaticQueries("Header.js", src)
	require.NoError(t, err)
	assert.Empty(t, statics)
}

func TestExtractor_DynamicHookArgumentSkipped(t *testing.T) {
	e := newTestExtractor()
	src := []byte("const q = `*`;\n" +
		"const a = useGroqQuery(q);\n" +
		"const b = useGroqQuery(`*[_type == \"b\"]`);\n")

	statics, err := e.StaticQueries("dyn.js", src)
	require.NoError(t, err)
	require.Len(t, statics, 1)
	assert.Equal(t, `*[_type == "b"]`, statics[0].RawText)
}

func TestExtractor_ParseErrorIsReported(t *testing.T) {
	e := newTestExtractor()
	src := []byte("export const groqQuery = `*`;\nfunction ( {\n")

	page, err := e.PageQuery("broken.js", src)
	assert.Nil(t, page)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken.js", perr.File)
	assert.Contains(t, perr.Error(), "broken.js:")
}

func TestExtractor_TypeScriptAndTSX(t *testing.T) {
	e := newTestExtractor()

	ts := []byte("export const groqQuery: string = `*[_type == \"post\"]`;\n")
	page, err := e.PageQuery("Post.ts", ts)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, `*[_type == "post"]`, page.RawText)

	tsx := []byte("export const Card = ({ id }: { id: string }) => {\n" +
		"  const data = useGroqQuery(`*[_id == \"card\"]`);\n" +
		"  return <div>{id}</div>;\n" +
		"};\n")
	statics, err := e.StaticQueries("Card.tsx", tsx)
	require.NoError(t, err)
	require.Len(t, statics, 1)
	assert.Equal(t, `*[_id == "card"]`, statics[0].RawText)
}

func TestLanguageFor(t *testing.T) {
	for _, p := range []string{"a.js", "a.jsx", "a.mjs", "a.ts", "a.tsx"} {
		_, ok := LanguageFor(p)
		assert.True(t, ok, p)
	}
	for _, p := range []string{"types.d.ts", "a.go", "a.json", "README"} {
		_, ok := LanguageFor(p)
		assert.False(t, ok, p)
	}
}

type failingLocator struct{ t *testing.T }

func (l failingLocator) Locate([]byte, Language, ...Target) ([][]Span, error) {
	l.t.Fatal("locator must not run when the textual pre-check fails")
	return nil, nil
}

type countingLocator struct {
	Locator
	calls int
}

func (l *countingLocator) Locate(src []byte, lang Language, targets ...Target) ([][]Span, error) {
	l.calls++
	return l.Locator.Locate(src, lang, targets...)
}

func TestExtractor_ExtractParsesOnce(t *testing.T) {
	e := newTestExtractor()
	loc := &countingLocator{Locator: e.Locator}
	e.Locator = loc

	src := []byte(postTemplate + "const q = `*`;\nconst d = useGroqQuery(q);\n")
	sites, err := e.Extract("src/templates/Post.js", src)
	require.NoError(t, err)
	assert.Equal(t, 1, loc.calls)
	require.NotNil(t, sites.Page)
	assert.Len(t, sites.Static, 2)
	require.Len(t, sites.Dynamic, 1)
	assert.Equal(t, uint32(14), sites.Dynamic[0].Line)

	loc.calls = 0
	_, err = e.Extract("broken.js", []byte("export const groqQuery = `*`;\nuseGroqQuery(`*`);\nfunction ( {\n"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken.js", perr.File)
	assert.Equal(t, 1, loc.calls)
}
