package eval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmcaloon/groqcache/internal/fragments"
)

var posts = []any{
	map[string]any{"_type": "post", "title": "One", "world": "w1"},
	map[string]any{"_type": "post", "title": "Two", "world": "w2"},
}

func TestAdapter_EvaluateStripsBackticks(t *testing.T) {
	a := New(nil, nil)
	got, err := a.Evaluate(context.Background(), "Post.js", "`*[_type == 'post'].title`", posts)
	require.NoError(t, err)
	assert.Equal(t, []any{"One", "Two"}, got)
}

func TestAdapter_EvalError(t *testing.T) {
	a := New(nil, nil)
	_, err := a.Evaluate(context.Background(), "Broken.js", "*[_type == ", posts)
	var eerr *EvalError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "Broken.js", eerr.File)
	assert.Equal(t, "*[_type ==", eerr.Query)
	assert.True(t, eerr.IsSyntax())
	assert.Contains(t, err.Error(), "Broken.js")
}

type stubEngine struct{ err error }

func (s stubEngine) Evaluate(context.Context, string, []any, map[string]any) (any, error) {
	return nil, s.err
}

func TestAdapter_EngineIsSwappable(t *testing.T) {
	boom := errors.New("boom")
	a := &Adapter{Engine: stubEngine{err: boom}}
	_, err := a.Evaluate(context.Background(), "x.js", "*", nil)
	assert.ErrorIs(t, err, boom)
	var eerr *EvalError
	require.ErrorAs(t, err, &eerr)
	assert.False(t, eerr.IsSyntax())
}

func TestAdapter_ResolveUsesCurrentRegistry(t *testing.T) {
	store := fragments.NewStore(fragments.NewRegistry(fragments.Fragment{Name: "fields", Value: "title"}))
	a := New(store, nil)

	text, err := a.Resolve("x.js", "*[_type == 'post']{ ${fields} }")
	require.NoError(t, err)
	assert.Equal(t, "*[_type == 'post']{ title }", text)

	store.Swap(fragments.NewRegistry(fragments.Fragment{Name: "fields", Value: "world"}))
	text, err = a.Resolve("x.js", "*[_type == 'post']{ ${fields} }")
	require.NoError(t, err)
	assert.Equal(t, "*[_type == 'post']{ world }", text)

	_, err = New(nil, nil).Resolve("x.js", "${fields}")
	assert.ErrorIs(t, err, fragments.ErrMissingFragments)
}

func TestInterpolate(t *testing.T) {
	vars := map[string]any{
		"world":  "w1",
		"limit":  int64(3),
		"draft":  false,
		"nested": map[string]any{"a": 1},
	}
	assert.Equal(t, `*[world == "w1" && $worldId == 1]`, Interpolate(`*[world == $world && $worldId == 1]`, vars))
	assert.Equal(t, `count == "3" && draft == "false"`, Interpolate(`count == $limit && draft == $draft`, vars))
	assert.Equal(t, `$nested && $unknown`, Interpolate(`$nested && $unknown`, vars))
	assert.Equal(t, `*`, Interpolate(`*`, nil))
	assert.Equal(t, `"say \"hi\""`, Interpolate(`$q`, map[string]any{"q": `say "hi"`}))
}

func TestInterpolate_ThenEvaluate(t *testing.T) {
	q := Interpolate(`*[_type == "post" && world == $world][0].title`, map[string]any{"world": "w2"})
	got, err := New(nil, nil).Evaluate(context.Background(), "Page.js", q, posts)
	require.NoError(t, err)
	assert.Equal(t, "Two", got)
}
