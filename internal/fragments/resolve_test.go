package fragments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_NoPlaceholdersUnchanged(t *testing.T) {
	registries := []*Registry{
		nil,
		NewRegistry(),
		NewRegistry(Fragment{Name: "post", Value: "title"}),
	}
	for _, q := range []string{"", "*", `*[_type == "post"]{title}`, "$ { not a placeholder }", "post"} {
		for _, reg := range registries {
			got, err := Resolve(q, reg)
			require.NoError(t, err)
			assert.Equal(t, q, got)
		}
	}
}

func TestResolve_MissingRegistry(t *testing.T) {
	_, err := Resolve("*{ ${jobs} }", nil)
	assert.ErrorIs(t, err, ErrMissingFragments)

	_, err = Resolve("*{ ${jobs} }", NewRegistry())
	assert.ErrorIs(t, err, ErrMissingFragments)
}

func TestResolve_StringFragmentsReplacedGlobally(t *testing.T) {
	reg := NewRegistry(
		Fragment{Name: "jobs", Kind: String, Value: `*[_type == "job"]{name}`},
		Fragment{Name: "title", Kind: String, Value: "title"},
	)
	got, err := Resolve(`{ "a": ${jobs}, "b": ${jobs}, ${title} }`, reg)
	require.NoError(t, err)
	assert.Equal(t, `{ "a": *[_type == "job"]{name}, "b": *[_type == "job"]{name}, title }`, got)
}

func TestResolve_UnknownPlaceholderPassesThrough(t *testing.T) {
	reg := NewRegistry(Fragment{Name: "title", Value: "title"})
	got, err := Resolve("*{ ${title}, ${missing} }", reg)
	require.NoError(t, err)
	assert.Equal(t, "*{ title, ${missing} }", got)
	assert.Equal(t, []string{"missing"}, Unresolved(got))
}

func TestResolve_SinglePass(t *testing.T) {
	reg := NewRegistry(
		Fragment{Name: "outer", Value: "{ ${inner} }"},
		Fragment{Name: "inner", Value: "title"},
	)
	got, err := Resolve("*${outer}", reg)
	require.NoError(t, err)
	assert.Equal(t, "*{ ${inner} }", got)
}

func TestResolve_CallableFragmentRejected(t *testing.T) {
	reg := NewRegistry(
		Fragment{Name: "byType", Kind: Callable, Value: "type => `*[_type == \"${type}\"]`"},
		Fragment{Name: "title", Value: "title"},
	)
	_, err := Resolve("${byType}{ ${title} }", reg)
	var cerr *CallableFragmentError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "byType", cerr.Name)

	// A callable that is not referenced does not matter.
	got, err := Resolve("*{ ${title} }", reg)
	require.NoError(t, err)
	assert.Equal(t, "*{ title }", got)
}

func TestUnresolved_Distinct(t *testing.T) {
	assert.Nil(t, Unresolved("*"))
	assert.Equal(t, []string{"a", "b"}, Unresolved("${a} ${b} ${a}"))
}

func TestStore_SwapReplacesWholesale(t *testing.T) {
	first := NewRegistry(Fragment{Name: "a", Value: "1"}, Fragment{Name: "b", Value: "2"})
	store := NewStore(first)

	second := NewRegistry(Fragment{Name: "a", Value: "3"})
	prev := store.Swap(second)
	assert.Same(t, first, prev)

	cur := store.Current()
	assert.Same(t, second, cur)
	assert.Greater(t, cur.Version(), first.Version())
	_, ok := cur.Lookup("b")
	assert.False(t, ok, "fragments are replaced, not merged")
	f, ok := cur.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "3", f.Value)
}
