package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_KnownVectors(t *testing.T) {
	assert.Equal(t, Identifier("78af5f94892f3950"), Hash("abc"))
	assert.Equal(t, Identifier("6f8e84e701ee7b1e"), Hash("Page.js"))
}

func TestHash_Stable(t *testing.T) {
	q := `*[_type == "post"]{title}`
	first := Hash(q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Hash(q))
	}
	assert.Len(t, string(first), 16)
	assert.NotEqual(t, first, Hash(q+" "))
}

func TestIdentifier_FileName(t *testing.T) {
	assert.Equal(t, "78af5f94892f3950.json", Hash("abc").FileName())
}
