// Package ident derives the stable identifiers used as cache file names.
package ident

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Identifier is a 16 character hex digest.
type Identifier string

// Hash returns the identifier of text. The result is stable across processes.
func Hash(text string) Identifier {
	return Identifier(fmt.Sprintf("%016x", xxh3.HashString(text)))
}

// String implements fmt.Stringer.
func (id Identifier) String() string { return string(id) }

// FileName returns the cache file name for id.
func (id Identifier) FileName() string { return string(id) + ".json" }
