package extract

import "fmt"

// Kind distinguishes the two kinds of embedded queries.
type Kind int

const (
	// Page is the single exported query bound to a file.
	Page Kind = iota
	// Static is a query passed to the hook at a call site.
	Static
)

func (k Kind) String() string {
	switch k {
	case Page:
		return "page"
	case Static:
		return "static"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Span is a byte range in a source file.
type Span struct {
	Start uint32
	End   uint32
	Line  uint32 // 0-indexed
	// Dynamic marks a hook call whose first argument is not a literal.
	// Start and End are meaningless for dynamic spans.
	Dynamic bool
}

// Site is one embedded query as written in a source file.
// RawText still contains un-substituted fragment placeholders.
type Site struct {
	Kind    Kind
	File    string
	RawText string
	Span    Span
}
