package extract

import "fmt"

// ParseError reports a source file whose syntax tree contains errors.
type ParseError struct {
	File    string
	Line    uint32 // 0-indexed
	Column  uint32 // 0-indexed
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line+1, e.Column+1, e.Message)
}
