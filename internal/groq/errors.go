package groq

import "fmt"

// SyntaxError reports a malformed query. Pos is the byte offset of the
// offending token.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("groq: syntax error at position %d: %s", e.Pos, e.Msg)
}

// RuntimeError reports a failure while evaluating a well-formed query.
type RuntimeError struct {
	Msg string
}

func (e *RuntimeError) Error() string {
	return "groq: " + e.Msg
}

func syntaxErrorf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func runtimeErrorf(format string, args ...any) *RuntimeError {
	return &RuntimeError{Msg: fmt.Sprintf(format, args...)}
}
