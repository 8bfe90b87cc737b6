package groq

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokParam
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string // identifier, parameter name, decoded string or punctuation
	num  any    // int64 or float64 for tokNumber
	pos  int
}

// punctuation sorted longest first so that multi-character operators win.
var punctuation = []string{
	"...", "..", "->", "==", "!=", "<=", ">=", "&&", "||",
	"*", "@", "^", "[", "]", "{", "}", "(", ")", ",", ":", ".",
	"|", "!", "<", ">", "+", "-", "/", "%",
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for {
		// whitespace and // comments
		for i < len(src) {
			c := src[i]
			if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
				i++
				continue
			}
			if strings.HasPrefix(src[i:], "//") {
				for i < len(src) && src[i] != '\n' {
					i++
				}
				continue
			}
			break
		}
		if i >= len(src) {
			toks = append(toks, token{kind: tokEOF, pos: i})
			return toks, nil
		}

		start := i
		c := src[i]
		switch {
		case isIdentStart(c):
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '$':
			i++
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			if i == start+1 {
				return nil, syntaxErrorf(start, "expected parameter name after $")
			}
			toks = append(toks, token{kind: tokParam, text: src[start+1 : i], pos: start})
		case c == '"' || c == '\'':
			s, n, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			i = n
			toks = append(toks, token{kind: tokString, text: s, pos: start})
		case isDigit(c):
			num, n, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			i = n
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: num, pos: start})
		default:
			matched := ""
			for _, p := range punctuation {
				if strings.HasPrefix(src[i:], p) {
					matched = p
					break
				}
			}
			if matched == "" {
				r, _ := utf8.DecodeRuneInString(src[i:])
				return nil, syntaxErrorf(start, "unexpected character %q", r)
			}
			i += len(matched)
			toks = append(toks, token{kind: tokPunct, text: matched, pos: start})
		}
	}
}

func lexString(src string, i int) (string, int, error) {
	quote := src[i]
	start := i
	i++
	var b strings.Builder
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\\':
			if i+1 >= len(src) {
				return "", 0, syntaxErrorf(i, "unterminated escape sequence")
			}
			i++
			switch e := src[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'u':
				if i+4 >= len(src) {
					return "", 0, syntaxErrorf(i, "invalid unicode escape")
				}
				r, err := strconv.ParseUint(src[i+1:i+5], 16, 32)
				if err != nil {
					return "", 0, syntaxErrorf(i, "invalid unicode escape")
				}
				b.WriteRune(rune(r))
				i += 4
			default:
				b.WriteByte(e)
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, syntaxErrorf(start, "unterminated string")
}

func lexNumber(src string, i int) (any, int, error) {
	start := i
	float := false
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	// A '.' only starts a fraction when a digit follows, so 0..2 lexes as a range.
	if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
		float = true
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			float = true
			i = j
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
	}
	text := src[start:i]
	if !float {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, i, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, 0, syntaxErrorf(start, "invalid number %q", text)
	}
	return f, i, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
