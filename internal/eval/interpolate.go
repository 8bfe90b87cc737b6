package eval

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var variableRe = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)\b`)

// Interpolate replaces $key tokens with the quoted value of vars[key] in a
// single pass. Strings are JSON-quoted, numbers and booleans are quoted as
// their text and nil becomes null. Composite values and unknown keys leave
// the token in place.
func Interpolate(text string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(text, "$") {
		return text
	}
	return variableRe.ReplaceAllStringFunc(text, func(tok string) string {
		v, ok := vars[tok[1:]]
		if !ok {
			return tok
		}
		quoted, ok := quote(v)
		if !ok {
			return tok
		}
		return quoted
	})
}

func quote(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64, json.Number:
		return fmt.Sprintf("%q", fmt.Sprint(v)), true
	case nil:
		return "null", true
	}
	return "", false
}
