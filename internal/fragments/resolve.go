package fragments

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingFragments is returned when a query uses placeholders but no
// fragments are loaded. Callers skip the query.
var ErrMissingFragments = errors.New("query contains fragments but no index provided")

// CallableFragmentError reports a placeholder bound to a function-valued
// fragment. Function fragments are not evaluated.
type CallableFragmentError struct {
	Name string
}

func (e *CallableFragmentError) Error() string {
	return fmt.Sprintf("fragment %q is a function; only string fragments can be substituted", e.Name)
}

// UnresolvedPlaceholderError lists placeholders left in a query because no
// fragment of that name exists. It is a warning: the text is still evaluated.
type UnresolvedPlaceholderError struct {
	Names []string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("unresolved fragment placeholders: %s", strings.Join(e.Names, ", "))
}

var placeholderRe = regexp.MustCompile(`\$\{\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\}`)

// HasPlaceholders reports whether text contains placeholder syntax.
func HasPlaceholders(text string) bool {
	return strings.Contains(text, "${")
}

// Placeholder returns the placeholder form of a fragment name.
func Placeholder(name string) string {
	return "${" + name + "}"
}

// Resolve substitutes every ${name} placeholder whose name is a string
// fragment in reg. Substitution is a single textual pass: fragment values are
// not scanned again. Unknown names are left in place.
func Resolve(text string, reg *Registry) (string, error) {
	if !HasPlaceholders(text) {
		return text, nil
	}
	if reg.Len() == 0 {
		return "", ErrMissingFragments
	}

	type replacement struct {
		placeholder string
		value       string
	}
	var pairs []replacement
	for _, name := range reg.names {
		if !strings.Contains(text, name) {
			continue
		}
		p := Placeholder(name)
		if !strings.Contains(text, p) {
			continue
		}
		f := reg.byName[name]
		if f.Kind == Callable {
			return "", &CallableFragmentError{Name: name}
		}
		pairs = append(pairs, replacement{placeholder: p, value: f.Value})
	}
	if len(pairs) == 0 {
		return text, nil
	}

	// A Replacer scans the original text once, so values containing other
	// placeholders are left untouched.
	oldnew := make([]string, 0, len(pairs)*2)
	for _, r := range pairs {
		oldnew = append(oldnew, r.placeholder, r.value)
	}
	return strings.NewReplacer(oldnew...).Replace(text), nil
}

// Unresolved returns the distinct placeholder names still present in text,
// in order of first appearance.
func Unresolved(text string) []string {
	if !HasPlaceholders(text) {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}
