package groq

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strings"
)

type scope struct {
	this   any
	parent *scope
}

func (s *scope) child(v any) *scope {
	return &scope{this: v, parent: s}
}

type evaluator struct {
	ctx     context.Context
	dataset []any
	params  map[string]any
	byID    map[string]any
	steps   int
}

// Eval evaluates a parsed query against dataset.
func Eval(ctx context.Context, n Node, dataset []any, params map[string]any) (any, error) {
	e := &evaluator{ctx: ctx, dataset: dataset, params: params}
	root := &scope{this: nil}
	return e.eval(n, root)
}

func (e *evaluator) tick() error {
	e.steps++
	if e.steps%256 == 0 {
		return e.ctx.Err()
	}
	return nil
}

func (e *evaluator) eval(n Node, s *scope) (any, error) {
	switch n := n.(type) {
	case Everything:
		return e.dataset, nil
	case This:
		return s.this, nil
	case Parent:
		if s.parent == nil {
			return nil, nil
		}
		return s.parent.this, nil
	case Param:
		v, ok := e.params[n.Name]
		if !ok {
			return nil, runtimeErrorf("param $%s referenced, but not provided", n.Name)
		}
		return v, nil
	case Literal:
		return n.Value, nil
	case ArrayLit:
		out := make([]any, 0, len(n.Elems))
		for _, el := range n.Elems {
			v, err := e.eval(el.Value, s)
			if err != nil {
				return nil, err
			}
			if arr, ok := v.([]any); ok && el.Spread {
				out = append(out, arr...)
				continue
			}
			out = append(out, v)
		}
		return out, nil
	case Attribute:
		if n.Base == nil {
			return attribute(s.this, n.Name), nil
		}
		v, err := e.eval(n.Base, s)
		if err != nil {
			return nil, err
		}
		return mapArray(v, func(x any) any { return attribute(x, n.Name) }), nil
	case Deref:
		v, err := e.eval(n.Base, s)
		if err != nil {
			return nil, err
		}
		return mapArray(v, e.deref), nil
	case Filter:
		return e.filter(n, s)
	case Index:
		v, err := e.eval(n.Base, s)
		if err != nil {
			return nil, err
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, nil
		}
		i := n.Index
		if i < 0 {
			i += len(arr)
		}
		if i < 0 || i >= len(arr) {
			return nil, nil
		}
		return arr[i], nil
	case Slice:
		v, err := e.eval(n.Base, s)
		if err != nil {
			return nil, err
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, nil
		}
		return slice(arr, n.Start, n.End, n.Exclusive), nil
	case Flatten:
		v, err := e.eval(n.Base, s)
		if err != nil {
			return nil, err
		}
		arr, ok := v.([]any)
		if !ok {
			return v, nil
		}
		out := make([]any, 0, len(arr))
		for _, x := range arr {
			if inner, ok := x.([]any); ok {
				out = append(out, inner...)
			} else {
				out = append(out, x)
			}
		}
		return out, nil
	case Projection:
		if n.Base == nil {
			obj, _ := s.this.(map[string]any)
			return e.object(obj, n.Entries, s)
		}
		v, err := e.eval(n.Base, s)
		if err != nil {
			return nil, err
		}
		if arr, ok := v.([]any); ok {
			out := make([]any, 0, len(arr))
			for _, x := range arr {
				if err := e.tick(); err != nil {
					return nil, err
				}
				p, err := e.project(x, n.Entries, s)
				if err != nil {
					return nil, err
				}
				out = append(out, p)
			}
			return out, nil
		}
		return e.project(v, n.Entries, s)
	case Unary:
		v, err := e.eval(n.Operand, s)
		if err != nil {
			return nil, err
		}
		return unary(n.Op, v), nil
	case Binary:
		return e.binary(n, s)
	case Call:
		return e.call(n, s)
	case Order:
		return e.order(n, s)
	}
	return nil, runtimeErrorf("unsupported expression %T", n)
}

func (e *evaluator) filter(n Filter, s *scope) (any, error) {
	v, err := e.eval(n.Base, s)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]any, 0)
	for _, x := range arr {
		if err := e.tick(); err != nil {
			return nil, err
		}
		keep, err := e.eval(n.Cond, s.child(x))
		if err != nil {
			return nil, err
		}
		if keep == true {
			out = append(out, x)
		}
	}
	return out, nil
}

func (e *evaluator) project(v any, entries []Entry, s *scope) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	return e.object(obj, entries, s.child(obj))
}

// object builds the result of a projection. Spread entries copy obj.
func (e *evaluator) object(obj map[string]any, entries []Entry, s *scope) (any, error) {
	out := make(map[string]any, len(entries))
	for _, entry := range entries {
		if entry.Spread {
			for k, val := range obj {
				out[k] = val
			}
			continue
		}
		val, err := e.eval(entry.Value, s)
		if err != nil {
			return nil, err
		}
		out[entry.Key] = val
	}
	return out, nil
}

func (e *evaluator) deref(v any) any {
	ref, ok := attribute(v, "_ref").(string)
	if !ok {
		return nil
	}
	if e.byID == nil {
		e.byID = make(map[string]any, len(e.dataset))
		for _, doc := range e.dataset {
			if id, ok := attribute(doc, "_id").(string); ok {
				e.byID[id] = doc
			}
		}
	}
	return e.byID[ref]
}

func (e *evaluator) binary(n Binary, s *scope) (any, error) {
	left, err := e.eval(n.Left, s)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "&&":
		if left == false {
			return false, nil
		}
	case "||":
		if left == true {
			return true, nil
		}
	}
	right, err := e.eval(n.Right, s)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "&&":
		if right == false {
			return false, nil
		}
		if left == true && right == true {
			return true, nil
		}
		return nil, nil
	case "||":
		if right == true {
			return true, nil
		}
		if left == false && right == false {
			return false, nil
		}
		return nil, nil
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "<", "<=", ">", ">=":
		c, ok := compare(left, right)
		if !ok {
			return nil, nil
		}
		switch n.Op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		}
		return c >= 0, nil
	case "in":
		arr, ok := right.([]any)
		if !ok {
			return nil, nil
		}
		for _, x := range arr {
			if equal(left, x) {
				return true, nil
			}
		}
		return false, nil
	}
	return arithmetic(n.Op, left, right), nil
}

func (e *evaluator) call(n Call, s *scope) (any, error) {
	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := e.eval(a, s)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	switch n.Name {
	case "count":
		if arr, ok := args[0].([]any); ok {
			return int64(len(arr)), nil
		}
		return nil, nil
	case "defined":
		return args[0] != nil, nil
	case "coalesce":
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	case "lower":
		if str, ok := args[0].(string); ok {
			return strings.ToLower(str), nil
		}
		return nil, nil
	case "upper":
		if str, ok := args[0].(string); ok {
			return strings.ToUpper(str), nil
		}
		return nil, nil
	case "references":
		ids := make(map[string]bool)
		for _, a := range args {
			switch v := a.(type) {
			case string:
				ids[v] = true
			case []any:
				for _, x := range v {
					if id, ok := x.(string); ok {
						ids[id] = true
					}
				}
			}
		}
		return references(s.this, ids), nil
	}
	return nil, runtimeErrorf("unknown function %s()", n.Name)
}

func (e *evaluator) order(n Order, s *scope) (any, error) {
	v, err := e.eval(n.Base, s)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	keys := make([][]any, len(arr))
	for i, x := range arr {
		if err := e.tick(); err != nil {
			return nil, err
		}
		keys[i] = make([]any, len(n.Keys))
		for j, k := range n.Keys {
			kv, err := e.eval(k.Expr, s.child(x))
			if err != nil {
				return nil, err
			}
			keys[i][j] = kv
		}
	}
	idx := make([]int, len(arr))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for j, k := range n.Keys {
			c := orderCompare(keys[idx[a]][j], keys[idx[b]][j])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	out := make([]any, len(arr))
	for i, j := range idx {
		out[i] = arr[j]
	}
	return out, nil
}

func attribute(v any, name string) any {
	if obj, ok := v.(map[string]any); ok {
		return obj[name]
	}
	return nil
}

func mapArray(v any, f func(any) any) any {
	arr, ok := v.([]any)
	if !ok {
		return f(v)
	}
	out := make([]any, len(arr))
	for i, x := range arr {
		out[i] = f(x)
	}
	return out
}

func slice(arr []any, start, end int, exclusive bool) []any {
	n := len(arr)
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if !exclusive {
		end++
	}
	start = max(start, 0)
	end = min(end, n)
	if start >= end {
		return []any{}
	}
	return arr[start:end]
}

func references(v any, ids map[string]bool) bool {
	switch v := v.(type) {
	case map[string]any:
		if ref, ok := v["_ref"].(string); ok && ids[ref] {
			return true
		}
		for _, x := range v {
			if references(x, ids) {
				return true
			}
		}
	case []any:
		for _, x := range v {
			if references(x, ids) {
				return true
			}
		}
	}
	return false
}

// number converts any JSON number representation to float64.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	switch a := a.(type) {
	case nil:
		return b == nil
	case string:
		s, ok := b.(string)
		return ok && a == s
	case bool:
		t, ok := b.(bool)
		return ok && a == t
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) (int, bool) {
	if x, ok := number(a); ok {
		y, ok := number(b)
		if !ok {
			return 0, false
		}
		return cmpFloat(x, y), true
	}
	if x, ok := a.(string); ok {
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	return 0, false
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// orderCompare ranks numbers before strings before booleans before null.
func orderCompare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	if c, ok := compare(a, b); ok {
		return c
	}
	if x, ok := a.(bool); ok {
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return 0
}

func rank(v any) int {
	if _, ok := number(v); ok {
		return 0
	}
	switch v.(type) {
	case string:
		return 1
	case bool:
		return 2
	case nil:
		return 4
	}
	return 3
}

func unary(op string, v any) any {
	switch op {
	case "!":
		if b, ok := v.(bool); ok {
			return !b
		}
	case "-":
		if i, ok := integer(v); ok {
			return -i
		}
		if f, ok := number(v); ok {
			return -f
		}
	}
	return nil
}

func arithmetic(op string, a, b any) any {
	if op == "+" {
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				return x + y
			}
			return nil
		case []any:
			if y, ok := b.([]any); ok {
				return append(append(make([]any, 0, len(x)+len(y)), x...), y...)
			}
			return nil
		case map[string]any:
			if y, ok := b.(map[string]any); ok {
				out := make(map[string]any, len(x)+len(y))
				for k, v := range x {
					out[k] = v
				}
				for k, v := range y {
					out[k] = v
				}
				return out
			}
			return nil
		}
	}
	if x, ok := integer(a); ok {
		if y, ok := integer(b); ok {
			switch op {
			case "+":
				return x + y
			case "-":
				return x - y
			case "*":
				return x * y
			case "%":
				if y == 0 {
					return nil
				}
				return x % y
			case "/":
				if y == 0 {
					return nil
				}
				if x%y == 0 {
					return x / y
				}
				return float64(x) / float64(y)
			}
		}
	}
	x, ok1 := number(a)
	y, ok2 := number(b)
	if !ok1 || !ok2 {
		return nil
	}
	switch op {
	case "+":
		return x + y
	case "-":
		return x - y
	case "*":
		return x * y
	case "/":
		if y == 0 {
			return nil
		}
		return x / y
	case "%":
		if y == 0 {
			return nil
		}
		return math.Mod(x, y)
	}
	return nil
}
