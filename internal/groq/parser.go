package groq

var functions = map[string]struct{ min, max int }{
	"count":      {1, 1},
	"defined":    {1, 1},
	"coalesce":   {1, -1},
	"lower":      {1, 1},
	"upper":      {1, 1},
	"references": {1, -1},
}

// Parse parses a query into an expression tree.
func Parse(query string) (Node, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.pipe()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxErrorf(t.pos, "unexpected %s", describe(t))
	}
	return n, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) is(punct string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == punct
}

func (p *parser) isIdent(name string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == name
}

func (p *parser) accept(punct string) bool {
	if p.is(punct) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(punct string) error {
	if p.accept(punct) {
		return nil
	}
	t := p.peek()
	return syntaxErrorf(t.pos, "expected %q, found %s", punct, describe(t))
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of query"
	case tokString:
		return "string"
	case tokNumber:
		return "number " + t.text
	case tokParam:
		return "$" + t.text
	}
	return "'" + t.text + "'"
}

func (p *parser) pipe() (Node, error) {
	left, err := p.or()
	if err != nil {
		return nil, err
	}
	for p.is("|") {
		p.next()
		t := p.next()
		if t.kind != tokIdent {
			return nil, syntaxErrorf(t.pos, "expected pipe function, found %s", describe(t))
		}
		if t.text != "order" {
			return nil, syntaxErrorf(t.pos, "unknown pipe function %q", t.text)
		}
		if err := p.expect("("); err != nil {
			return nil, err
		}
		var keys []OrderKey
		for !p.is(")") {
			expr, err := p.or()
			if err != nil {
				return nil, err
			}
			key := OrderKey{Expr: expr}
			switch {
			case p.isIdent("desc"):
				p.next()
				key.Desc = true
			case p.isIdent("asc"):
				p.next()
			}
			keys = append(keys, key)
			if !p.accept(",") {
				break
			}
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, syntaxErrorf(t.pos, "order requires at least one key")
		}
		if left, err = p.traverse(Order{Base: left, Keys: keys}); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) or() (Node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept("||") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) and() (Node, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.accept("&&") {
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

var comparisons = []string{"==", "!=", "<=", ">=", "<", ">"}

func (p *parser) comparison() (Node, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	op := ""
	for _, c := range comparisons {
		if p.is(c) {
			op = c
			break
		}
	}
	if op == "" && p.isIdent("in") {
		op = "in"
	}
	if op == "" {
		return left, nil
	}
	p.next()
	right, err := p.additive()
	if err != nil {
		return nil, err
	}
	return Binary{Op: op, Left: left, Right: right}, nil
}

func (p *parser) additive() (Node, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for p.is("+") || p.is("-") {
		op := p.next().text
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) multiplicative() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.is("*") || p.is("/") || p.is("%") {
		op := p.next().text
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) unary() (Node, error) {
	if p.is("!") || p.is("-") {
		op := p.next().text
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: op, Operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	return p.traverse(n)
}

// traverse applies attribute access, dereferences, brackets and projections.
func (p *parser) traverse(n Node) (Node, error) {
	var err error
	for {
		switch {
		case p.is("."):
			p.next()
			t := p.next()
			if t.kind != tokIdent {
				return nil, syntaxErrorf(t.pos, "expected attribute name, found %s", describe(t))
			}
			n = Attribute{Base: n, Name: t.text}
		case p.is("->"):
			p.next()
			n = Deref{Base: n}
			if t := p.peek(); t.kind == tokIdent && t.text != "in" {
				p.next()
				n = Attribute{Base: n, Name: t.text}
			}
		case p.is("["):
			if n, err = p.bracket(n); err != nil {
				return nil, err
			}
		case p.is("{"):
			entries, err := p.projection()
			if err != nil {
				return nil, err
			}
			n = Projection{Base: n, Entries: entries}
		default:
			return n, nil
		}
	}
}

func (p *parser) bracket(base Node) (Node, error) {
	open := p.next()
	if p.accept("]") {
		return Flatten{Base: base}, nil
	}
	inner, err := p.pipe()
	if err != nil {
		return nil, err
	}
	if p.is("..") || p.is("...") {
		exclusive := p.next().text == "..."
		end, err := p.additive()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		s, ok1 := constInt(inner)
		e, ok2 := constInt(end)
		if !ok1 || !ok2 {
			return nil, syntaxErrorf(open.pos, "slice bounds must be integer literals")
		}
		return Slice{Base: base, Start: s, End: e, Exclusive: exclusive}, nil
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	if i, ok := constInt(inner); ok {
		return Index{Base: base, Index: i}, nil
	}
	return Filter{Base: base, Cond: inner}, nil
}

func constInt(n Node) (int, bool) {
	switch v := n.(type) {
	case Literal:
		if i, ok := v.Value.(int64); ok {
			return int(i), true
		}
	case Unary:
		if v.Op == "-" {
			if i, ok := constInt(v.Operand); ok {
				return -i, true
			}
		}
	}
	return 0, false
}

func (p *parser) projection() ([]Entry, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var entries []Entry
	for !p.is("}") {
		start := p.peek()
		switch {
		case p.accept("..."):
			entries = append(entries, Entry{Spread: true})
		case (start.kind == tokString || start.kind == tokIdent) && p.toks[p.i+1].kind == tokPunct && p.toks[p.i+1].text == ":":
			p.i += 2
			value, err := p.pipe()
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: start.text, Value: value})
		default:
			value, err := p.pipe()
			if err != nil {
				return nil, err
			}
			key, ok := implicitKey(value)
			if !ok {
				return nil, syntaxErrorf(start.pos, "projection entry needs an explicit key")
			}
			entries = append(entries, Entry{Key: key, Value: value})
		}
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return entries, nil
}

// implicitKey names a bare projection entry after the attribute it reads.
func implicitKey(n Node) (string, bool) {
	switch v := n.(type) {
	case Attribute:
		return v.Name, true
	case Deref:
		return implicitKey(v.Base)
	case Projection:
		if v.Base != nil {
			return implicitKey(v.Base)
		}
	case Filter:
		return implicitKey(v.Base)
	case Index:
		return implicitKey(v.Base)
	case Slice:
		return implicitKey(v.Base)
	case Flatten:
		return implicitKey(v.Base)
	}
	return "", false
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokEOF:
		return nil, syntaxErrorf(t.pos, "unexpected end of query")
	case tokString:
		return Literal{Value: t.text}, nil
	case tokNumber:
		return Literal{Value: t.num}, nil
	case tokParam:
		return Param{Name: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return Literal{Value: true}, nil
		case "false":
			return Literal{Value: false}, nil
		case "null":
			return Literal{Value: nil}, nil
		}
		if p.is("(") {
			return p.call(t)
		}
		return Attribute{Name: t.text}, nil
	}

	switch t.text {
	case "*":
		return Everything{}, nil
	case "@":
		return This{}, nil
	case "^":
		return Parent{}, nil
	case "(":
		n, err := p.pipe()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return n, nil
	case "[":
		return p.array()
	case "{":
		p.i--
		entries, err := p.projection()
		if err != nil {
			return nil, err
		}
		return Projection{Entries: entries}, nil
	}
	return nil, syntaxErrorf(t.pos, "unexpected %s", describe(t))
}

func (p *parser) array() (Node, error) {
	var elems []ArrayElem
	for !p.is("]") {
		spread := p.accept("...")
		value, err := p.pipe()
		if err != nil {
			return nil, err
		}
		elems = append(elems, ArrayElem{Value: value, Spread: spread})
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return ArrayLit{Elems: elems}, nil
}

func (p *parser) call(name token) (Node, error) {
	arity, ok := functions[name.text]
	if !ok {
		return nil, syntaxErrorf(name.pos, "unknown function %q", name.text)
	}
	p.next() // (
	var args []Node
	for !p.is(")") {
		arg, err := p.pipe()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if len(args) < arity.min || (arity.max >= 0 && len(args) > arity.max) {
		return nil, syntaxErrorf(name.pos, "wrong number of arguments to %s()", name.text)
	}
	return Call{Name: name.text, Args: args}, nil
}
