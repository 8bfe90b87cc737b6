package groq

// Node is a parsed query expression.
type Node interface {
	node()
}

type (
	// Everything is `*`, the whole dataset.
	Everything struct{}
	// This is `@`, the value in scope.
	This struct{}
	// Parent is `^`, the value of the enclosing scope.
	Parent struct{}
	// Param is a `$name` parameter reference.
	Param struct{ Name string }
	// Literal is a string, number, boolean or null.
	Literal struct{ Value any }

	ArrayLit struct{ Elems []ArrayElem }

	// Attribute reads Name from Base, or from the value in scope when Base is nil.
	Attribute struct {
		Base Node
		Name string
	}
	Filter struct {
		Base Node
		Cond Node
	}
	Index struct {
		Base  Node
		Index int
	}
	Slice struct {
		Base       Node
		Start, End int
		Exclusive  bool
	}
	// Flatten is `[]`.
	Flatten struct{ Base Node }
	// Projection shapes Base with Entries. A nil Base is an object literal.
	Projection struct {
		Base    Node
		Entries []Entry
	}
	// Deref follows a reference: an object whose _ref matches a document _id.
	Deref struct{ Base Node }

	Binary struct {
		Op          string
		Left, Right Node
	}
	Unary struct {
		Op      string
		Operand Node
	}
	Call struct {
		Name string
		Args []Node
	}
	// Order is the `| order(...)` pipe.
	Order struct {
		Base Node
		Keys []OrderKey
	}
)

type ArrayElem struct {
	Value  Node
	Spread bool
}

// Entry is one member of a projection. Spread entries copy every attribute
// of the value in scope.
type Entry struct {
	Key    string
	Value  Node
	Spread bool
}

type OrderKey struct {
	Expr Node
	Desc bool
}

func (Everything) node() {}
func (This) node()       {}
func (Parent) node()     {}
func (Param) node()      {}
func (Literal) node()    {}
func (ArrayLit) node()   {}
func (Attribute) node()  {}
func (Filter) node()     {}
func (Index) node()      {}
func (Slice) node()      {}
func (Flatten) node()    {}
func (Projection) node() {}
func (Deref) node()      {}
func (Binary) node()     {}
func (Unary) node()      {}
func (Call) node()       {}
func (Order) node()      {}
