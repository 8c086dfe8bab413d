// Package filter defines the abstract filter tree produced from the
// $filter query parameter and consumed by the tier-specific translators.
// The tree is Lucene-shaped: terms, field scopes, ranges and boolean
// operators.
package filter

// Node is a node of the abstract filter tree.
type Node interface {
	isNode()
}

// Term is a bare search term or quoted phrase.
type Term struct {
	Value string
}

// SearchField scopes an expression to a named field, as in "name:value".
type SearchField struct {
	Name string
	Expr Node
}

// Group is a parenthesized expression.
type Group struct {
	Expr Node
}

// FieldGroup is a parenthesized expression in field scope, as in
// "name:(a OR b)".
type FieldGroup struct {
	Expr Node
}

// Range is an inclusive bounded range, as in "count:[1 TO 10]".
type Range struct {
	Low  string
	High string
}

// From is a lower bound, as in "count:>=5".
type From struct {
	Value   string
	Include bool
}

// To is an upper bound, as in "count:<=5".
type To struct {
	Value   string
	Include bool
}

// And is a conjunction of two or more operands.
type And struct {
	Operands []Node
}

// Or is a disjunction of two or more operands.
type Or struct {
	Operands []Node
}

// Not negates its operand.
type Not struct {
	Operand Node
}

// Unknown is a binary operation whose operator was not recognized at
// parse time; translators decide by the operator literal (AND/OR/&/|).
type Unknown struct {
	Left     Node
	Operator string
	Right    Node
}

func (Term) isNode()        {}
func (SearchField) isNode() {}
func (Group) isNode()       {}
func (FieldGroup) isNode()  {}
func (Range) isNode()       {}
func (From) isNode()        {}
func (To) isNode()          {}
func (And) isNode()         {}
func (Or) isNode()          {}
func (Not) isNode()         {}
func (Unknown) isNode()     {}

// NewAnd folds two nodes into a conjunction, flattening nested Ands so
// injected clauses (tenant scoping) stay shallow.
func NewAnd(left, right Node) Node {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	operands := []Node{}
	if and, ok := left.(And); ok {
		operands = append(operands, and.Operands...)
	} else {
		operands = append(operands, left)
	}
	if and, ok := right.(And); ok {
		operands = append(operands, and.Operands...)
	} else {
		operands = append(operands, right)
	}
	return And{Operands: operands}
}

// FieldEquals builds the "field:value" clause used for equality filters
// derived from non-reserved query parameters and auth scoping.
func FieldEquals(name, value string) Node {
	return SearchField{Name: name, Expr: Term{Value: value}}
}
