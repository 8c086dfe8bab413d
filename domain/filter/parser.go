package filter

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "uerp-backend/pkg/errors"
)

// Parse converts a Lucene-like filter string into a filter tree.
// Supported forms: bare terms, quoted phrases, "field:value",
// "field:(...)", "field:[a TO b]", "field:>=x", AND/OR/NOT and their
// &&/||/! spellings, and parenthesized groups. Malformed input yields
// a bad request error.
func Parse(input string) (Node, error) {
	p := &parser{tokens: tokenize(input)}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("could not parse filter near %q", p.peek()))
	}
	return node, nil
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() string {
	if p.done() {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []Node{left}
	for !p.done() && isOrToken(p.peek()) {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return Or{Operands: operands}, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	operands := []Node{left}
	for !p.done() && isAndToken(p.peek()) {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return And{Operands: operands}, nil
}

func (p *parser) parseNot() (Node, error) {
	if !p.done() && isNotToken(p.peek()) {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	if p.done() {
		return nil, apperrors.NewBadRequest("could not parse filter: unexpected end of input")
	}
	tok := p.next()
	switch tok {
	case "(":
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, apperrors.NewBadRequest("could not parse filter: missing closing parenthesis")
		}
		return Group{Expr: expr}, nil
	case ")", ":":
		return nil, apperrors.NewBadRequest(fmt.Sprintf("could not parse filter near %q", tok))
	}

	// Field scope: the tokenizer keeps "field:" fused when unquoted.
	if name, ok := strings.CutSuffix(tok, ":"); ok && name != "" {
		return p.parseFieldExpr(name)
	}
	return Term{Value: unquote(tok)}, nil
}

func (p *parser) parseFieldExpr(name string) (Node, error) {
	if p.done() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("could not parse filter: field %q has no value", name))
	}
	tok := p.peek()
	switch {
	case tok == "(":
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, apperrors.NewBadRequest("could not parse filter: missing closing parenthesis")
		}
		return SearchField{Name: name, Expr: FieldGroup{Expr: expr}}, nil
	case strings.HasPrefix(tok, "[") || strings.HasPrefix(tok, "{"):
		return p.parseRange(name)
	case strings.HasPrefix(tok, ">="):
		p.next()
		return SearchField{Name: name, Expr: From{Value: tok[2:], Include: true}}, nil
	case strings.HasPrefix(tok, "<="):
		p.next()
		return SearchField{Name: name, Expr: To{Value: tok[2:], Include: true}}, nil
	case strings.HasPrefix(tok, ">"):
		p.next()
		return SearchField{Name: name, Expr: From{Value: tok[1:]}}, nil
	case strings.HasPrefix(tok, "<"):
		p.next()
		return SearchField{Name: name, Expr: To{Value: tok[1:]}}, nil
	}
	p.next()
	return SearchField{Name: name, Expr: Term{Value: unquote(tok)}}, nil
}

// parseRange consumes "[low TO high]" ("{...}" is accepted and treated
// the same; the translators only emit inclusive bounds).
func (p *parser) parseRange(name string) (Node, error) {
	open := p.next()
	low := strings.TrimLeft(open, "[{")
	if low == "" {
		low = p.next()
	}
	if to := p.next(); !strings.EqualFold(to, "TO") {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("could not parse filter: range for %q is missing TO", name))
	}
	high := p.next()
	if trimmed := strings.TrimRight(high, "]}"); trimmed != high {
		return SearchField{Name: name, Expr: Range{Low: low, High: trimmed}}, nil
	}
	if end := p.next(); end != "]" && end != "}" {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("could not parse filter: range for %q is not closed", name))
	}
	return SearchField{Name: name, Expr: Range{Low: low, High: high}}, nil
}

func isAndToken(tok string) bool {
	return strings.EqualFold(tok, "AND") || tok == "&&" || tok == "&"
}

func isOrToken(tok string) bool {
	return strings.EqualFold(tok, "OR") || tok == "||" || tok == "|"
}

func isNotToken(tok string) bool {
	return strings.EqualFold(tok, "NOT") || tok == "!"
}

func unquote(tok string) string {
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		return tok[1 : len(tok)-1]
	}
	return tok
}

// tokenize splits the filter into tokens, keeping quoted phrases whole
// and fusing a trailing ':' onto the field name so the parser can tell
// "field:value" from a bare term.
func tokenize(input string) []string {
	var tokens []string
	var b strings.Builder
	inQuote := false

	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}

	for _, r := range input {
		switch {
		case inQuote:
			b.WriteRune(r)
			if r == '"' {
				inQuote = false
				flush()
			}
		case r == '"':
			flush()
			inQuote = true
			b.WriteRune(r)
		case r == '(' || r == ')' || r == '!':
			flush()
			tokens = append(tokens, string(r))
		case r == ':':
			b.WriteRune(r)
			flush()
		case unicode.IsSpace(r):
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return tokens
}
