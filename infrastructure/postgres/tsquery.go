package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"uerp-backend/domain/filter"
	"uerp-backend/domain/schema"
	apperrors "uerp-backend/pkg/errors"
	"uerp-backend/pkg/strcase"
)

// whereClause lowers a filter tree into a SQL condition fragment.
// Free-text fields take tsquery predicates; keyword and numeric fields
// take plain comparisons. An empty string means no condition.
func (s *tableState) whereClause(node filter.Node) (string, error) {
	if node == nil {
		return "", nil
	}
	return s.translate(node)
}

func (s *tableState) translate(node filter.Node) (string, error) {
	switch n := node.(type) {
	case filter.Term:
		// A bare term searches nothing without a field scope; reject it
		// rather than scanning every column.
		return "", apperrors.NewBadRequest("bare term filters need a field scope on the archive path")
	case filter.SearchField:
		return s.translateField(n)
	case filter.Group:
		inner, err := s.translate(n.Expr)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case filter.FieldGroup:
		return s.translate(n.Expr)
	case filter.And:
		return s.translateBool(n.Operands, " AND ")
	case filter.Or:
		return s.translateBool(n.Operands, " OR ")
	case filter.Not:
		inner, err := s.translate(n.Operand)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case filter.Unknown:
		return s.translate(resolveUnknown(n))
	default:
		return "", apperrors.NewBadRequest(fmt.Sprintf("filter node %T cannot target the database tier", node))
	}
}

// translateBool parenthesizes every operand so SQL operator precedence
// cannot regroup a mixed AND/OR tree.
func (s *tableState) translateBool(operands []filter.Node, join string) (string, error) {
	parts := make([]string, 0, len(operands))
	for _, operand := range operands {
		part, err := s.translate(operand)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+part+")")
	}
	return strings.Join(parts, join), nil
}

func (s *tableState) translateField(n filter.SearchField) (string, error) {
	// Nested object fields hit their outer JSON text column. Anything
	// not in the column map is rejected, never quoted into the query.
	name := strcase.Snake(strings.SplitN(n.Name, ".", 2)[0])
	col, known := s.byName[name]
	if !known {
		return "", apperrors.NewBadRequest(fmt.Sprintf("unknown field %q", n.Name))
	}

	switch expr := n.Expr.(type) {
	case filter.Term:
		return s.fieldEquals(col, expr.Value)
	case filter.Range:
		return fmt.Sprintf("%s >= %s AND %s <= %s",
			col.name, s.literal(col, expr.Low), col.name, s.literal(col, expr.High)), nil
	case filter.From:
		op := ">"
		if expr.Include {
			op = ">="
		}
		return fmt.Sprintf("%s %s %s", col.name, op, s.literal(col, expr.Value)), nil
	case filter.To:
		op := "<"
		if expr.Include {
			op = "<="
		}
		return fmt.Sprintf("%s %s %s", col.name, op, s.literal(col, expr.Value)), nil
	case filter.FieldGroup:
		return s.translateFieldTree(col, expr.Expr)
	case filter.Group:
		return s.translateFieldTree(col, expr.Expr)
	default:
		return s.translateFieldTree(col, n.Expr)
	}
}

// translateFieldTree lowers a boolean expression scoped to one field,
// as in "severity:(1 OR 2)".
func (s *tableState) translateFieldTree(col column, node filter.Node) (string, error) {
	switch n := node.(type) {
	case filter.Term:
		return s.fieldEquals(col, n.Value)
	case filter.And:
		return s.fieldBool(col, n.Operands, " AND ")
	case filter.Or:
		return s.fieldBool(col, n.Operands, " OR ")
	case filter.Not:
		inner, err := s.translateFieldTree(col, n.Operand)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case filter.Group, filter.FieldGroup:
		var expr filter.Node
		if g, ok := n.(filter.Group); ok {
			expr = g.Expr
		} else {
			expr = n.(filter.FieldGroup).Expr
		}
		inner, err := s.translateFieldTree(col, expr)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case filter.Unknown:
		return s.translateFieldTree(col, resolveUnknown(n))
	default:
		return "", apperrors.NewBadRequest(fmt.Sprintf("filter node %T cannot target field %q", node, col.name))
	}
}

func (s *tableState) fieldBool(col column, operands []filter.Node, join string) (string, error) {
	parts := make([]string, 0, len(operands))
	for _, operand := range operands {
		part, err := s.translateFieldTree(col, operand)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+part+")")
	}
	return strings.Join(parts, join), nil
}

// fieldEquals renders a term match on one field: tsquery for free-text
// columns, plain equality otherwise.
func (s *tableState) fieldEquals(col column, value string) (string, error) {
	if col.field.Kind == schema.KindString && !col.field.Keyword {
		terms := strings.Fields(strings.ToLower(strings.Trim(value, `"`)))
		if len(terms) == 0 {
			return "", apperrors.NewBadRequest(fmt.Sprintf("empty term for field %q", col.name))
		}
		return fmt.Sprintf("%s@@'%s'::tsquery", col.name, escape(strings.Join(terms, "|"))), nil
	}
	return fmt.Sprintf("%s = %s", col.name, s.literal(col, strings.Trim(value, `"`))), nil
}

// literal renders a comparison operand: bare for numeric and boolean
// columns when the value parses as one, quoted otherwise.
func (s *tableState) literal(col column, value string) string {
	switch col.field.Kind {
	case schema.KindInt, schema.KindFloat:
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return value
		}
	case schema.KindBool:
		if _, err := strconv.ParseBool(value); err == nil {
			return strings.ToUpper(value)
		}
	}
	return "'" + escape(value) + "'"
}

func escape(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

func resolveUnknown(n filter.Unknown) filter.Node {
	switch strings.ToUpper(strings.TrimSpace(n.Operator)) {
	case "OR", "|", "||":
		return filter.Or{Operands: []filter.Node{n.Left, n.Right}}
	default:
		return filter.And{Operands: []filter.Node{n.Left, n.Right}}
	}
}
