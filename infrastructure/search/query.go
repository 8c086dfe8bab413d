package search

import (
	"fmt"
	"strings"

	"uerp-backend/domain/filter"
	apperrors "uerp-backend/pkg/errors"
)

// translateFilter lowers a filter tree into the query DSL. A nil tree
// matches everything. Untranslatable nodes reject the request.
func translateFilter(node filter.Node) (map[string]any, error) {
	if node == nil {
		return map[string]any{"match_all": map[string]any{}}, nil
	}
	return translate(node)
}

func translate(node filter.Node) (map[string]any, error) {
	switch n := node.(type) {
	case filter.Term:
		return map[string]any{"query_string": map[string]any{"query": cleanTerm(n.Value)}}, nil
	case filter.Group:
		return translate(n.Expr)
	case filter.SearchField:
		return translateScoped(n.Name, n.Expr)
	case filter.And:
		clauses, err := translateAll(n.Operands)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"must": clauses}}, nil
	case filter.Or:
		clauses, err := translateAll(n.Operands)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"should": clauses, "minimum_should_match": 1}}, nil
	case filter.Not:
		clause, err := translate(n.Operand)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"must_not": []any{clause}}}, nil
	case filter.Unknown:
		return translate(resolveUnknown(n))
	default:
		return nil, apperrors.NewBadRequest(fmt.Sprintf("filter node %T cannot target the search tier", node))
	}
}

// translateScoped lowers an expression inside a field scope.
func translateScoped(name string, node filter.Node) (map[string]any, error) {
	switch n := node.(type) {
	case filter.Term:
		return map[string]any{"match": map[string]any{name: cleanTerm(n.Value)}}, nil
	case filter.Range:
		return map[string]any{"range": map[string]any{name: map[string]any{"gte": n.Low, "lte": n.High}}}, nil
	case filter.From:
		op := "gt"
		if n.Include {
			op = "gte"
		}
		return map[string]any{"range": map[string]any{name: map[string]any{op: n.Value}}}, nil
	case filter.To:
		op := "lt"
		if n.Include {
			op = "lte"
		}
		return map[string]any{"range": map[string]any{name: map[string]any{op: n.Value}}}, nil
	case filter.FieldGroup:
		return translateScoped(name, n.Expr)
	case filter.Group:
		return translateScoped(name, n.Expr)
	case filter.And:
		clauses, err := translateAllScoped(name, n.Operands)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"must": clauses}}, nil
	case filter.Or:
		clauses, err := translateAllScoped(name, n.Operands)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"should": clauses, "minimum_should_match": 1}}, nil
	case filter.Not:
		clause, err := translateScoped(name, n.Operand)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"must_not": []any{clause}}}, nil
	case filter.Unknown:
		return translateScoped(name, resolveUnknown(n))
	default:
		return nil, apperrors.NewBadRequest(fmt.Sprintf("filter node %T cannot target field %q", node, name))
	}
}

func translateAll(nodes []filter.Node) ([]any, error) {
	clauses := make([]any, 0, len(nodes))
	for _, node := range nodes {
		clause, err := translate(node)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

func translateAllScoped(name string, nodes []filter.Node) ([]any, error) {
	clauses := make([]any, 0, len(nodes))
	for _, node := range nodes {
		clause, err := translateScoped(name, node)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// resolveUnknown decides an unparsed binary operator by its literal.
func resolveUnknown(n filter.Unknown) filter.Node {
	switch strings.ToUpper(strings.TrimSpace(n.Operator)) {
	case "OR", "|", "||":
		return filter.Or{Operands: []filter.Node{n.Left, n.Right}}
	default:
		return filter.And{Operands: []filter.Node{n.Left, n.Right}}
	}
}

// cleanTerm strips quoting left over from phrase tokens.
func cleanTerm(value string) string {
	return strings.Trim(value, `"`)
}
