package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "uerp-backend/pkg/errors"
)

func TestParseTerm(t *testing.T) {
	node, err := Parse("cpu")
	require.NoError(t, err)
	assert.Equal(t, Term{Value: "cpu"}, node)
}

func TestParseQuotedPhrase(t *testing.T) {
	node, err := Parse(`"cpu high"`)
	require.NoError(t, err)
	assert.Equal(t, Term{Value: "cpu high"}, node)
}

func TestParseFieldTerm(t *testing.T) {
	node, err := Parse("name:cpu-high")
	require.NoError(t, err)
	assert.Equal(t, SearchField{Name: "name", Expr: Term{Value: "cpu-high"}}, node)
}

func TestParseBoolean(t *testing.T) {
	node, err := Parse("name:cpu AND severity:3 OR enabled:true")
	require.NoError(t, err)

	or, ok := node.(Or)
	require.True(t, ok)
	require.Len(t, or.Operands, 2)

	and, ok := or.Operands[0].(And)
	require.True(t, ok)
	require.Len(t, and.Operands, 2)
	assert.Equal(t, SearchField{Name: "name", Expr: Term{Value: "cpu"}}, and.Operands[0])
	assert.Equal(t, SearchField{Name: "enabled", Expr: Term{Value: "true"}}, or.Operands[1])
}

func TestParseSymbolOperators(t *testing.T) {
	node, err := Parse("a && b || !c")
	require.NoError(t, err)

	or, ok := node.(Or)
	require.True(t, ok)
	require.Len(t, or.Operands, 2)
	assert.IsType(t, And{}, or.Operands[0])
	assert.Equal(t, Not{Operand: Term{Value: "c"}}, or.Operands[1])
}

func TestParseGroup(t *testing.T) {
	node, err := Parse("(a OR b) AND c")
	require.NoError(t, err)

	and, ok := node.(And)
	require.True(t, ok)
	group, ok := and.Operands[0].(Group)
	require.True(t, ok)
	assert.IsType(t, Or{}, group.Expr)
}

func TestParseFieldGroup(t *testing.T) {
	node, err := Parse("severity:(1 OR 2)")
	require.NoError(t, err)

	sf, ok := node.(SearchField)
	require.True(t, ok)
	assert.Equal(t, "severity", sf.Name)
	fg, ok := sf.Expr.(FieldGroup)
	require.True(t, ok)
	assert.IsType(t, Or{}, fg.Expr)
}

func TestParseRange(t *testing.T) {
	node, err := Parse("severity:[1 TO 5]")
	require.NoError(t, err)
	assert.Equal(t, SearchField{Name: "severity", Expr: Range{Low: "1", High: "5"}}, node)
}

func TestParseBounds(t *testing.T) {
	node, err := Parse("severity:>=3")
	require.NoError(t, err)
	assert.Equal(t, SearchField{Name: "severity", Expr: From{Value: "3", Include: true}}, node)

	node, err = Parse("tstamp:<1700000000")
	require.NoError(t, err)
	assert.Equal(t, SearchField{Name: "tstamp", Expr: To{Value: "1700000000"}}, node)
}

func TestParseMalformed(t *testing.T) {
	for _, input := range []string{"(a OR b", "name:", "a )", "severity:[1 5]"} {
		_, err := Parse(input)
		require.Error(t, err, input)
		assert.True(t, apperrors.IsBadRequest(err), input)
	}
}

func TestNewAndFlattens(t *testing.T) {
	left := And{Operands: []Node{Term{Value: "a"}, Term{Value: "b"}}}
	combined := NewAnd(left, FieldEquals("org", "acme"))

	and, ok := combined.(And)
	require.True(t, ok)
	assert.Len(t, and.Operands, 3)

	assert.Equal(t, Term{Value: "x"}, NewAnd(nil, Term{Value: "x"}))
	assert.Equal(t, Term{Value: "x"}, NewAnd(Term{Value: "x"}, nil))
}
