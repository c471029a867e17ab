package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterExpression(t *testing.T) {
	p := NewParser()
	m := map[string]interface{}{
		"op": ">=",
		"left": map[string]interface{}{
			"field": "amount",
			"type":  "float",
		},
		"right": map[string]interface{}{
			"const": 100.0,
		},
	}

	e, err := p.Parse(m)
	require.NoError(t, err)

	v, err := e.Eval(map[string]interface{}{"amount": 150.0})
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestParseConstStringIsCoercedToNumber(t *testing.T) {
	p := NewParser()
	e, err := p.Parse(map[string]interface{}{"const": "42"})
	require.NoError(t, err)
	assert.Equal(t, DataTypeInt64, e.DataType())
}

func TestParseUnknownOperatorFails(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(map[string]interface{}{
		"op":    "pow",
		"left":  map[string]interface{}{"const": 2.0},
		"right": map[string]interface{}{"const": 3.0},
	})
	assert.Error(t, err)
}

func TestParseNilExpressionFails(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(nil)
	assert.Error(t, err)
}

func TestParseNotOperator(t *testing.T) {
	p := NewParser()
	e, err := p.Parse(map[string]interface{}{
		"op":      "!",
		"operand": map[string]interface{}{"const": false},
	})
	require.NoError(t, err)
	v, err := e.Eval(nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}
