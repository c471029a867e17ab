package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldEvalMissing(t *testing.T) {
	f := &Field{Name: "amount", DataTyp: DataTypeFloat64}
	_, err := f.Eval(map[string]interface{}{})
	assert.Error(t, err)
}

func TestBinaryOpArithmetic(t *testing.T) {
	e := &BinaryOp{
		Operator: OpAdd,
		Left:     &Const{Value: 1.0, DataTyp: DataTypeFloat64},
		Right:    &Const{Value: 2.0, DataTyp: DataTypeFloat64},
	}
	v, err := e.Eval(nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestBinaryOpComparison(t *testing.T) {
	e := &BinaryOp{
		Operator: OpGreaterEqual,
		Left:     &Field{Name: "amount"},
		Right:    &Const{Value: 100.0, DataTyp: DataTypeFloat64},
	}
	v, err := e.Eval(map[string]interface{}{"amount": 150.0})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = e.Eval(map[string]interface{}{"amount": 50.0})
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestBinaryOpLogicalShortCircuit(t *testing.T) {
	e := &BinaryOp{
		Operator: OpAnd,
		Left:     &Const{Value: false, DataTyp: DataTypeBool},
		Right:    &Field{Name: "missing"},
	}
	v, err := e.Eval(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestBinaryOpDivisionByZero(t *testing.T) {
	e := &BinaryOp{
		Operator: OpDivide,
		Left:     &Const{Value: 1.0, DataTyp: DataTypeFloat64},
		Right:    &Const{Value: 0.0, DataTyp: DataTypeFloat64},
	}
	_, err := e.Eval(nil)
	assert.Error(t, err)
}

func TestUnaryOpNot(t *testing.T) {
	e := &UnaryOp{Operator: OpNot, Operand: &Const{Value: true, DataTyp: DataTypeBool}}
	v, err := e.Eval(nil)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestUnaryOpNegate(t *testing.T) {
	e := &UnaryOp{Operator: OpNegate, Operand: &Const{Value: 5.0, DataTyp: DataTypeFloat64}}
	v, err := e.Eval(nil)
	require.NoError(t, err)
	assert.Equal(t, -5.0, v)
}

func TestStringComparison(t *testing.T) {
	e := &BinaryOp{
		Operator: OpEqual,
		Left:     &Field{Name: "status", DataTyp: DataTypeString},
		Right:    &Const{Value: "active", DataTyp: DataTypeString},
	}
	v, err := e.Eval(map[string]interface{}{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, true, v)
}
