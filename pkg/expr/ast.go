// Package expr is a small expression language used by the filter and map
// built-in stages (spec.md §1 "Built-in transform implementations...
// described only at contract level") to evaluate predicates like
// "amount >= 100" against a payload.Record.
//
// Grounded on the teacher's pkg/coordination/expressions package
// (ExpressionType/DataType/BinaryOperator enums and the AST node shapes),
// trimmed to the operators a stage predicate needs and retargeted from
// search-document field access to payload.Record field access.
package expr

import "fmt"

// DataType is the inferred type of an expression's result.
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeBool
	DataTypeInt64
	DataTypeFloat64
	DataTypeString
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeBool:
		return "bool"
	case DataTypeInt64:
		return "int64"
	case DataTypeFloat64:
		return "float64"
	case DataTypeString:
		return "string"
	default:
		return "unknown"
	}
}

// BinaryOperator is a two-operand operator.
type BinaryOperator int

const (
	OpUnknown BinaryOperator = iota
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessEqual
	OpGreaterThan
	OpGreaterEqual
	OpAnd
	OpOr
)

func (op BinaryOperator) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return "unknown"
	}
}

// IsComparison reports whether op is a comparison operator.
func (op BinaryOperator) IsComparison() bool {
	return op >= OpEqual && op <= OpGreaterEqual
}

// IsLogical reports whether op is a logical operator.
func (op BinaryOperator) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// UnaryOperator is a one-operand operator.
type UnaryOperator int

const (
	OpNegate UnaryOperator = iota
	OpNot
)

func (op UnaryOperator) String() string {
	if op == OpNot {
		return "!"
	}
	return "-"
}

// Expression is the base interface for every AST node.
type Expression interface {
	DataType() DataType
	String() string
	// Eval evaluates the expression against one record.
	Eval(rec map[string]interface{}) (interface{}, error)
}

// Const is a literal value.
type Const struct {
	Value   interface{}
	DataTyp DataType
}

func (e *Const) DataType() DataType { return e.DataTyp }
func (e *Const) String() string     { return fmt.Sprintf("Const(%v)", e.Value) }
func (e *Const) Eval(map[string]interface{}) (interface{}, error) {
	return e.Value, nil
}

// Field reads one column out of the record being evaluated.
type Field struct {
	Name    string
	DataTyp DataType
}

func (e *Field) DataType() DataType { return e.DataTyp }
func (e *Field) String() string     { return fmt.Sprintf("Field(%s)", e.Name) }
func (e *Field) Eval(rec map[string]interface{}) (interface{}, error) {
	v, ok := rec[e.Name]
	if !ok {
		return nil, fmt.Errorf("record has no field %q", e.Name)
	}
	return v, nil
}

// BinaryOp applies a BinaryOperator to two sub-expressions.
type BinaryOp struct {
	Operator    BinaryOperator
	Left, Right Expression
	DataTyp     DataType
}

func (e *BinaryOp) DataType() DataType { return e.DataTyp }
func (e *BinaryOp) String() string {
	return fmt.Sprintf("BinaryOp(%s, %s, %s)", e.Operator, e.Left, e.Right)
}

// UnaryOp applies a UnaryOperator to one sub-expression.
type UnaryOp struct {
	Operator UnaryOperator
	Operand  Expression
	DataTyp  DataType
}

func (e *UnaryOp) DataType() DataType { return e.DataTyp }
func (e *UnaryOp) String() string     { return fmt.Sprintf("UnaryOp(%s, %s)", e.Operator, e.Operand) }
