package expr

import (
	"fmt"
	"strconv"
)

// Parser parses a JSON-shaped expression map (as decoded from a stage's
// TOML/JSON config) into an Expression tree.
//
// Grounded on the teacher's pkg/coordination/expressions/parser.go Parser
// type, trimmed to the operator set in ast.go (no "pow"/"**", no function
// calls) since filter/map predicates don't need them.
type Parser struct{}

// NewParser creates a new expression parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses one expression map. The map shape is one of:
//
//	{"const": <value>}
//	{"field": "<name>", "type": "<optional type hint>"}
//	{"op": "<operator>", "left": {...}, "right": {...}}
//	{"op": "<unary operator>", "operand": {...}}
func (p *Parser) Parse(exprMap map[string]interface{}) (Expression, error) {
	if exprMap == nil {
		return nil, fmt.Errorf("expression map is nil")
	}

	if op, ok := exprMap["op"].(string); ok {
		return p.parseOperator(op, exprMap)
	}
	if constVal, ok := exprMap["const"]; ok {
		return p.parseConst(constVal)
	}
	if fieldPath, ok := exprMap["field"].(string); ok {
		return p.parseField(fieldPath, exprMap)
	}

	return nil, fmt.Errorf("unrecognized expression format: expected one of op/const/field")
}

func (p *Parser) parseOperator(opStr string, exprMap map[string]interface{}) (Expression, error) {
	if binOp := parseBinaryOperator(opStr); binOp != OpUnknown {
		return p.parseBinaryOp(binOp, exprMap)
	}
	if unOp, ok := parseUnaryOperator(opStr); ok {
		return p.parseUnaryOp(unOp, exprMap)
	}
	return nil, fmt.Errorf("unknown operator: %s", opStr)
}

func parseBinaryOperator(opStr string) BinaryOperator {
	switch opStr {
	case "+":
		return OpAdd
	case "-":
		return OpSubtract
	case "*":
		return OpMultiply
	case "/":
		return OpDivide
	case "%":
		return OpModulo
	case "==", "eq":
		return OpEqual
	case "!=", "ne":
		return OpNotEqual
	case "<", "lt":
		return OpLessThan
	case "<=", "lte", "le":
		return OpLessEqual
	case ">", "gt":
		return OpGreaterThan
	case ">=", "gte", "ge":
		return OpGreaterEqual
	case "&&", "and":
		return OpAnd
	case "||", "or":
		return OpOr
	default:
		return OpUnknown
	}
}

func parseUnaryOperator(opStr string) (UnaryOperator, bool) {
	switch opStr {
	case "neg":
		return OpNegate, true
	case "!", "not":
		return OpNot, true
	default:
		return 0, false
	}
}

func (p *Parser) parseBinaryOp(op BinaryOperator, exprMap map[string]interface{}) (Expression, error) {
	leftMap, okLeft := exprMap["left"].(map[string]interface{})
	rightMap, okRight := exprMap["right"].(map[string]interface{})
	if !okLeft || !okRight {
		return nil, fmt.Errorf("binary operator %s requires 'left' and 'right' expressions", op)
	}

	left, err := p.Parse(leftMap)
	if err != nil {
		return nil, fmt.Errorf("failed to parse left operand: %w", err)
	}
	right, err := p.Parse(rightMap)
	if err != nil {
		return nil, fmt.Errorf("failed to parse right operand: %w", err)
	}

	return &BinaryOp{
		Operator: op,
		Left:     left,
		Right:    right,
		DataTyp:  inferBinaryResultType(op, left.DataType(), right.DataType()),
	}, nil
}

func (p *Parser) parseUnaryOp(op UnaryOperator, exprMap map[string]interface{}) (Expression, error) {
	operandMap, ok := exprMap["operand"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unary operator %s requires 'operand' expression", op)
	}

	operand, err := p.Parse(operandMap)
	if err != nil {
		return nil, fmt.Errorf("failed to parse operand: %w", err)
	}

	resultType := DataTypeFloat64
	if op == OpNot {
		resultType = DataTypeBool
	}
	return &UnaryOp{Operator: op, Operand: operand, DataTyp: resultType}, nil
}

func (p *Parser) parseConst(constVal interface{}) (Expression, error) {
	switch v := constVal.(type) {
	case bool:
		return &Const{Value: v, DataTyp: DataTypeBool}, nil
	case int:
		return &Const{Value: int64(v), DataTyp: DataTypeInt64}, nil
	case int64:
		return &Const{Value: v, DataTyp: DataTypeInt64}, nil
	case float32:
		return &Const{Value: float64(v), DataTyp: DataTypeFloat64}, nil
	case float64:
		return &Const{Value: v, DataTyp: DataTypeFloat64}, nil
	case string:
		if intVal, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &Const{Value: intVal, DataTyp: DataTypeInt64}, nil
		}
		if floatVal, err := strconv.ParseFloat(v, 64); err == nil {
			return &Const{Value: floatVal, DataTyp: DataTypeFloat64}, nil
		}
		return &Const{Value: v, DataTyp: DataTypeString}, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", constVal)
	}
}

func (p *Parser) parseField(fieldPath string, exprMap map[string]interface{}) (Expression, error) {
	dataType := DataTypeFloat64
	if typeStr, ok := exprMap["type"].(string); ok {
		switch typeStr {
		case "bool", "boolean":
			dataType = DataTypeBool
		case "int", "int64", "integer":
			dataType = DataTypeInt64
		case "float", "float64", "double":
			dataType = DataTypeFloat64
		case "string", "text":
			dataType = DataTypeString
		}
	}
	return &Field{Name: fieldPath, DataTyp: dataType}, nil
}

func inferBinaryResultType(op BinaryOperator, left, right DataType) DataType {
	if op.IsComparison() || op.IsLogical() {
		return DataTypeBool
	}
	return DataTypeFloat64
}
