package expr

import (
	"fmt"
)

// Eval evaluates a binary operation against one record.
func (e *BinaryOp) Eval(rec map[string]interface{}) (interface{}, error) {
	left, err := e.Left.Eval(rec)
	if err != nil {
		return nil, err
	}

	if e.Operator == OpAnd || e.Operator == OpOr {
		lb, ok := asBool(left)
		if !ok {
			return nil, fmt.Errorf("operand of %s is not boolean: %v", e.Operator, left)
		}
		if e.Operator == OpAnd && !lb {
			return false, nil
		}
		if e.Operator == OpOr && lb {
			return true, nil
		}
		right, err := e.Right.Eval(rec)
		if err != nil {
			return nil, err
		}
		rb, ok := asBool(right)
		if !ok {
			return nil, fmt.Errorf("operand of %s is not boolean: %v", e.Operator, right)
		}
		return rb, nil
	}

	right, err := e.Right.Eval(rec)
	if err != nil {
		return nil, err
	}

	if e.Operator.IsComparison() {
		return compare(e.Operator, left, right)
	}

	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %s requires numeric operands, got %T and %T", e.Operator, left, right)
	}
	switch e.Operator {
	case OpAdd:
		return lf + rf, nil
	case OpSubtract:
		return lf - rf, nil
	case OpMultiply:
		return lf * rf, nil
	case OpDivide:
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case OpModulo:
		if rf == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return float64(int64(lf) % int64(rf)), nil
	default:
		return nil, fmt.Errorf("unsupported binary operator: %s", e.Operator)
	}
}

// Eval evaluates a unary operation against one record.
func (e *UnaryOp) Eval(rec map[string]interface{}) (interface{}, error) {
	v, err := e.Operand.Eval(rec)
	if err != nil {
		return nil, err
	}
	switch e.Operator {
	case OpNot:
		b, ok := asBool(v)
		if !ok {
			return nil, fmt.Errorf("operand of ! is not boolean: %v", v)
		}
		return !b, nil
	case OpNegate:
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("operand of - is not numeric: %v", v)
		}
		return -f, nil
	default:
		return nil, fmt.Errorf("unsupported unary operator: %s", e.Operator)
	}
}

func compare(op BinaryOperator, left, right interface{}) (interface{}, error) {
	if lf, lok := asFloat(left); lok {
		if rf, rok := asFloat(right); rok {
			return compareFloat(op, lf, rf)
		}
	}
	if ls, lok := left.(string); lok {
		if rs, rok := right.(string); rok {
			return compareString(op, ls, rs)
		}
	}
	if lb, lok := asBool(left); lok {
		if rb, rok := asBool(right); rok {
			switch op {
			case OpEqual:
				return lb == rb, nil
			case OpNotEqual:
				return lb != rb, nil
			}
		}
	}
	return nil, fmt.Errorf("operator %s cannot compare %T and %T", op, left, right)
}

func compareFloat(op BinaryOperator, l, r float64) (interface{}, error) {
	switch op {
	case OpEqual:
		return l == r, nil
	case OpNotEqual:
		return l != r, nil
	case OpLessThan:
		return l < r, nil
	case OpLessEqual:
		return l <= r, nil
	case OpGreaterThan:
		return l > r, nil
	case OpGreaterEqual:
		return l >= r, nil
	default:
		return nil, fmt.Errorf("unsupported comparison operator: %s", op)
	}
}

func compareString(op BinaryOperator, l, r string) (interface{}, error) {
	switch op {
	case OpEqual:
		return l == r, nil
	case OpNotEqual:
		return l != r, nil
	case OpLessThan:
		return l < r, nil
	case OpLessEqual:
		return l <= r, nil
	case OpGreaterThan:
		return l > r, nil
	case OpGreaterEqual:
		return l >= r, nil
	default:
		return nil, fmt.Errorf("unsupported comparison operator: %s", op)
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}
