package builtin

import (
	"fmt"

	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/expr"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// Filter is the "filter" transform stage: keeps records for which its
// "condition" expression evaluates to true.
type Filter struct{}

func (Filter) Name() string { return "filter" }

func (Filter) Metadata() stage.Metadata {
	return stage.Metadata{
		Category:    stage.CategoryTransform,
		Description: "Keeps records for which the condition expression evaluates to true.",
		Parameters: []stage.Parameter{
			{Name: "condition", Type: "map", Required: true, Description: "an expr.Expression tree, see pkg/expr"},
		},
		Tags: []string{"transform", "filter"},
		Origin: stage.OriginBuiltIn,
	}
}

func (Filter) Validate(config map[string]interface{}) error {
	if err := stage.CheckParameters(Filter{}.Metadata().Parameters, config); err != nil {
		return err
	}
	_, err := parseCondition(config)
	return err
}

func (Filter) Execute(_ *stage.Context, inputs map[string]payload.Payload, config map[string]interface{}) (payload.Payload, error) {
	in, err := singleInput(inputs, "filter")
	if err != nil {
		return payload.Payload{}, err
	}
	rb, err := in.ToRowBatch()
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "filter: input cannot be converted to records", err)
	}

	cond, err := parseCondition(config)
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "filter: invalid condition", err)
	}

	var kept []payload.Record
	for _, rec := range rb.Records {
		v, err := cond.Eval(rec)
		if err != nil {
			return payload.Payload{}, conveyorerr.StageExecution("", "filter: condition evaluation failed", err)
		}
		keep, ok := v.(bool)
		if !ok {
			return payload.Payload{}, conveyorerr.StageExecution("", fmt.Sprintf("filter: condition must evaluate to bool, got %T", v), nil)
		}
		if keep {
			kept = append(kept, rec)
		}
	}

	return payload.NewRowBatch(&payload.RowBatch{Records: kept}), nil
}

func (Filter) ProducesOutput() bool { return true }

func parseCondition(config map[string]interface{}) (expr.Expression, error) {
	raw, ok := config["condition"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("condition must be an expression object")
	}
	return expr.NewParser().Parse(raw)
}
