package builtin

import (
	"fmt"

	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/expr"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// Map is the "map" transform stage: computes new/overwritten fields from
// its "fields" config, a map of output field name to expr.Expression tree
// evaluated against the original record.
type Map struct{}

func (Map) Name() string { return "map" }

func (Map) Metadata() stage.Metadata {
	return stage.Metadata{
		Category:    stage.CategoryTransform,
		Description: "Computes new or overwritten fields per record from expr.Expression trees.",
		Parameters: []stage.Parameter{
			{Name: "fields", Type: "map", Required: true, Description: "map of output field name to expr.Expression tree"},
			{Name: "keep_original", Type: "bool", Required: false, Default: true, Description: "whether fields absent from the mapping are preserved"},
		},
		Tags: []string{"transform", "map"},
		Origin: stage.OriginBuiltIn,
	}
}

func (Map) Validate(config map[string]interface{}) error {
	if err := stage.CheckParameters(Map{}.Metadata().Parameters, config); err != nil {
		return err
	}
	_, err := parseFields(config)
	return err
}

func (Map) Execute(_ *stage.Context, inputs map[string]payload.Payload, config map[string]interface{}) (payload.Payload, error) {
	in, err := singleInput(inputs, "map")
	if err != nil {
		return payload.Payload{}, err
	}
	rb, err := in.ToRowBatch()
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "map: input cannot be converted to records", err)
	}

	fields, err := parseFields(config)
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "map: invalid fields config", err)
	}

	keepOriginal := true
	if v, ok := config["keep_original"].(bool); ok {
		keepOriginal = v
	}

	out := make([]payload.Record, len(rb.Records))
	for i, rec := range rb.Records {
		var next payload.Record
		if keepOriginal {
			next = rec.Clone()
		} else {
			next = payload.Record{}
		}
		for name, e := range fields {
			v, err := e.Eval(rec)
			if err != nil {
				return payload.Payload{}, conveyorerr.StageExecution("", fmt.Sprintf("map: evaluating field %q", name), err)
			}
			next[name] = v
		}
		out[i] = next
	}

	return payload.NewRowBatch(&payload.RowBatch{Records: out}), nil
}

func (Map) ProducesOutput() bool { return true }

func parseFields(config map[string]interface{}) (map[string]expr.Expression, error) {
	raw, ok := config["fields"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("fields must be a map of name to expression object")
	}
	parser := expr.NewParser()
	out := make(map[string]expr.Expression, len(raw))
	for name, exprRaw := range raw {
		exprMap, ok := exprRaw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: expected an expression object", name)
		}
		e, err := parser.Parse(exprMap)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = e
	}
	return out, nil
}
