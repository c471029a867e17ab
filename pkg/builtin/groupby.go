package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// GroupBy is the "group-by" transform stage: partitions records by the
// values of "keys" and reduces each group with "aggregations"
// (count, sum, avg, min, max applied to a named field).
type GroupBy struct{}

func (GroupBy) Name() string { return "group-by" }

func (GroupBy) Metadata() stage.Metadata {
	return stage.Metadata{
		Category:    stage.CategoryTransform,
		Description: "Partitions records by key fields and reduces each group with an aggregation.",
		Parameters: []stage.Parameter{
			{Name: "keys", Type: "list", Required: true, Description: "field names to group by"},
			{Name: "aggregations", Type: "map", Required: true, Description: "output field name -> {func, field}"},
		},
		Tags: []string{"transform", "aggregate"},
		Origin: stage.OriginBuiltIn,
	}
}

func (GroupBy) Validate(config map[string]interface{}) error {
	if err := stage.CheckParameters(GroupBy{}.Metadata().Parameters, config); err != nil {
		return err
	}
	_, err := parseKeys(config)
	if err != nil {
		return err
	}
	_, err = parseAggregations(config)
	return err
}

type aggregation struct {
	Func  string
	Field string
}

func parseKeys(config map[string]interface{}) ([]string, error) {
	raw, ok := config["keys"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("keys must be a non-empty list of field names")
	}
	keys := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("keys[%d] must be a string", i)
		}
		keys[i] = s
	}
	return keys, nil
}

func parseAggregations(config map[string]interface{}) (map[string]aggregation, error) {
	raw, ok := config["aggregations"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("aggregations must be a map of output name to {func, field}")
	}
	out := make(map[string]aggregation, len(raw))
	for name, v := range raw {
		spec, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("aggregation %q must be an object with func/field", name)
		}
		fn, _ := spec["func"].(string)
		switch fn {
		case "count", "sum", "avg", "min", "max":
		default:
			return nil, fmt.Errorf("aggregation %q: unsupported func %q", name, fn)
		}
		field, _ := spec["field"].(string)
		if fn != "count" && field == "" {
			return nil, fmt.Errorf("aggregation %q: func %q requires a field", name, fn)
		}
		out[name] = aggregation{Func: fn, Field: field}
	}
	return out, nil
}

func (GroupBy) Execute(_ *stage.Context, inputs map[string]payload.Payload, config map[string]interface{}) (payload.Payload, error) {
	in, err := singleInput(inputs, "group-by")
	if err != nil {
		return payload.Payload{}, err
	}
	rb, err := in.ToRowBatch()
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "group-by: input cannot be converted to records", err)
	}

	keys, err := parseKeys(config)
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "group-by: invalid keys", err)
	}
	aggs, err := parseAggregations(config)
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "group-by: invalid aggregations", err)
	}

	groupOrder := []string{}
	groups := map[string][]payload.Record{}
	for _, rec := range rb.Records {
		k := groupKey(rec, keys)
		if _, seen := groups[k]; !seen {
			groupOrder = append(groupOrder, k)
		}
		groups[k] = append(groups[k], rec)
	}
	sort.Strings(groupOrder)

	out := make([]payload.Record, 0, len(groupOrder))
	for _, k := range groupOrder {
		members := groups[k]
		rec := payload.Record{}
		for _, keyName := range keys {
			rec[keyName] = members[0][keyName]
		}
		for name, agg := range aggs {
			v, err := reduce(agg, members)
			if err != nil {
				return payload.Payload{}, conveyorerr.StageExecution("", fmt.Sprintf("group-by: aggregation %q", name), err)
			}
			rec[name] = v
		}
		out = append(out, rec)
	}

	return payload.NewRowBatch(&payload.RowBatch{Records: out}), nil
}

func (GroupBy) ProducesOutput() bool { return true }

func groupKey(rec payload.Record, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%v", rec[k])
	}
	return strings.Join(parts, "\x1f")
}

func reduce(agg aggregation, members []payload.Record) (interface{}, error) {
	if agg.Func == "count" {
		return int64(len(members)), nil
	}

	var sum float64
	var min, max float64
	n := 0
	for _, rec := range members {
		v, ok := rec[agg.Field]
		if !ok {
			continue
		}
		f, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("field %q is not numeric: %v", agg.Field, v)
		}
		if n == 0 {
			min, max = f, f
		} else {
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
		}
		sum += f
		n++
	}

	switch agg.Func {
	case "sum":
		return sum, nil
	case "avg":
		if n == 0 {
			return 0.0, nil
		}
		return sum / float64(n), nil
	case "min":
		return min, nil
	case "max":
		return max, nil
	default:
		return nil, fmt.Errorf("unsupported aggregation func %q", agg.Func)
	}
}

func toNumber(v interface{}) (float64, bool) {
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
