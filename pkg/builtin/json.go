package builtin

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// JSONRead is the "json.read" source stage: reads a JSON array of objects
// into a RowBatch.
type JSONRead struct{}

func (JSONRead) Name() string { return "json.read" }

func (JSONRead) Metadata() stage.Metadata {
	return stage.Metadata{
		Category:    stage.CategorySource,
		Description: "Reads a JSON array of objects into a RowBatch.",
		Parameters: []stage.Parameter{
			{Name: "path", Type: "string", Required: true, Description: "path to the JSON file"},
		},
		Tags: []string{"source", "json"},
		Origin: stage.OriginBuiltIn,
	}
}

func (JSONRead) Validate(config map[string]interface{}) error {
	return stage.CheckParameters(JSONRead{}.Metadata().Parameters, config)
}

func (JSONRead) Execute(_ *stage.Context, _ map[string]payload.Payload, config map[string]interface{}) (payload.Payload, error) {
	path, _ := config["path"].(string)
	raw, err := os.ReadFile(path)
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", fmt.Sprintf("json.read: cannot open %q", path), err)
	}

	var records []payload.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "json.read: malformed JSON array", err)
	}

	return payload.NewRowBatch(&payload.RowBatch{Records: records}), nil
}

func (JSONRead) ProducesOutput() bool { return true }

// JSONWrite is the "json.write" sink stage: writes its input (Table or
// RowBatch) as a JSON array of objects.
type JSONWrite struct{}

func (JSONWrite) Name() string { return "json.write" }

func (JSONWrite) Metadata() stage.Metadata {
	return stage.Metadata{
		Category:    stage.CategorySink,
		Description: "Writes its input (Table or RowBatch) as a JSON array of objects.",
		Parameters: []stage.Parameter{
			{Name: "path", Type: "string", Required: true, Description: "destination JSON file path"},
			{Name: "indent", Type: "bool", Required: false, Default: false},
		},
		Tags: []string{"sink", "json"},
		Origin: stage.OriginBuiltIn,
	}
}

func (JSONWrite) Validate(config map[string]interface{}) error {
	return stage.CheckParameters(JSONWrite{}.Metadata().Parameters, config)
}

func (JSONWrite) Execute(_ *stage.Context, inputs map[string]payload.Payload, config map[string]interface{}) (payload.Payload, error) {
	in, err := singleInput(inputs, "json.write")
	if err != nil {
		return payload.Payload{}, err
	}
	rb, err := in.ToRowBatch()
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "json.write: input cannot be converted to records", err)
	}

	var out []byte
	if indent, _ := config["indent"].(bool); indent {
		out, err = json.MarshalIndent(rb.Records, "", "  ")
	} else {
		out, err = json.Marshal(rb.Records)
	}
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "json.write: marshal failed", err)
	}

	path, _ := config["path"].(string)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", fmt.Sprintf("json.write: cannot write %q", path), err)
	}

	return payload.Payload{}, nil
}

func (JSONWrite) ProducesOutput() bool { return false }
