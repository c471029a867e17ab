package wasmhost

import (
	"encoding/json"
	"fmt"

	"github.com/yoonhogo/conveyor/pkg/payload"
)

// guestInputs is what crosses into the guest: the operation to run, one
// JSON-records array per named input, plus the stage's own config
// (spec.md §4.4.1 "execute(operation_name, inputs: list<(id,
// data_format)>, config_json)", §4.4.3 marshaling via JSON records).
// Operation is required whenever a plugin declares more than one
// capability (spec.md §4.3.3) so the guest knows which one to run.
type guestInputs struct {
	Operation string                               `json:"operation"`
	Inputs    map[string][]map[string]interface{} `json:"inputs"`
	Config    map[string]interface{}              `json:"config"`
}

// guestResult is what the guest returns from execute(): either a JSON
// records payload, or a PluginError (spec.md §4.4.1, §4.4.5).
type guestResult struct {
	Records []map[string]interface{} `json:"records,omitempty"`
	Error   *guestError               `json:"error,omitempty"`
}

// guestError mirrors the PluginError tagged union (spec.md §4.4.1):
// ConfigError, RuntimeError, IoError, SerializationError, each a message.
type guestError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *guestError) asError() error {
	if e == nil {
		return nil
	}
	return fmt.Errorf("%s: %s", e.Kind, e.Message)
}

// encodeInputs converts named Payloads to JSON records: Table and RowBatch
// inputs become records, Bytes a single base64 record. A Stream input, or a
// value json.Marshal cannot encode, makes it return a plain error, which the
// adapter reports as a StageExecutionError; no SerializationError kind is
// produced on the host side.
func encodeInputs(operation string, inputs map[string]payload.Payload, config map[string]interface{}) ([]byte, error) {
	gi := guestInputs{Operation: operation, Inputs: make(map[string][]map[string]interface{}, len(inputs)), Config: config}
	for id, p := range inputs {
		records, err := payloadToRecords(p)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", id, err)
		}
		gi.Inputs[id] = records
	}
	return json.Marshal(gi)
}

func payloadToRecords(p payload.Payload) ([]map[string]interface{}, error) {
	switch p.Kind() {
	case payload.KindBytes:
		b, err := p.Bytes()
		if err != nil {
			return nil, err
		}
		return []map[string]interface{}{{"__bytes_base64__": b}}, nil
	case payload.KindStream:
		return nil, fmt.Errorf("stream payloads cannot cross the WASM boundary; materialize first")
	default:
		rb, err := p.ToRowBatch()
		if err != nil {
			return nil, err
		}
		records := make([]map[string]interface{}, 0, len(rb.Records))
		for _, rec := range rb.Records {
			records = append(records, map[string]interface{}(rec))
		}
		return records, nil
	}
}

// decodeResult parses a guest execute() response into a Payload.
func decodeResult(raw []byte) (payload.Payload, error) {
	var gr guestResult
	if err := json.Unmarshal(raw, &gr); err != nil {
		return payload.Payload{}, fmt.Errorf("decoding guest result: %w", err)
	}
	if gr.Error != nil {
		return payload.Payload{}, gr.Error.asError()
	}
	records := make([]payload.Record, 0, len(gr.Records))
	for _, r := range gr.Records {
		records = append(records, payload.Record(r))
	}
	return payload.NewRowBatch(&payload.RowBatch{Records: records}), nil
}
