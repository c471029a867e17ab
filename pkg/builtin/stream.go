package builtin

import (
	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// StreamToRecords is the "stream-to-records" transform stage: the explicit
// materialization point named in spec.md §9 ("Streaming fan-out") for
// turning a Stream into a cloneable RowBatch before it can be consumed by
// more than one downstream stage (the channel executor rejects a Stream
// output with more than one consumer when it first sees one).
type StreamToRecords struct{}

func (StreamToRecords) Name() string { return "stream-to-records" }

func (StreamToRecords) Metadata() stage.Metadata {
	return stage.Metadata{
		Category:    stage.CategoryTransform,
		Description: "Drains a Stream input into a single RowBatch, materializing it so it can be fanned out.",
		Tags:        []string{"transform", "stream"},
		Origin: stage.OriginBuiltIn,
	}
}

func (StreamToRecords) Validate(map[string]interface{}) error { return nil }

func (StreamToRecords) Execute(_ *stage.Context, inputs map[string]payload.Payload, _ map[string]interface{}) (payload.Payload, error) {
	in, err := singleInput(inputs, "stream-to-records")
	if err != nil {
		return payload.Payload{}, err
	}
	rb, err := in.ToRowBatch()
	if err != nil {
		return payload.Payload{}, conveyorerr.StageExecution("", "stream-to-records: draining stream failed", err)
	}
	return payload.NewRowBatch(rb), nil
}

func (StreamToRecords) ProducesOutput() bool { return true }
