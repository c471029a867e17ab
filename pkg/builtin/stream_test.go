package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/payload"
)

func TestStreamToRecordsDrainsStream(t *testing.T) {
	ch := make(chan payload.StreamItem, 2)
	ch <- payload.StreamItem{Payload: payload.NewRowBatch(&payload.RowBatch{Records: []payload.Record{{"a": 1.0}}})}
	ch <- payload.StreamItem{Payload: payload.NewRowBatch(&payload.RowBatch{Records: []payload.Record{{"a": 2.0}}})}
	close(ch)

	in := payload.NewStreamPayload(payload.NewStream(ch))

	s := StreamToRecords{}
	out, err := s.Execute(nil, map[string]payload.Payload{"in": in}, nil)
	require.NoError(t, err)

	rb, err := out.RowBatch()
	require.NoError(t, err)
	assert.Len(t, rb.Records, 2)
}
