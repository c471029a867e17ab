package wasmhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/payload"
)

func TestEncodeInputsConvertsRowBatchToJSONRecords(t *testing.T) {
	inputs := map[string]payload.Payload{
		"a": payload.NewRowBatch(&payload.RowBatch{Records: []payload.Record{
			{"id": float64(1), "name": "x"},
			{"id": float64(2), "name": "y"},
		}}),
	}
	raw, err := encodeInputs("filter", inputs, map[string]interface{}{"threshold": float64(5)})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"operation":"filter"`)
	assert.Contains(t, string(raw), `"threshold":5`)
	assert.Contains(t, string(raw), `"name":"x"`)
}

func TestEncodeInputsRejectsStreamPayload(t *testing.T) {
	ch := make(chan payload.StreamItem)
	close(ch)
	inputs := map[string]payload.Payload{
		"s": payload.NewStreamPayload(payload.NewStream(ch)),
	}
	_, err := encodeInputs("filter", inputs, nil)
	require.Error(t, err)
}

func TestDecodeResultParsesRecords(t *testing.T) {
	raw := []byte(`{"records":[{"id":1},{"id":2}]}`)
	p, err := decodeResult(raw)
	require.NoError(t, err)
	rb, err := p.RowBatch()
	require.NoError(t, err)
	assert.Len(t, rb.Records, 2)
}

func TestDecodeResultSurfacesGuestError(t *testing.T) {
	raw := []byte(`{"error":{"kind":"RuntimeError","message":"boom"}}`)
	_, err := decodeResult(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
