package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/payload"
)

func TestFilterKeepsMatchingRecords(t *testing.T) {
	in := payload.NewRowBatch(&payload.RowBatch{Records: []payload.Record{
		{"amount": 150.0},
		{"amount": 50.0},
	}})

	config := map[string]interface{}{
		"condition": map[string]interface{}{
			"op":    ">=",
			"left":  map[string]interface{}{"field": "amount"},
			"right": map[string]interface{}{"const": 100.0},
		},
	}

	f := Filter{}
	require.NoError(t, f.Validate(config))

	out, err := f.Execute(nil, map[string]payload.Payload{"in": in}, config)
	require.NoError(t, err)

	rb, err := out.RowBatch()
	require.NoError(t, err)
	require.Len(t, rb.Records, 1)
	assert.Equal(t, 150.0, rb.Records[0]["amount"])
}

func TestFilterInvalidConditionFailsValidation(t *testing.T) {
	f := Filter{}
	err := f.Validate(map[string]interface{}{"condition": "not an object"})
	assert.Error(t, err)
}
