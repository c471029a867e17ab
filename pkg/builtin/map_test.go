package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/payload"
)

func TestMapComputesNewField(t *testing.T) {
	in := payload.NewRowBatch(&payload.RowBatch{Records: []payload.Record{
		{"price": 10.0, "qty": 3.0},
	}})

	config := map[string]interface{}{
		"fields": map[string]interface{}{
			"total": map[string]interface{}{
				"op":    "*",
				"left":  map[string]interface{}{"field": "price"},
				"right": map[string]interface{}{"field": "qty"},
			},
		},
	}

	m := Map{}
	require.NoError(t, m.Validate(config))

	out, err := m.Execute(nil, map[string]payload.Payload{"in": in}, config)
	require.NoError(t, err)

	rb, err := out.RowBatch()
	require.NoError(t, err)
	require.Len(t, rb.Records, 1)
	assert.Equal(t, 30.0, rb.Records[0]["total"])
	assert.Equal(t, 10.0, rb.Records[0]["price"])
}

func TestMapDropsOriginalWhenDisabled(t *testing.T) {
	in := payload.NewRowBatch(&payload.RowBatch{Records: []payload.Record{{"price": 10.0}}})
	config := map[string]interface{}{
		"fields":        map[string]interface{}{"doubled": map[string]interface{}{"op": "+", "left": map[string]interface{}{"field": "price"}, "right": map[string]interface{}{"const": 10.0}}},
		"keep_original": false,
	}
	m := Map{}
	out, err := m.Execute(nil, map[string]payload.Payload{"in": in}, config)
	require.NoError(t, err)
	rb, err := out.RowBatch()
	require.NoError(t, err)
	_, hasPrice := rb.Records[0]["price"]
	assert.False(t, hasPrice)
}
