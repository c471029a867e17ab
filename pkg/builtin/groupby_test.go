package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/payload"
)

func TestGroupBySumAndCount(t *testing.T) {
	in := payload.NewRowBatch(&payload.RowBatch{Records: []payload.Record{
		{"region": "west", "amount": 10.0},
		{"region": "west", "amount": 20.0},
		{"region": "east", "amount": 5.0},
	}})

	config := map[string]interface{}{
		"keys": []interface{}{"region"},
		"aggregations": map[string]interface{}{
			"total": map[string]interface{}{"func": "sum", "field": "amount"},
			"n":     map[string]interface{}{"func": "count"},
		},
	}

	g := GroupBy{}
	require.NoError(t, g.Validate(config))

	out, err := g.Execute(nil, map[string]payload.Payload{"in": in}, config)
	require.NoError(t, err)

	rb, err := out.RowBatch()
	require.NoError(t, err)
	require.Len(t, rb.Records, 2)

	byRegion := map[string]payload.Record{}
	for _, r := range rb.Records {
		byRegion[r["region"].(string)] = r
	}
	assert.Equal(t, 30.0, byRegion["west"]["total"])
	assert.Equal(t, int64(2), byRegion["west"]["n"])
	assert.Equal(t, 5.0, byRegion["east"]["total"])
}

func TestGroupByRejectsUnknownFunc(t *testing.T) {
	g := GroupBy{}
	err := g.Validate(map[string]interface{}{
		"keys":         []interface{}{"region"},
		"aggregations": map[string]interface{}{"x": map[string]interface{}{"func": "median", "field": "amount"}},
	})
	assert.Error(t, err)
}
