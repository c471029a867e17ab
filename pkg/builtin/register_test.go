package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/registry"
)

func TestRegisterAllRegistersEveryBuiltin(t *testing.T) {
	r := registry.New(nil)
	require.NoError(t, RegisterAll(r))

	names := r.List()
	assert.Contains(t, names, "csv.read")
	assert.Contains(t, names, "csv.write")
	assert.Contains(t, names, "json.read")
	assert.Contains(t, names, "json.write")
	assert.Contains(t, names, "filter")
	assert.Contains(t, names, "map")
	assert.Contains(t, names, "group-by")
	assert.Contains(t, names, "stream-to-records")
}
