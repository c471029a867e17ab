package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/payload"
)

func TestJSONReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(src, []byte(`[{"name":"widget","amount":150},{"name":"gadget","amount":50}]`), 0o644))

	read := JSONRead{}
	out, err := read.Execute(nil, nil, map[string]interface{}{"path": src})
	require.NoError(t, err)

	rb, err := out.RowBatch()
	require.NoError(t, err)
	assert.Len(t, rb.Records, 2)

	dst := filepath.Join(dir, "out.json")
	write := JSONWrite{}
	_, err = write.Execute(nil, map[string]payload.Payload{"in": out}, map[string]interface{}{"path": dst, "indent": true})
	require.NoError(t, err)

	written, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(written), "widget")
}
