package variables

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	require.NoError(t, os.Setenv("CONVEYOR_TEST_VAR", "hello"))
	defer os.Unsetenv("CONVEYOR_TEST_VAR")

	r, err := New(nil)
	require.NoError(t, err)

	v, err := r.Resolve("${CONVEYOR_TEST_VAR} world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)
}

func TestResolveMissingEnvFails(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	_, err = r.Resolve("${DOES_NOT_EXIST_CONVEYOR}")
	assert.Error(t, err)
}

func TestResolveNamedVariable(t *testing.T) {
	r, err := New(map[string]string{"region": "us-west"})
	require.NoError(t, err)

	v, err := r.Resolve("bucket-{{region}}")
	require.NoError(t, err)
	assert.Equal(t, "bucket-us-west", v)
}

func TestResolveMissingNamedVariableFails(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	_, err = r.Resolve("{{missing}}")
	assert.Error(t, err)
}

func TestResolveNestedVariables(t *testing.T) {
	require.NoError(t, os.Setenv("CONVEYOR_TEST_HOST", "db.internal"))
	defer os.Unsetenv("CONVEYOR_TEST_HOST")

	r, err := New(map[string]string{"dsn": "postgres://${CONVEYOR_TEST_HOST}/app"})
	require.NoError(t, err)

	v, err := r.Resolve("{{dsn}}")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db.internal/app", v)
}

func TestResolveStringsWalksNestedConfig(t *testing.T) {
	require.NoError(t, os.Setenv("CONVEYOR_TEST_PATH", "/tmp/data.csv"))
	defer os.Unsetenv("CONVEYOR_TEST_PATH")

	r, err := New(nil)
	require.NoError(t, err)

	config := map[string]interface{}{
		"path": "${CONVEYOR_TEST_PATH}",
		"nested": map[string]interface{}{
			"items": []interface{}{"${CONVEYOR_TEST_PATH}", 42},
		},
	}

	out, err := r.ResolveStrings(config)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/data.csv", out["path"])
	nested := out["nested"].(map[string]interface{})
	items := nested["items"].([]interface{})
	assert.Equal(t, "/tmp/data.csv", items[0])
	assert.Equal(t, 42, items[1])
}
