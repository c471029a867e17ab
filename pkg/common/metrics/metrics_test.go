package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsStageExecution(t *testing.T) {
	c := New("test_executor_stage")
	c.StageExecuted(5 * time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.StagesExecutedTotal))
}

func TestCollectorRecordsFailureAndPluginLoad(t *testing.T) {
	c := New("test_executor_failure")
	c.StageFailed()
	c.PluginLoaded("wasm")
	c.PluginLoadFailed("native")
	c.DeadLettered()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.StagesFailedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.PluginsLoadedTotal.WithLabelValues("wasm")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.PluginLoadFailures.WithLabelValues("native")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.DeadLetterTotal))
}
