package level

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/config"
	"github.com/yoonhogo/conveyor/pkg/dag"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/registry"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

type countingStage struct {
	name     string
	produces bool
	calls    *int32
	fail     bool
	failN    int32 // fail on the first failN calls, then succeed
}

func (s countingStage) Name() string                         { return s.name }
func (s countingStage) Metadata() stage.Metadata              { return stage.Metadata{Category: stage.CategoryTransform} }
func (s countingStage) Validate(map[string]interface{}) error { return nil }
func (s countingStage) ProducesOutput() bool                  { return s.produces }

func (s countingStage) Execute(_ *stage.Context, inputs map[string]payload.Payload, _ map[string]interface{}) (payload.Payload, error) {
	n := atomic.AddInt32(s.calls, 1)
	if s.fail && n <= s.failN {
		return payload.Payload{}, fmt.Errorf("attempt %d failed", n)
	}
	return payload.NewRowBatch(&payload.RowBatch{Records: []payload.Record{{"n": n}}}), nil
}

func buildGraph(t *testing.T, reg *registry.Registry, specs []config.StageSpec) *dag.Graph {
	t.Helper()
	g, err := dag.New(reg, nil).Build(specs)
	require.NoError(t, err)
	return g
}

func TestRunEachStageExactlyOnce(t *testing.T) {
	var c1, c2 int32
	r := registry.New(nil)
	require.NoError(t, r.Register(countingStage{name: "src", produces: true, calls: &c1}))
	require.NoError(t, r.Register(countingStage{name: "sink", produces: true, calls: &c2}))

	specs := []config.StageSpec{
		{ID: "a", Function: "src"},
		{ID: "b", Function: "sink", Inputs: []string{"a"}},
	}
	g := buildGraph(t, r, specs)

	p := &config.Pipeline{Metadata: config.Metadata{Name: "p"}, ErrorHandling: config.ErrorHandling{Strategy: config.StrategyStop}}
	res, err := New().Run(context.Background(), g, p)
	require.NoError(t, err)
	assert.Equal(t, int32(1), c1)
	assert.Equal(t, int32(1), c2)
	assert.Len(t, res.Outputs, 2)
}

func TestRunPropagatesOutputToDownstream(t *testing.T) {
	var c1, c2 int32
	r := registry.New(nil)
	require.NoError(t, r.Register(countingStage{name: "src", produces: true, calls: &c1}))

	captured := make(map[string]payload.Payload)
	captureStage := &capturingStage{calls: &c2, captured: captured}
	require.NoError(t, r.Register(captureStage))

	specs := []config.StageSpec{
		{ID: "a", Function: "src"},
		{ID: "b", Function: "capture", Inputs: []string{"a"}},
	}
	g := buildGraph(t, r, specs)
	p := &config.Pipeline{Metadata: config.Metadata{Name: "p"}}
	_, err := New().Run(context.Background(), g, p)
	require.NoError(t, err)

	rb, err := captureStage.lastInputs["a"].RowBatch()
	require.NoError(t, err)
	assert.Len(t, rb.Records, 1)
}

type capturingStage struct {
	calls      *int32
	captured   map[string]payload.Payload
	lastInputs map[string]payload.Payload
}

func (s *capturingStage) Name() string                         { return "capture" }
func (s *capturingStage) Metadata() stage.Metadata              { return stage.Metadata{Category: stage.CategorySink} }
func (s *capturingStage) Validate(map[string]interface{}) error { return nil }
func (s *capturingStage) ProducesOutput() bool                  { return false }

func (s *capturingStage) Execute(_ *stage.Context, inputs map[string]payload.Payload, _ map[string]interface{}) (payload.Payload, error) {
	atomic.AddInt32(s.calls, 1)
	s.lastInputs = inputs
	return payload.Payload{}, nil
}

func TestRunContinueStrategySubstitutesEmptyPayload(t *testing.T) {
	var c1 int32
	r := registry.New(nil)
	require.NoError(t, r.Register(countingStage{name: "bad", produces: true, calls: &c1, fail: true, failN: 100}))

	specs := []config.StageSpec{{ID: "a", Function: "bad"}}
	g := buildGraph(t, r, specs)
	p := &config.Pipeline{Metadata: config.Metadata{Name: "p"}, ErrorHandling: config.ErrorHandling{Strategy: config.StrategyContinue}}

	res, err := New().Run(context.Background(), g, p)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	out, ok := res.Outputs["a"]
	require.True(t, ok)
	rb, err := out.RowBatch()
	require.NoError(t, err)
	assert.Empty(t, rb.Records)
}

func TestRunStopStrategyAbortsFurtherLevels(t *testing.T) {
	var c1, c2 int32
	r := registry.New(nil)
	require.NoError(t, r.Register(countingStage{name: "bad", produces: true, calls: &c1, fail: true, failN: 100}))
	require.NoError(t, r.Register(countingStage{name: "downstream", produces: true, calls: &c2}))

	specs := []config.StageSpec{
		{ID: "a", Function: "bad"},
		{ID: "b", Function: "downstream", Inputs: []string{"a"}},
	}
	g := buildGraph(t, r, specs)
	p := &config.Pipeline{Metadata: config.Metadata{Name: "p"}, ErrorHandling: config.ErrorHandling{Strategy: config.StrategyStop}}

	_, err := New().Run(context.Background(), g, p)
	require.Error(t, err)
	assert.Equal(t, int32(0), c2)
}

func TestRunRetrySucceedsOnThirdAttempt(t *testing.T) {
	var c1 int32
	r := registry.New(nil)
	require.NoError(t, r.Register(countingStage{name: "flaky", produces: true, calls: &c1, fail: true, failN: 2}))

	specs := []config.StageSpec{{ID: "a", Function: "flaky"}}
	g := buildGraph(t, r, specs)
	p := &config.Pipeline{
		Metadata:      config.Metadata{Name: "p"},
		ErrorHandling: config.ErrorHandling{Strategy: config.StrategyRetry, MaxRetries: 3},
	}

	res, err := New().Run(context.Background(), g, p)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, int32(3), c1)
}
