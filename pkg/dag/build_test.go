package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/config"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/registry"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

type fakeStage struct {
	name     string
	produces bool
	failVal  error
}

func (f fakeStage) Name() string { return f.name }
func (f fakeStage) Metadata() stage.Metadata {
	return stage.Metadata{Category: stage.CategoryTransform}
}
func (f fakeStage) Validate(map[string]interface{}) error { return f.failVal }
func (f fakeStage) Execute(*stage.Context, map[string]payload.Payload, map[string]interface{}) (payload.Payload, error) {
	return payload.NewRowBatch(&payload.RowBatch{}), nil
}
func (f fakeStage) ProducesOutput() bool { return f.produces }

func newTestRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()
	r := registry.New(nil)
	for _, n := range names {
		require.NoError(t, r.Register(fakeStage{name: n, produces: true}))
	}
	return r
}

func TestBuildComputesLevels(t *testing.T) {
	r := registry.New(nil)
	require.NoError(t, r.Register(fakeStage{name: "a", produces: true}))
	require.NoError(t, r.Register(fakeStage{name: "b", produces: true}))
	require.NoError(t, r.Register(fakeStage{name: "c", produces: false}))
	specs := []config.StageSpec{
		{ID: "s1", Function: "a", Inputs: nil},
		{ID: "s2", Function: "b", Inputs: []string{"s1"}},
		{ID: "s3", Function: "c", Inputs: []string{"s1", "s2"}},
	}

	g, err := New(r, nil).Build(specs)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Nodes["s1"].Level)
	assert.Equal(t, 1, g.Nodes["s2"].Level)
	assert.Equal(t, 2, g.Nodes["s3"].Level)
	assert.Len(t, g.Levels, 3)
	assert.Equal(t, []string{"s1"}, g.Sources)
}

func TestBuildRejectsDuplicateIDs(t *testing.T) {
	r := newTestRegistry(t, "a")
	specs := []config.StageSpec{
		{ID: "dup", Function: "a"},
		{ID: "dup", Function: "a"},
	}
	_, err := New(r, nil).Build(specs)
	require.Error(t, err)
	cErr, ok := conveyorerr.As(err)
	require.True(t, ok)
	assert.Equal(t, conveyorerr.KindGraphError, cErr.Kind)
	assert.Equal(t, "dup", cErr.StageID)
}

func TestBuildRejectsMissingInputReference(t *testing.T) {
	r := newTestRegistry(t, "a")
	specs := []config.StageSpec{
		{ID: "s1", Function: "a", Inputs: []string{"ghost"}},
	}
	_, err := New(r, nil).Build(specs)
	require.Error(t, err)
	cErr, _ := conveyorerr.As(err)
	assert.Equal(t, "s1", cErr.StageID)
	assert.Contains(t, cErr.Message, "ghost")
}

func TestBuildRejectsUnknownFunction(t *testing.T) {
	r := newTestRegistry(t, "a")
	specs := []config.StageSpec{{ID: "s1", Function: "missing"}}
	_, err := New(r, nil).Build(specs)
	require.Error(t, err)
}

func TestBuildDetectsCycle(t *testing.T) {
	r := newTestRegistry(t, "a", "b")
	specs := []config.StageSpec{
		{ID: "a", Function: "a", Inputs: []string{"b"}},
		{ID: "b", Function: "b", Inputs: []string{"a"}},
	}
	_, err := New(r, nil).Build(specs)
	require.Error(t, err)
	cErr, ok := conveyorerr.As(err)
	require.True(t, ok)
	assert.Equal(t, conveyorerr.KindGraphError, cErr.Kind)
	assert.Contains(t, []string{"a", "b"}, cErr.StageID)
}

func TestBuildSurfacesStageValidateFailure(t *testing.T) {
	r := registry.New(nil)
	require.NoError(t, r.Register(fakeStage{name: "bad", produces: true, failVal: assertErr("boom")}))
	specs := []config.StageSpec{{ID: "s1", Function: "bad"}}
	_, err := New(r, nil).Build(specs)
	require.Error(t, err)
	cErr, ok := conveyorerr.As(err)
	require.True(t, ok)
	assert.Equal(t, conveyorerr.KindConfigError, cErr.Kind)
	assert.Contains(t, cErr.Message, "s1")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
