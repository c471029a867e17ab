package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDAGShape(t *testing.T) {
	raw := []byte(`
[metadata]
name = "csv-filter"
version = "1.0.0"

[global]
executor_kind = "level"

[[stages]]
id = "read"
function = "csv.read"
inputs = []
[stages.config]
path = "in.csv"

[[stages]]
id = "filter"
function = "filter"
inputs = ["read"]
[stages.config]
expression = "amount >= 100"
`)

	p, err := Load(raw)
	require.NoError(t, err)
	assert.Equal(t, "csv-filter", p.Metadata.Name)
	assert.Len(t, p.Stages, 2)
	assert.Equal(t, []string{"read"}, p.Stages[1].Inputs)
	assert.Equal(t, ExecutorLevel, p.Global.ExecutorKind)
}

func TestLoadLegacyShape(t *testing.T) {
	raw := []byte(`
[metadata]
name = "legacy"
version = "1.0.0"

[[sources]]
id = "src"
type = "csv"

[[transforms]]
id = "flt"
type = "filter"
[transforms.config]
expression = "amount >= 100"

[[sinks]]
id = "out"
type = "json"
`)

	p, err := Load(raw)
	require.NoError(t, err)
	require.Len(t, p.Stages, 3)
	assert.Equal(t, "csv.read", p.Stages[0].Function)
	assert.Empty(t, p.Stages[0].Inputs)
	assert.Equal(t, "filter", p.Stages[1].Function)
	assert.Equal(t, []string{"src"}, p.Stages[1].Inputs)
	assert.Equal(t, "json.write", p.Stages[2].Function)
	assert.Equal(t, []string{"flt"}, p.Stages[2].Inputs)
}

func TestValidateShapeRejectsMissingName(t *testing.T) {
	p := &Pipeline{
		Metadata: Metadata{Version: "1.0.0"},
		Stages:   []StageSpec{{ID: "a", Function: "csv.read"}},
	}
	err := p.ValidateShape()
	assert.Error(t, err)
}

func TestDefaultsFillZeroValues(t *testing.T) {
	p := &Pipeline{Metadata: Metadata{Name: "x", Version: "1"}, Stages: []StageSpec{{ID: "a", Function: "csv.read"}}}
	p.Defaults()
	assert.Equal(t, ExecutorLevel, p.Global.ExecutorKind)
	assert.Equal(t, StrategyStop, p.ErrorHandling.Strategy)
	assert.Greater(t, p.Global.MaxParallelTasks, 0)
}
