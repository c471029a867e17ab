// Package config defines the logical pipeline configuration (spec.md §3.2)
// and the concrete TOML/viper front end that produces it (SPEC_FULL.md
// "Configuration"). pkg/dag and pkg/executor never see anything but the
// in-memory Pipeline struct defined here; parsing, legacy-shape
// preprocessing, and process-level settings all live in this package so
// the core stays a pure consumer of plain data.
//
// Grounded on the teacher's pkg/coordination/pipeline/types.go
// PipelineDefinition/StageDefinition (the serializable-config half of the
// pipeline package) generalized from a flat ordered Stages list to the
// spec's named-input DAG shape, plus pkg/common/config/config.go's viper
// layering for process-level Global settings.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrorStrategy is the pipeline-level error-handling policy (spec.md §2.2
// ErrorHandling, §7).
type ErrorStrategy string

const (
	StrategyStop     ErrorStrategy = "stop"
	StrategyContinue ErrorStrategy = "continue"
	StrategyRetry    ErrorStrategy = "retry"
)

// ExecutorKind selects between the level executor and the channel executor
// (spec.md §9 "Executor selection").
type ExecutorKind string

const (
	ExecutorLevel   ExecutorKind = "level"
	ExecutorChannel ExecutorKind = "channel"
)

// Metadata is pipeline-identifying information (spec.md §3.2).
type Metadata struct {
	Name        string `toml:"name" validate:"required"`
	Version     string `toml:"version" validate:"required"`
	Description string `toml:"description"`
}

// Global carries process- and run-wide settings (spec.md §3.2).
type Global struct {
	LogLevel            string            `toml:"log_level"`
	MaxParallelTasks    int               `toml:"max_parallel_tasks"`
	PipelineTimeout     time.Duration     `toml:"pipeline_timeout"`
	NativePlugins       []string          `toml:"native_plugins"`
	WasmPlugins         []string          `toml:"wasm_plugins"`
	Variables           map[string]string `toml:"variables"`
	ExecutorKind        ExecutorKind      `toml:"executor_kind" validate:"omitempty,oneof=level channel"`
	ChannelBufferSize   int               `toml:"channel_buffer_size"`
	PerRecordConcurrency int              `toml:"per_record_concurrency"`
}

// ErrorHandling is the pipeline's default error strategy (spec.md §3.2).
type ErrorHandling struct {
	Strategy       ErrorStrategy `toml:"strategy" validate:"omitempty,oneof=stop continue retry"`
	MaxRetries     int           `toml:"max_retries"`
	RetryDelay     time.Duration `toml:"retry_delay"`
	DeadLetterPath string        `toml:"dead_letter_path"`
}

// StageSpec is one node in the logical graph before it is built into a
// runtime DAG (spec.md §3.2).
type StageSpec struct {
	ID       string                 `toml:"id" validate:"required"`
	Function string                 `toml:"function" validate:"required"`
	Inputs   []string               `toml:"inputs"`
	Config   map[string]interface{} `toml:"config"`
}

// Pipeline is the full logical configuration the core consumes: the result
// of parsing a config file, resolving variables, and (if the legacy shape
// was used) running the legacy preprocessor.
type Pipeline struct {
	Metadata      Metadata      `toml:"metadata" validate:"required"`
	Global        Global        `toml:"global"`
	Stages        []StageSpec   `toml:"stages" validate:"required,min=1,dive"`
	ErrorHandling ErrorHandling `toml:"error_handling"`

	// PureProducer declares the pipeline as the escape hatch spec.md §3.4
	// invariant 4 names: a pipeline with no sink-style stage is otherwise
	// invalid, but one that is explicitly marked pure_producer is exempt
	// (e.g. a pipeline whose only purpose is to warm a cache or trigger a
	// side effect with no stage reporting produces_output=false).
	PureProducer bool `toml:"pure_producer"`
}

var validate = validator.New()

// ValidateShape runs struct-tag validation over the parsed pipeline: this
// checks the file's *shape* (required fields, one-of constraints) before
// pkg/dag ever sees it, distinct from each stage's own Validate(config)
// which pkg/dag invokes after the graph is built (spec.md §4.5 step 6).
func (p *Pipeline) ValidateShape() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("pipeline config shape is invalid: %w", err)
	}
	return nil
}

// Defaults fills in zero-valued Global fields the rest of the core assumes
// are set, mirroring the teacher's v.SetDefault layering.
func (p *Pipeline) Defaults() {
	if p.Global.LogLevel == "" {
		p.Global.LogLevel = "info"
	}
	if p.Global.MaxParallelTasks <= 0 {
		p.Global.MaxParallelTasks = 8
	}
	if p.Global.ExecutorKind == "" {
		p.Global.ExecutorKind = ExecutorLevel
	}
	if p.Global.ChannelBufferSize <= 0 {
		p.Global.ChannelBufferSize = 64
	}
	if p.Global.PerRecordConcurrency <= 0 {
		p.Global.PerRecordConcurrency = 4
	}
	if p.ErrorHandling.Strategy == "" {
		p.ErrorHandling.Strategy = StrategyStop
	}
	if p.ErrorHandling.MaxRetries <= 0 {
		p.ErrorHandling.MaxRetries = 1
	}
}
