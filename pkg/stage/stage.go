// Package stage defines the uniform operation contract every stage in a
// pipeline implements, whether built in, adapted from a native plugin, or
// adapted from a WASM plugin (spec.md §4.1, §9 "Trait-object polymorphism").
//
// Grounded on the teacher's pkg/coordination/pipeline/types.go Stage
// interface (Name/Type/Execute/Config), generalized from a single ordered
// input to the spec's named multi-input map and extended with metadata,
// validation, and produces_output.
package stage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yoonhogo/conveyor/pkg/payload"
)

// Category classifies what role a stage plays in the DAG.
type Category string

const (
	CategorySource    Category = "source"
	CategoryTransform Category = "transform"
	CategorySink      Category = "sink"
)

// Origin identifies where a stage implementation comes from. The executor
// never branches on Origin (spec.md §9 "Per-function registration"); it is
// informational, surfaced through Metadata for diagnostics (`conveyor
// plugins list` prints function names only, not their Origin).
type Origin string

const (
	OriginBuiltIn Origin = "built_in"
	OriginNative  Origin = "native"
	OriginWasm    Origin = "wasm"
)

// ValidationRule constrains one parameter. At most one of AllowedValues,
// Min/Max, MinLength/MaxLength, or Pattern is set (spec.md §4.1 "Parameter
// metadata").
type ValidationRule struct {
	AllowedValues []interface{}
	Min, Max      *float64
	MinLength     *int
	MaxLength     *int
	Pattern       string
}

// Parameter describes one entry in a stage's config schema.
type Parameter struct {
	Name        string
	Type        string // "string", "int", "float", "bool", "list", "map"
	Required    bool
	Default     interface{}
	Description string
	Rule        *ValidationRule
}

// Metadata self-describes a stage: category, human description, parameter
// schema, example configs, and tags (spec.md §4.1).
type Metadata struct {
	Category    Category
	Description string
	Parameters  []Parameter
	Examples    []map[string]interface{}
	Tags        []string
	Origin      Origin
}

// Context carries per-invocation context into Execute: cancellation,
// logging, and identity of the running stage within its pipeline. Grounded
// on the teacher's StageContext (pkg/coordination/pipeline/types.go).
type Context struct {
	PipelineName string
	StageID      string
	Level        int
	Logger       *zap.Logger
	StartTime    time.Time
	Ctx          context.Context
}

// Stage is the uniform operation contract every DAG node implements.
type Stage interface {
	// Name is the stable identifier under which the stage is registered.
	Name() string

	// Metadata self-describes the stage for documentation and config
	// validation tooling.
	Metadata() Metadata

	// Validate is a pure, side-effect-free check of config. It must fail
	// fast on missing required or constraint-violating fields.
	Validate(config map[string]interface{}) error

	// Execute runs the stage. inputs maps each declared input stage id to
	// the Payload it produced. Idempotence is not required.
	Execute(ctx *Context, inputs map[string]payload.Payload, config map[string]interface{}) (payload.Payload, error)

	// ProducesOutput reports whether the executor should store this
	// stage's result for downstream consumers. false marks a sink.
	ProducesOutput() bool
}
