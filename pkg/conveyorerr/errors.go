// Package conveyorerr implements the error taxonomy of spec.md §7: each
// error kind propagates differently (surfaced before the pipeline runs,
// subject to the stage's error strategy, or always fatal), so the concrete
// type carries its Kind instead of callers doing string matching.
//
// Grounded on the teacher's PipelineError/ValidationError in
// pkg/coordination/pipeline/types.go: a struct error with Unwrap and a
// stage/pipeline identity, generalized into one taxonomy.
package conveyorerr

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies which row of spec.md §7's taxonomy an error belongs to.
type Kind string

const (
	KindConfigError          Kind = "ConfigError"
	KindGraphError           Kind = "GraphError"
	KindPluginLoadError      Kind = "PluginLoadError"
	KindStageExecutionError  Kind = "StageExecutionError"
	KindTimeoutError         Kind = "TimeoutError"
	KindInternalError        Kind = "InternalError"
)

// Error is the single concrete type behind every Kind in the taxonomy.
type Error struct {
	Kind      Kind      `json:"kind"`
	StageID   string    `json:"stage_id,omitempty"`
	Message   string    `json:"message"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface. The CLI's one-line-per-error
// reporting (spec.md §7 "non-zero exit ... one line per error identifying
// {stage_id, kind, message}") renders directly off this struct.
func (e *Error) Error() string {
	if e.StageID != "" {
		return fmt.Sprintf("[%s] stage %q: %s", e.Kind, e.StageID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// MarshalJSON renders the {stage_id, kind, message} line the CLI prints.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias struct {
		Kind    Kind   `json:"kind"`
		StageID string `json:"stage_id,omitempty"`
		Message string `json:"message"`
	}
	return json.Marshal(alias{Kind: e.Kind, StageID: e.StageID, Message: e.Message})
}

func newErr(kind Kind, stageID, msg string, cause error) *Error {
	return &Error{Kind: kind, StageID: stageID, Message: msg, Cause: cause, Timestamp: time.Now()}
}

// Config wraps a variable-substitution or stage-validate failure. Surfaced
// before the pipeline runs.
func Config(msg string, cause error) *Error {
	return newErr(KindConfigError, "", msg, cause)
}

// Graph wraps a DAG builder failure (duplicate id, missing reference,
// cycle). Surfaced before the pipeline runs.
func Graph(stageID, msg string) *Error {
	return newErr(KindGraphError, stageID, msg, nil)
}

// PluginLoad wraps a native- or WASM-host loading failure. Surfaced before
// the pipeline runs.
func PluginLoad(pluginName, msg string, cause error) *Error {
	return newErr(KindPluginLoadError, pluginName, msg, cause)
}

// StageExecution wraps an execute() failure, subject to the pipeline's
// error strategy.
func StageExecution(stageID, msg string, cause error) *Error {
	return newErr(KindStageExecutionError, stageID, msg, cause)
}

// Timeout wraps a stage or pipeline timeout.
func Timeout(stageID, msg string) *Error {
	return newErr(KindTimeoutError, stageID, msg, nil)
}

// Internal wraps a core invariant violation. Always fatal, no recovery.
func Internal(msg string, cause error) *Error {
	return newErr(KindInternalError, "", msg, cause)
}

// As reports whether err is a *Error and returns it.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
