// Package level implements the level executor (spec.md §4.6): topological,
// level-parallel execution with a per-stage timeout and pluggable error
// strategy.
//
// Grounded on the teacher's pkg/coordination/pipeline/executor.go
// executeStage (per-stage timeout via context.WithTimeout, a switch over
// Continue/Retry/Abort, StageStats accumulation) and Executor/
// ExecutorMetrics, generalized from a sequential for-loop over one ordered
// list to a concurrent fan-out per DAG level. golang.org/x/sync/errgroup
// powers the per-level spawn+await barrier in place of the teacher's loop.
package level

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yoonhogo/conveyor/pkg/common/metrics"
	"github.com/yoonhogo/conveyor/pkg/config"
	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/dag"
	"github.com/yoonhogo/conveyor/pkg/payload"
	"github.com/yoonhogo/conveyor/pkg/stage"
)

// DeadLetterRecord is one line of the dead-letter file (spec.md §6.4).
type DeadLetterRecord struct {
	StageID             string    `json:"stage_id"`
	Timestamp           time.Time `json:"timestamp"`
	ErrorMessage        string    `json:"error_message"`
	FailingInputSummary string    `json:"failing_input_snapshot,omitempty"`
}

// DeadLetterWriter appends a DeadLetterRecord; implemented outside this
// package (file-backed in pkg/config's dead_letter_path, or any sink a
// caller wants). Matches §1's stance that concrete I/O is an external
// collaborator.
type DeadLetterWriter interface {
	Write(DeadLetterRecord) error
}

// Result is the outcome of one Executor.Run.
type Result struct {
	Outputs map[string]payload.Payload // stage id -> output, only produces_output=true stages
	Errors  []error                    // one entry per stage failure (after retries), in level order
}

// Executor runs a Graph level by level: all stages at level L are spawned
// concurrently; only once every one of them completes does level L+1
// start (spec.md §4.6 steps 1-2, §5 "strict happens-before between
// levels").
type Executor struct {
	logger     *zap.Logger
	metrics    *metrics.Collector
	deadLetter DeadLetterWriter
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger injects a *zap.Logger (defaults to zap.NewNop(), mirroring
// the teacher's nil-logger guard).
func WithLogger(l *zap.Logger) Option { return func(e *Executor) { e.logger = l } }

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option { return func(e *Executor) { e.metrics = m } }

// WithDeadLetter attaches a dead-letter sink, used only when the pipeline's
// strategy is Continue and a dead_letter_path is configured (spec.md
// §6.4, §7 "Dead-letter").
func WithDeadLetter(w DeadLetterWriter) Option { return func(e *Executor) { e.deadLetter = w } }

// New constructs an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every level of g in order, honoring pipeline.ErrorHandling.
// ctx governs the whole run (spec.md §5 "pipeline-wide timeout cancels the
// whole run"); each stage attempt gets its own timeout equal to
// pipeline.Global.PipelineTimeout, or runs unbounded when PipelineTimeout
// is zero.
func (e *Executor) Run(ctx context.Context, g *dag.Graph, pipeline *config.Pipeline) (*Result, error) {
	res := &Result{Outputs: make(map[string]payload.Payload)}

	var outputsMu sync.Mutex
	stopped := false

	for levelIdx, nodes := range g.ByLevel() {
		if stopped {
			e.logger.Info("stop strategy engaged, suppressing further level launches",
				zap.Int("level", levelIdx))
			break
		}

		// Plain errgroup without WithContext: a stage's failure must not
		// cancel its still-running siblings at the same level (spec.md
		// §4.6 "in-flight stages at the current level are allowed to
		// complete"). Only the caller-supplied ctx (pipeline-wide
		// timeout/cancellation) reaches individual stages.
		levelStart := time.Now()
		var grp errgroup.Group
		for _, n := range nodes {
			n := n
			grp.Go(func() error {
				inputs := e.gatherInputs(&outputsMu, res.Outputs, n)
				out, err := e.runStageWithRetry(ctx, n, inputs, pipeline)
				if err != nil {
					outputsMu.Lock()
					res.Errors = append(res.Errors, err)
					outputsMu.Unlock()
					if e.metrics != nil {
						e.metrics.StageFailed()
					}

					if pipeline.ErrorHandling.Strategy == config.StrategyContinue {
						e.writeDeadLetter(n.ID, err)
						if n.Stage.ProducesOutput() {
							outputsMu.Lock()
							res.Outputs[n.ID] = payload.Empty(inferKind(inputs))
							outputsMu.Unlock()
						}
						return nil
					}
					return err
				}

				if n.Stage.ProducesOutput() {
					outputsMu.Lock()
					res.Outputs[n.ID] = out
					outputsMu.Unlock()
				}
				return nil
			})
		}

		err := grp.Wait()
		if e.metrics != nil {
			e.metrics.LevelCompleted(time.Since(levelStart))
		}
		if err != nil {
			// Stop strategy: this level is fully drained (in-flight
			// siblings were allowed to complete by errgroup.Wait before
			// this path is reached), but no further level is launched.
			stopped = true
		}
	}

	if stopped {
		return res, fmt.Errorf("pipeline stopped: %d stage(s) failed", len(res.Errors))
	}
	return res, nil
}

func (e *Executor) gatherInputs(mu *sync.Mutex, outputs map[string]payload.Payload, n *dag.Node) map[string]payload.Payload {
	mu.Lock()
	defer mu.Unlock()

	ins := make(map[string]payload.Payload, len(n.Inputs))
	for _, id := range n.Inputs {
		out, ok := outputs[id]
		if !ok {
			continue
		}
		if out.Cloneable() {
			cloned, err := out.Clone()
			if err == nil {
				ins[id] = cloned
				continue
			}
		}
		ins[id] = out
	}
	return ins
}

func (e *Executor) runStageWithRetry(ctx context.Context, n *dag.Node, inputs map[string]payload.Payload, pipeline *config.Pipeline) (payload.Payload, error) {
	strategy := pipeline.ErrorHandling.Strategy
	maxRetries := 1
	if strategy == config.StrategyRetry && pipeline.ErrorHandling.MaxRetries > 0 {
		maxRetries = pipeline.ErrorHandling.MaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		out, err := e.runStage(ctx, n, inputs, pipeline)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if strategy != config.StrategyRetry || attempt == maxRetries {
			break
		}

		e.logger.Warn("stage failed, retrying",
			zap.String("stage", n.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if pipeline.ErrorHandling.RetryDelay > 0 {
			select {
			case <-time.After(pipeline.ErrorHandling.RetryDelay):
			case <-ctx.Done():
				return payload.Payload{}, ctx.Err()
			}
		}
	}
	return payload.Payload{}, lastErr
}

func (e *Executor) runStage(ctx context.Context, n *dag.Node, inputs map[string]payload.Payload, pipeline *config.Pipeline) (payload.Payload, error) {
	stageCtx := ctx
	var cancel context.CancelFunc
	if pipeline.Global.PipelineTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, pipeline.Global.PipelineTimeout)
		defer cancel()
	}

	sc := &stage.Context{
		PipelineName: pipeline.Metadata.Name,
		StageID:      n.ID,
		Level:        n.Level,
		Logger:       e.logger.With(zap.String("stage", n.ID)),
		StartTime:    time.Now(),
		Ctx:          stageCtx,
	}

	start := time.Now()
	result := make(chan struct {
		out payload.Payload
		err error
	}, 1)

	go func() {
		out, err := safeExecute(n.Stage, sc, inputs, n.Config)
		result <- struct {
			out payload.Payload
			err error
		}{out, err}
	}()

	select {
	case r := <-result:
		if e.metrics != nil {
			e.metrics.StageExecuted(time.Since(start))
		}
		if r.err != nil {
			return payload.Payload{}, conveyorerr.StageExecution(n.ID, r.err.Error(), r.err)
		}
		return r.out, nil
	case <-stageCtx.Done():
		return payload.Payload{}, conveyorerr.Timeout(n.ID, "stage timed out")
	}
}

// safeExecute converts a panic inside a stage's Execute into a
// StageExecutionError, subject to the pipeline's error strategy like any
// other failure (spec.md §7 taxonomy; §4.3.4 describes the same contract
// for native plugins specifically, but §9's fault-boundary guidance
// applies to every stage origin).
func safeExecute(s stage.Stage, sc *stage.Context, inputs map[string]payload.Payload, cfg map[string]interface{}) (out payload.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return s.Execute(sc, inputs, cfg)
}

func (e *Executor) writeDeadLetter(stageID string, cause error) {
	if e.deadLetter == nil {
		return
	}
	if err := e.deadLetter.Write(DeadLetterRecord{
		StageID:      stageID,
		Timestamp:    time.Now(),
		ErrorMessage: cause.Error(),
	}); err != nil {
		e.logger.Warn("failed to write dead letter record", zap.Error(err))
	} else if e.metrics != nil {
		e.metrics.DeadLettered()
	}
}

func inferKind(inputs map[string]payload.Payload) payload.Kind {
	for _, p := range inputs {
		return p.Kind()
	}
	return payload.KindRowBatch
}
