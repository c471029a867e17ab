package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yoonhogo/conveyor/pkg/config"
	"github.com/yoonhogo/conveyor/pkg/conveyorerr"
	"github.com/yoonhogo/conveyor/pkg/executor/channel"
	"github.com/yoonhogo/conveyor/pkg/executor/level"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build and execute a pipeline",
	RunE:  runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := requireConfigFile(); err != nil {
		return err
	}

	eng, pipeline, err := buildEngine(cfgFile, pluginDir)
	if err != nil {
		reportFailure(err)
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if pipeline.Global.PipelineTimeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, pipeline.Global.PipelineTimeout)
		defer timeoutCancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling run")
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("starting pipeline",
		zap.String("name", pipeline.Metadata.Name),
		zap.String("version", pipeline.Metadata.Version),
		zap.String("executor", string(pipeline.Global.ExecutorKind)),
		zap.Int("stages", len(eng.Graph.Order)))

	start := time.Now()
	var (
		outputCount int
		stageErrs   []error
		runErr      error
	)
	switch pipeline.Global.ExecutorKind {
	case config.ExecutorChannel:
		opts := []channel.Option{channel.WithLogger(logger), channel.WithMetrics(eng.Metrics)}
		if pipeline.ErrorHandling.DeadLetterPath != "" {
			w, err := newFileDeadLetterWriter(pipeline.ErrorHandling.DeadLetterPath)
			if err != nil {
				return err
			}
			defer w.Close()
			opts = append(opts, channel.WithDeadLetter(channelDeadLetterAdapter{w}))
		}
		exec := channel.New(pipeline.Global.ChannelBufferSize, opts...)
		res, err := exec.Run(ctx, eng.Graph, pipeline)
		runErr = err
		if res != nil {
			outputCount, stageErrs = len(res.Outputs), res.Errors
		}
	default:
		opts := []level.Option{level.WithLogger(logger), level.WithMetrics(eng.Metrics)}
		if pipeline.ErrorHandling.DeadLetterPath != "" {
			w, err := newFileDeadLetterWriter(pipeline.ErrorHandling.DeadLetterPath)
			if err != nil {
				return err
			}
			defer w.Close()
			opts = append(opts, level.WithDeadLetter(w))
		}
		exec := level.New(opts...)
		res, err := exec.Run(ctx, eng.Graph, pipeline)
		runErr = err
		if res != nil {
			outputCount, stageErrs = len(res.Outputs), res.Errors
		}
	}

	for _, e := range stageErrs {
		reportFailure(e)
	}

	if runErr != nil {
		logger.Error("pipeline failed", zap.Error(runErr), zap.Duration("elapsed", time.Since(start)))
		return runErr
	}

	logger.Info("pipeline completed",
		zap.Int("stages_with_output", outputCount),
		zap.Int("stage_errors", len(stageErrs)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// reportFailure prints one failure line per spec.md §7 "User-visible
// failure: ... one line per error identifying {stage_id, kind, message}".
func reportFailure(err error) {
	ce, ok := conveyorerr.As(err)
	if !ok {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if jsonErrors {
		b, _ := ce.MarshalJSON()
		fmt.Fprintln(os.Stderr, string(b))
		return
	}
	fmt.Fprintln(os.Stderr, ce.Error())
}
