package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/weather-observation-etl/internal/analysis"
	"github.com/robfig/cron/v3"
)

// Runner executes a single batch.
type Runner interface {
	RunOnce(ctx context.Context) (analysis.Report, error)
}

// Schedule runs r immediately and then on every tick of the standard cron
// expr until ctx is cancelled. A tick that fires while a batch is still
// running is skipped. Batch errors are logged, never returned.
func Schedule(ctx context.Context, expr string, r Runner, logger *slog.Logger) error {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", expr, err)
	}

	cl := cronLogger{logger: logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	id := c.Schedule(sched, cron.FuncJob(func() { runLogged(ctx, r, logger) }))

	// The first batch goes through the same chain, so ticks that land while
	// it is still running are skipped.
	first := c.Entry(id).WrappedJob
	var initial sync.WaitGroup
	c.Start()
	initial.Go(first.Run)

	logger.Info("batch schedule started", "schedule", expr, "next", sched.Next(time.Now()))
	<-ctx.Done()
	<-c.Stop().Done()
	initial.Wait()
	logger.Info("batch schedule stopped")
	return nil
}

func runLogged(ctx context.Context, r Runner, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.RunOnce(ctx); err != nil {
		logger.Error("scheduled batch failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
