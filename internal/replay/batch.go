package replay

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of scenarios a BatchRunner replays at
// once unless WithConcurrency says otherwise.
const DefaultConcurrency = 4

// BatchRunner replays many scenarios concurrently.
type BatchRunner struct {
	runner      *Runner
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithConcurrency sets the maximum number of concurrent scenarios.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithBatchLogger sets the logger for batch-level messages.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchRunner) { b.logger = logger }
}

// NewBatchRunner returns a BatchRunner that replays through runner.
func NewBatchRunner(runner *Runner, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{runner: runner, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Run replays every scenario and returns their results in input order.
// A failing scenario is recorded in its Result and does not stop the
// others; the returned error is only set when ctx ends.
func (b *BatchRunner) Run(ctx context.Context, scenarios []*Scenario) ([]Result, error) {
	b.logger.Info("starting replay batch", "total", len(scenarios), "concurrency", b.concurrency)
	start := time.Now()

	results := make([]Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			select {
			case <-ctx.Done():
				results[i] = Result{Scenario: sc.Name, Error: ctx.Err().Error()}
				return ctx.Err()
			default:
			}

			res, err := b.runner.Run(ctx, sc)
			results[i] = res
			if err != nil {
				b.logger.Warn("scenario failed", "scenario", res.Scenario, "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	b.logger.Info("replay batch complete", "total", len(scenarios), "elapsed", time.Since(start))
	return results, err
}
