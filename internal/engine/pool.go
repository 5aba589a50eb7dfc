package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-hids/internal/metrics"
	"github.com/miradorstack/mirador-hids/internal/models"
)

// RunLoader reads a manifest entry into a run.
type RunLoader interface {
	Load(entry models.RunEntry) (models.Run, error)
}

// RunScorer produces the window trace of a run.
type RunScorer interface {
	ScoreRun(ctx context.Context, run models.Run) (models.RunResult, error)
}

// ResultSink collects run results; it must accept concurrent callers.
type ResultSink interface {
	AddRun(result models.RunResult)
}

// Pool fans runs out over a bounded number of goroutines.
type Pool struct {
	logger  *slog.Logger
	workers int
}

// NewPool returns a pool of the given width; workers < 1 means one.
func NewPool(logger *slog.Logger, workers int) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Pool{logger: logger, workers: workers}
}

// Workers returns the pool width.
func (p *Pool) Workers() int {
	return p.workers
}

// Each calls fn once per entry. The first error cancels the remaining work
// and is returned.
func (p *Pool) Each(ctx context.Context, entries []models.RunEntry, fn func(ctx context.Context, entry models.RunEntry) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, entry := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, entry)
		})
	}
	return g.Wait()
}

// ScoreRuns loads and scores every entry, handing results to sink in
// completion order.
func (p *Pool) ScoreRuns(ctx context.Context, entries []models.RunEntry, loader RunLoader, scorer RunScorer, sink ResultSink) error {
	return p.Each(ctx, entries, func(ctx context.Context, entry models.RunEntry) error {
		start := time.Now()
		run, err := loader.Load(entry)
		if err != nil {
			metrics.ObserveRun(time.Since(start), metrics.OutcomeError)
			return err
		}
		result, err := scorer.ScoreRun(ctx, run)
		if err != nil {
			metrics.ObserveRun(time.Since(start), metrics.OutcomeError)
			return fmt.Errorf("score run %s: %w", entry.Path, err)
		}
		metrics.ObserveRun(time.Since(start), metrics.OutcomeSuccess)
		p.logger.Debug("run scored",
			"scenario", entry.ScenarioName,
			"windows", len(result.Windows),
			"min_likelihood", result.MinLikelihood(),
			"duration", time.Since(start))
		sink.AddRun(result)
		return nil
	})
}
