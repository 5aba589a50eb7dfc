// Package training mines benign runs and fits the sequence model.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/miradorstack/mirador-hids/internal/analysis"
	"github.com/miradorstack/mirador-hids/internal/engine"
	"github.com/miradorstack/mirador-hids/internal/extractors"
	"github.com/miradorstack/mirador-hids/internal/metrics"
	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/paths"
	"github.com/miradorstack/mirador-hids/internal/seqmodel"
)

// Options controls model estimation. Order < 0 estimates the order up to MaxOrder.
type Options struct {
	Order    int
	MaxOrder int
	Prior    float64
	Unknown  seqmodel.UnknownHandling
}

// Trainer mines paths from whole runs with the same extractor the scorer uses.
type Trainer struct {
	logger    *slog.Logger
	pool      *engine.Pool
	loader    engine.RunLoader
	extractor extractors.Extractor
}

// NewTrainer constructs a Trainer; a nil pool runs sequentially.
func NewTrainer(logger *slog.Logger, pool *engine.Pool, loader engine.RunLoader, extractor extractors.Extractor) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	if pool == nil {
		pool = engine.NewPool(logger, 1)
	}
	return &Trainer{logger: logger, pool: pool, loader: loader, extractor: extractor}
}

// Mine extracts and merges the paths of every run.
func (t *Trainer) Mine(ctx context.Context, entries []models.RunEntry) (*paths.Collection, error) {
	if len(entries) == 0 {
		return nil, errors.New("no training runs")
	}

	var mu sync.Mutex
	merged := paths.NewCollection()
	err := t.pool.Each(ctx, entries, func(_ context.Context, entry models.RunEntry) error {
		run, err := t.loader.Load(entry)
		if err != nil {
			return err
		}
		mined := t.extractor.Extract(extractors.NewTrace(run), nil)
		metrics.AddTrainingPaths(mined.Observations())

		mu.Lock()
		merged.Merge(mined)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.logger.Info("mined training paths",
		"runs", len(entries),
		"distinct", merged.Distinct(),
		"observations", merged.Observations(),
		"transitions", merged.TotalTransitions())
	return merged, nil
}

// Train mines entries and fits a model.
func (t *Trainer) Train(ctx context.Context, entries []models.RunEntry, opts Options) (*seqmodel.MultiOrderModel, error) {
	mined, err := t.Mine(ctx, entries)
	if err != nil {
		return nil, err
	}
	if mined.Empty() {
		return nil, errors.New("training runs produced no paths")
	}

	order := opts.Order
	if order < 0 {
		order, err = seqmodel.EstimateOrder(mined, opts.MaxOrder, opts.Prior)
		if err != nil {
			return nil, fmt.Errorf("estimate order: %w", err)
		}
		t.logger.Info("estimated model order", "order", order, "max_order", opts.MaxOrder)
	}

	model, err := seqmodel.Fit(mined, seqmodel.FitOptions{Order: order, Prior: opts.Prior, Unknown: opts.Unknown})
	if err != nil {
		return nil, err
	}
	t.logger.Info("model fitted", "order", model.Order(), "vocabulary", len(model.Vocabulary()))
	return model, nil
}

// Gaps collects the inter-event gaps of every run.
func (t *Trainer) Gaps(ctx context.Context, entries []models.RunEntry) ([]float64, error) {
	var mu sync.Mutex
	var gaps []float64
	err := t.pool.Each(ctx, entries, func(_ context.Context, entry models.RunEntry) error {
		run, err := t.loader.Load(entry)
		if err != nil {
			return err
		}
		runGaps := analysis.RunGaps(run)
		mu.Lock()
		gaps = append(gaps, runGaps...)
		mu.Unlock()
		return nil
	})
	return gaps, err
}
