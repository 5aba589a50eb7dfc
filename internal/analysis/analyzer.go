// Package analysis aggregates scored runs into verdicts and reports.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/tracking"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

// DefaultTraceThreshold selects the runs whose window traces are written out.
const DefaultTraceThreshold = -1.0

// Options configures verdicts and diagnostics.
type Options struct {
	// Threshold classifies a run as exploit when its minimum likelihood is below it.
	Threshold float64
	// TraceThreshold selects runs for WriteMisclassifiedRuns.
	TraceThreshold float64
}

// Analyzer joins run results with the manifest. AddRun may be called from
// many goroutines; the other methods expect scoring to be finished.
type Analyzer struct {
	logger   *slog.Logger
	recorder tracking.Recorder
	runs     []models.RunEntry
	opts     Options

	mu      sync.Mutex
	results []models.RunResult
	table   models.AnalysisTable
	stale   bool
}

// NewAnalyzer creates an analyzer over runs, kept in manifest order. A nil
// recorder discards metrics.
func NewAnalyzer(logger *slog.Logger, recorder tracking.Recorder, runs []models.RunEntry, opts Options) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = tracking.Nop{}
	}
	return &Analyzer{
		logger:   logger,
		recorder: recorder,
		runs:     runs,
		opts:     opts,
		stale:    true,
	}
}

// Threshold returns the classification threshold.
func (a *Analyzer) Threshold() float64 {
	return a.opts.Threshold
}

// AddRun stores one run result.
func (a *Analyzer) AddRun(result models.RunResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
	a.stale = true
}

// Results returns a copy of the stored results in arrival order.
func (a *Analyzer) Results() []models.RunResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.RunResult(nil), a.results...)
}

// EvaluateRuns rebuilds the analysis table from every stored result. Calling
// it again without new results yields the same table. The returned table is a
// copy; changing it does not affect later evaluations.
func (a *Analyzer) EvaluateRuns() models.AnalysisTable {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append(models.AnalysisTable(nil), a.evaluateLocked()...)
}

func (a *Analyzer) evaluateLocked() models.AnalysisTable {
	if !a.stale {
		return a.table
	}

	byRun := make(map[string]int, len(a.results))
	for i, r := range a.results {
		if _, dup := byRun[r.Run]; dup {
			a.logger.Warn("duplicate result for run, keeping the first", "run", r.Run)
			continue
		}
		byRun[r.Run] = i
	}

	table := make(models.AnalysisTable, 0, len(byRun))
	for _, entry := range a.runs {
		id, ok := byRun[entry.Path]
		if !ok {
			continue
		}
		minimum := a.results[id].MinLikelihood()
		table = append(table, models.AnalysisRow{
			ScenarioName:  entry.ScenarioName,
			Run:           entry.Path,
			Label:         entry.Label,
			MinLikelihood: minimum,
			ResultID:      id,
			Predicted:     !math.IsNaN(minimum) && minimum < a.opts.Threshold,
		})
	}

	a.table = table
	a.stale = false
	return table
}

// MinLikelihood returns the q-quantile of the run minima, ignoring runs
// without any scorable window.
func (a *Analyzer) MinLikelihood(q float64) float64 {
	table := a.EvaluateRuns()
	minima := make([]float64, 0, len(table))
	for _, row := range table {
		minima = append(minima, row.MinLikelihood)
	}
	return utils.Quantile(minima, q)
}

// Report computes the classification report and records the exploit-class
// precision, recall and f1.
func (a *Analyzer) Report(ctx context.Context) (models.ClassificationReport, error) {
	report := BuildReport(a.EvaluateRuns())

	var errs []error
	for _, m := range []struct {
		key   string
		value float64
	}{
		{"precision", report.Exploit.Precision},
		{"recall", report.Exploit.Recall},
		{"f1", report.Exploit.F1},
	} {
		if err := a.recorder.LogScalar(ctx, m.key, m.value, 0); err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", m.key, err))
		}
	}

	a.logger.Info("classification report",
		"runs", report.Total,
		"threshold", a.opts.Threshold,
		"precision", report.Exploit.Precision,
		"recall", report.Exploit.Recall,
		"f1", report.Exploit.F1,
		"accuracy", report.Accuracy)
	return report, errors.Join(errs...)
}

// WriteMisclassifiedRuns records the window traces of every run whose minimum
// is below the trace threshold, restricted to misclassified runs when
// onlyWrong is set. It returns the number of traced runs.
func (a *Analyzer) WriteMisclassifiedRuns(ctx context.Context, onlyWrong bool) (int, error) {
	a.mu.Lock()
	table := a.evaluateLocked()
	results := a.results
	a.mu.Unlock()

	traced, wrong := 0, 0
	for _, row := range table {
		if row.Misclassified() {
			wrong++
		}
		if math.IsNaN(row.MinLikelihood) || row.MinLikelihood >= a.opts.TraceThreshold {
			continue
		}
		if onlyWrong && !row.Misclassified() {
			continue
		}
		if err := a.writeTrace(ctx, row, results[row.ResultID]); err != nil {
			return traced, err
		}
		traced++
	}

	if onlyWrong {
		a.logger.Info("misclassified runs", "errors", wrong, "traced", traced)
	}
	return traced, nil
}

func (a *Analyzer) writeTrace(ctx context.Context, row models.AnalysisRow, result models.RunResult) error {
	suffix := row.ScenarioName + "_no_expl"
	if row.Label {
		suffix = row.ScenarioName + "_w_expl"
	}
	for _, w := range result.Windows {
		if !w.PassedFilter() {
			continue
		}
		if err := a.recorder.LogScalar(ctx, "transitions_"+suffix, float64(w.Transitions), w.Start); err != nil {
			return fmt.Errorf("trace %s: %w", row.ScenarioName, err)
		}
		if err := a.recorder.LogScalar(ctx, "likelihood_"+suffix, w.Likelihood, w.Start); err != nil {
			return fmt.Errorf("trace %s: %w", row.ScenarioName, err)
		}
	}
	return nil
}
