package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/miradorstack/mirador-hids/internal/extractors"
	"github.com/miradorstack/mirador-hids/internal/metrics"
	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/seqmodel"
)

// Normalization names how a window log-likelihood is scaled by its size.
type Normalization string

const (
	// NormalizeLog subtracts log(total transitions).
	NormalizeLog Normalization = "log"
	// NormalizeDivide divides by total transitions.
	NormalizeDivide Normalization = "divide"
	// NormalizeNone keeps the raw log-likelihood.
	NormalizeNone Normalization = "none"
)

// Sentinels are the likelihood values recorded for windows that cannot be scored.
type Sentinels struct {
	EmptyWindow   float64
	UnknownSymbol float64
	ModelError    float64
}

// ScoringPolicy groups the scorer's tunables.
type ScoringPolicy struct {
	// TransitionFloor excludes windows whose total is at or below it.
	TransitionFloor int
	Normalization   Normalization
	Sentinels       Sentinels
}

// DefaultScoringPolicy returns floor 3, log normalisation and sentinels -110/-100/0.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		TransitionFloor: 3,
		Normalization:   NormalizeLog,
		Sentinels: Sentinels{
			EmptyWindow:   -110,
			UnknownSymbol: -100,
			ModelError:    0,
		},
	}
}

// Validate checks the policy for unusable values.
func (p ScoringPolicy) Validate() error {
	if p.TransitionFloor < 0 {
		return fmt.Errorf("transition floor must not be negative, got %d", p.TransitionFloor)
	}
	switch p.Normalization {
	case NormalizeLog, NormalizeDivide, NormalizeNone:
	default:
		return fmt.Errorf("unknown normalization %q", p.Normalization)
	}
	return nil
}

// Scorer turns a run into its per-window likelihood trace. The model is only
// read, so one scorer can serve every worker.
type Scorer struct {
	logger     *slog.Logger
	model      seqmodel.Model
	extractor  extractors.Extractor
	windowSize int64
	stepSize   int64
	policy     ScoringPolicy
}

// NewScorer wires a scorer. A zero stepSize falls back to DefaultStepSize.
func NewScorer(logger *slog.Logger, model seqmodel.Model, extractor extractors.Extractor, windowSize, stepSize int64, policy ScoringPolicy) (*Scorer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if model == nil {
		return nil, errors.New("scorer requires a model")
	}
	if extractor == nil {
		return nil, errors.New("scorer requires an extractor")
	}
	if stepSize == 0 {
		stepSize = DefaultStepSize
	}
	if windowSize <= 0 || stepSize < 0 {
		return nil, fmt.Errorf("invalid window %d / step %d", windowSize, stepSize)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		logger:     logger,
		model:      model,
		extractor:  extractor,
		windowSize: windowSize,
		stepSize:   stepSize,
		policy:     policy,
	}, nil
}

// ScoreRun scans run and scores every window. Window failures become outcomes;
// only cancellation stops the scan early.
func (s *Scorer) ScoreRun(ctx context.Context, run models.Run) (models.RunResult, error) {
	result := models.RunResult{
		Run:          run.Path,
		ScenarioName: run.ScenarioName,
		Label:        run.Label,
	}

	scanner, err := NewScanner(extractors.NewTrace(run), s.extractor, s.windowSize, s.stepSize)
	if err != nil {
		return result, err
	}
	for scanner.Next() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		score := s.ScoreFrame(scanner.Frame())
		if score.Outcome == models.OutcomeEmptyWindow {
			s.logger.Info("no events in window", "scenario", run.ScenarioName, "start", score.Start, "end", score.End)
		}
		metrics.ObserveWindow(string(score.Outcome))
		result.Windows = append(result.Windows, score)
	}
	return result, nil
}

// ScoreFrame resolves one window to a score or a typed failure outcome.
func (s *Scorer) ScoreFrame(frame Frame) models.WindowScore {
	score := models.WindowScore{Start: frame.Window.Start, End: frame.Window.End}
	if frame.Events == 0 {
		score.Outcome = models.OutcomeEmptyWindow
		score.Likelihood = s.policy.Sentinels.EmptyWindow
		return score
	}

	total := 0
	if frame.Paths != nil {
		total = frame.Paths.TotalTransitions()
	}
	score.Transitions = total
	if total <= s.policy.TransitionFloor {
		score.Outcome = models.OutcomeFiltered
		return score
	}

	likelihood, err := s.model.LogLikelihood(frame.Paths)
	if err != nil {
		var unknown *seqmodel.UnknownSymbolError
		if errors.As(err, &unknown) {
			s.logger.Debug("unknown symbol in window", "symbol", unknown.Symbol, "start", score.Start)
			score.Outcome = models.OutcomeUnknownSymbol
			score.Likelihood = s.policy.Sentinels.UnknownSymbol
			return score
		}
		s.logger.Debug("model failed to score window", "start", score.Start, "error", err)
		score.Outcome = models.OutcomeModelError
		score.Likelihood = s.policy.Sentinels.ModelError
		return score
	}

	score.Outcome = models.OutcomeScored
	score.Likelihood = s.normalize(likelihood, total)
	return score
}

func (s *Scorer) normalize(likelihood float64, total int) float64 {
	switch s.policy.Normalization {
	case NormalizeDivide:
		return likelihood / float64(total)
	case NormalizeNone:
		return likelihood
	default:
		return likelihood - math.Log(float64(total))
	}
}
