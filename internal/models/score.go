package models

import "math"

// Outcome tags how a window was resolved by the scorer.
type Outcome string

const (
	// OutcomeScored carries a genuine normalised log-likelihood.
	OutcomeScored Outcome = "scored"
	// OutcomeFiltered marks windows with too few transitions to be scored.
	OutcomeFiltered Outcome = "filtered"
	// OutcomeEmptyWindow marks windows without events.
	OutcomeEmptyWindow Outcome = "empty_window"
	// OutcomeUnknownSymbol marks windows containing an event type the model never saw.
	OutcomeUnknownSymbol Outcome = "unknown_symbol"
	// OutcomeModelError marks windows the model failed to score.
	OutcomeModelError Outcome = "model_error"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{
	OutcomeScored,
	OutcomeFiltered,
	OutcomeEmptyWindow,
	OutcomeUnknownSymbol,
	OutcomeModelError,
}

// WindowScore is the scorer's record for one window of a run.
type WindowScore struct {
	Start       int64
	End         int64
	Transitions int
	Outcome     Outcome
	Likelihood  float64 // score or sentinel; unset for filtered windows
}

// HasLikelihood reports whether the window contributes to the likelihood trace.
func (w WindowScore) HasLikelihood() bool {
	return w.Outcome != OutcomeFiltered
}

// PassedFilter reports whether the window got past the transition floor.
func (w WindowScore) PassedFilter() bool {
	switch w.Outcome {
	case OutcomeScored, OutcomeUnknownSymbol, OutcomeModelError:
		return true
	default:
		return false
	}
}

// RunResult is the per-window trace of one scored run.
type RunResult struct {
	Run          string // run identity (log path)
	ScenarioName string
	Label        bool
	Windows      []WindowScore
}

// Likelihoods returns scores and sentinels of every non-filtered window in window order.
func (r RunResult) Likelihoods() []float64 {
	out := make([]float64, 0, len(r.Windows))
	for _, w := range r.Windows {
		if w.HasLikelihood() {
			out = append(out, w.Likelihood)
		}
	}
	return out
}

// Transitions returns the transition count of every window, filtered ones included.
// Windows rejected by the transition filter appear only in this view, so it is
// longer than Likelihoods whenever a window was filtered.
func (r RunResult) Transitions() []int {
	out := make([]int, 0, len(r.Windows))
	for _, w := range r.Windows {
		out = append(out, w.Transitions)
	}
	return out
}

// Times returns the start of every window that passed the transition filter.
func (r RunResult) Times() []int64 {
	out := make([]int64, 0, len(r.Windows))
	for _, w := range r.Windows {
		if w.PassedFilter() {
			out = append(out, w.Start)
		}
	}
	return out
}

// MinLikelihood is the lowest likelihood over windows that passed the filter.
// Empty-window sentinels never count. NaN when no window qualifies.
func (r RunResult) MinLikelihood() float64 {
	min := math.NaN()
	for _, w := range r.Windows {
		if !w.PassedFilter() {
			continue
		}
		if math.IsNaN(min) || w.Likelihood < min {
			min = w.Likelihood
		}
	}
	return min
}

// CountOutcome returns how many windows ended with the given outcome.
func (r RunResult) CountOutcome(outcome Outcome) int {
	n := 0
	for _, w := range r.Windows {
		if w.Outcome == outcome {
			n++
		}
	}
	return n
}
