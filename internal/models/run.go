package models

// RunEntry is one manifest row resolved to its event-log location.
type RunEntry struct {
	ScenarioName string
	Label        bool // is_executing_exploit
	Path         string
}

// Run is a loaded, immutable event log with its ground-truth label.
type Run struct {
	RunEntry
	Events []Event
}

// Window is a half-open [Start, End) slice of a run's timeline in microseconds.
type Window struct {
	Start int64
	End   int64
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts int64) bool {
	return ts >= w.Start && ts < w.End
}
