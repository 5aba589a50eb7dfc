package extractors

import (
	"sort"

	"github.com/miradorstack/mirador-hids/internal/models"
)

// Trace is the time-ordered sequence of a run's exit events. Only returns are
// kept since an event is meaningful once its outcome is known.
type Trace struct {
	events []models.Event
}

// NewTrace selects the exit events of run and orders them by timestamp,
// keeping log order for ties.
func NewTrace(run models.Run) *Trace {
	events := make([]models.Event, 0, len(run.Events))
	for _, ev := range run.Events {
		if ev.IsExit() {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
	return &Trace{events: events}
}

// Len returns the number of retained events.
func (t *Trace) Len() int {
	return len(t.events)
}

// Span returns the first and last event timestamps; ok is false for an empty trace.
func (t *Trace) Span() (first, last int64, ok bool) {
	if len(t.events) == 0 {
		return 0, 0, false
	}
	return t.events[0].Timestamp, t.events[len(t.events)-1].Timestamp, true
}

// Range returns the events inside window, or all events when window is nil.
// The returned slice aliases the trace and must not be modified.
func (t *Trace) Range(window *models.Window) []models.Event {
	if window == nil {
		return t.events
	}
	lo := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Timestamp >= window.Start
	})
	hi := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Timestamp >= window.End
	})
	return t.events[lo:hi]
}

// Transition links two consecutive events of a trace.
type Transition struct {
	Prev      string
	Next      string
	Timestamp int64 // time of Prev
	Gap       int64 // time from Prev to Next
}

// TemporalStream is the ordered transition list derived from a trace.
type TemporalStream []Transition

// Stream returns the transitions between consecutive events inside window.
func (t *Trace) Stream(window *models.Window) TemporalStream {
	events := t.Range(window)
	if len(events) < 2 {
		return nil
	}
	stream := make(TemporalStream, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		stream = append(stream, Transition{
			Prev:      events[i-1].Type,
			Next:      events[i].Type,
			Timestamp: events[i-1].Timestamp,
			Gap:       events[i].Timestamp - events[i-1].Timestamp,
		})
	}
	return stream
}

// Gaps returns the inter-event times of the stream.
func (s TemporalStream) Gaps() []int64 {
	out := make([]int64, len(s))
	for i, tr := range s {
		out[i] = tr.Gap
	}
	return out
}
