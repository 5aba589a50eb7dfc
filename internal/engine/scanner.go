package engine

import (
	"fmt"

	"github.com/miradorstack/mirador-hids/internal/extractors"
	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/paths"
)

// DefaultStepSize is the window advance in microseconds.
const DefaultStepSize int64 = 100000

// Frame is one window of a run with its restricted path collection.
type Frame struct {
	Window models.Window
	Events int
	Paths  *paths.Collection
}

// Scanner walks fixed-size windows over a trace. A scanner is single use and
// not safe for concurrent use.
type Scanner struct {
	trace      *extractors.Trace
	extractor  extractors.Extractor
	windowSize int64
	stepSize   int64

	cursor int64
	last   int64
	done   bool
	frame  Frame
}

// NewScanner positions a cursor at the first event of trace.
func NewScanner(trace *extractors.Trace, extractor extractors.Extractor, windowSize, stepSize int64) (*Scanner, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if stepSize <= 0 {
		return nil, fmt.Errorf("step size must be positive, got %d", stepSize)
	}
	if extractor == nil {
		return nil, fmt.Errorf("scanner requires an extractor")
	}

	s := &Scanner{
		trace:      trace,
		extractor:  extractor,
		windowSize: windowSize,
		stepSize:   stepSize,
	}
	first, last, ok := trace.Span()
	s.cursor, s.last, s.done = first, last, !ok
	return s, nil
}

// Next advances to the next window. It returns false once the window would
// reach past the last event.
func (s *Scanner) Next() bool {
	if s.done || s.cursor+s.windowSize > s.last {
		s.done = true
		return false
	}
	window := models.Window{Start: s.cursor, End: s.cursor + s.windowSize}
	s.frame = Frame{
		Window: window,
		Events: len(s.trace.Range(&window)),
		Paths:  s.extractor.Extract(s.trace, &window),
	}
	s.cursor += s.stepSize
	return true
}

// Frame returns the window produced by the last successful Next.
func (s *Scanner) Frame() Frame {
	return s.frame
}
