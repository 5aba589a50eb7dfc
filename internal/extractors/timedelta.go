package extractors

import (
	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/paths"
)

// TimeDeltaExtractor chains consecutive events into one causal burst while the
// gap between them stays within Delta microseconds.
type TimeDeltaExtractor struct {
	Delta int64
}

// NewTimeDeltaExtractor constructs a time-delta chaining extractor.
func NewTimeDeltaExtractor(delta int64) *TimeDeltaExtractor {
	return &TimeDeltaExtractor{Delta: delta}
}

// Extract walks the temporal stream and starts a new path at every gap larger
// than Delta. Bursts of a single event are dropped.
func (e *TimeDeltaExtractor) Extract(trace *Trace, window *models.Window) *paths.Collection {
	collection := paths.NewCollection()

	stream := trace.Stream(window)
	if len(stream) == 0 {
		return collection
	}

	current := paths.Path{stream[0].Prev}
	for _, tr := range stream {
		if tr.Gap <= e.Delta {
			current = append(current, tr.Next)
			continue
		}
		if len(current) > 1 {
			collection.Add(current, 1)
		}
		current = paths.Path{tr.Next}
	}
	if len(current) > 1 {
		collection.Add(current, 1)
	}
	return collection
}
