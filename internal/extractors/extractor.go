// Package extractors converts a run's events into counted execution paths.
package extractors

import (
	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/paths"
)

// Extractor builds the path collection of a trace, optionally restricted to a window.
type Extractor interface {
	Extract(trace *Trace, window *models.Window) *paths.Collection
}

// New selects thread grouping when timeDelta is zero and time-delta chaining otherwise.
func New(timeDelta int64) Extractor {
	if timeDelta <= 0 {
		return NewThreadExtractor()
	}
	return NewTimeDeltaExtractor(timeDelta)
}
