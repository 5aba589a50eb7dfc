package extractors

import (
	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/paths"
)

// ThreadExtractor turns every thread's calls into one path.
type ThreadExtractor struct{}

// NewThreadExtractor constructs a thread-grouping extractor.
func NewThreadExtractor() *ThreadExtractor {
	return &ThreadExtractor{}
}

// Extract groups events by thread in timestamp order. Threads with a single
// event carry no transition and are dropped.
func (e *ThreadExtractor) Extract(trace *Trace, window *models.Window) *paths.Collection {
	collection := paths.NewCollection()

	var order []string
	groups := make(map[string]paths.Path)
	for _, ev := range trace.Range(window) {
		if _, ok := groups[ev.ThreadID]; !ok {
			order = append(order, ev.ThreadID)
		}
		groups[ev.ThreadID] = append(groups[ev.ThreadID], ev.Type)
	}

	for _, thread := range order {
		if p := groups[thread]; len(p) > 1 {
			collection.Add(p, 1)
		}
	}
	return collection
}
