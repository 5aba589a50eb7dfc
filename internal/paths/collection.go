// Package paths holds counted multisets of event-type sequences.
package paths

import (
	"sort"
	"strings"
)

// keySeparator cannot occur inside a whitespace-delimited event type.
const keySeparator = " "

// Path is an ordered sequence of event types. Its length is the number of
// transitions, one less than the number of nodes.
type Path []string

// Length returns the number of transitions in the path.
func (p Path) Length() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Key returns the canonical map key for the path.
func (p Path) Key() string {
	return strings.Join(p, keySeparator)
}

// FromKey rebuilds a path from its canonical key.
func FromKey(key string) Path {
	if key == "" {
		return nil
	}
	return strings.Split(key, keySeparator)
}

type entry struct {
	path  Path
	count int
}

// Collection is a multiset of paths indexed by length. Repeated paths
// accumulate a count instead of being stored twice. Not safe for concurrent
// mutation.
type Collection struct {
	byLength map[int]map[string]*entry
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{byLength: make(map[int]map[string]*entry)}
}

// Add records count occurrences of path. Empty paths and non-positive counts are ignored.
func (c *Collection) Add(path Path, count int) {
	if len(path) == 0 || count <= 0 {
		return
	}
	k := path.Length()
	bucket, ok := c.byLength[k]
	if !ok {
		bucket = make(map[string]*entry)
		c.byLength[k] = bucket
	}
	key := path.Key()
	if e, ok := bucket[key]; ok {
		e.count += count
		return
	}
	bucket[key] = &entry{path: append(Path(nil), path...), count: count}
}

// Merge adds every path of other into c, summing counts.
func (c *Collection) Merge(other *Collection) {
	if other == nil {
		return
	}
	other.Each(func(p Path, count int) {
		c.Add(p, count)
	})
}

// Count returns the number of occurrences of path.
func (c *Collection) Count(path Path) int {
	bucket, ok := c.byLength[path.Length()]
	if !ok {
		return 0
	}
	if e, ok := bucket[path.Key()]; ok {
		return e.count
	}
	return 0
}

// Empty reports whether the collection holds no path.
func (c *Collection) Empty() bool {
	return len(c.byLength) == 0
}

// Distinct returns the number of distinct paths.
func (c *Collection) Distinct() int {
	n := 0
	for _, bucket := range c.byLength {
		n += len(bucket)
	}
	return n
}

// Observations returns the total number of path occurrences.
func (c *Collection) Observations() int {
	n := 0
	for _, bucket := range c.byLength {
		for _, e := range bucket {
			n += e.count
		}
	}
	return n
}

// LengthCounts returns the number of occurrences per path length.
func (c *Collection) LengthCounts() map[int]int {
	out := make(map[int]int, len(c.byLength))
	for k, bucket := range c.byLength {
		for _, e := range bucket {
			out[k] += e.count
		}
	}
	return out
}

// TotalTransitions returns the node visits of the collection: every path of
// length k contributes k+1 per occurrence.
func (c *Collection) TotalTransitions() int {
	total := 0
	for k, n := range c.LengthCounts() {
		total += n * (k + 1)
	}
	return total
}

// Symbols returns the sorted set of event types appearing in any path.
func (c *Collection) Symbols() []string {
	set := make(map[string]struct{})
	for _, bucket := range c.byLength {
		for _, e := range bucket {
			for _, s := range e.path {
				set[s] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Each visits every distinct path ordered by length, then key. The path passed
// to fn must not be modified.
func (c *Collection) Each(fn func(p Path, count int)) {
	lengths := make([]int, 0, len(c.byLength))
	for k := range c.byLength {
		lengths = append(lengths, k)
	}
	sort.Ints(lengths)

	for _, k := range lengths {
		bucket := c.byLength[k]
		keys := make([]string, 0, len(bucket))
		for key := range bucket {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			e := bucket[key]
			fn(e.path, e.count)
		}
	}
}
