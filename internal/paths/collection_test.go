package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalTransitions(t *testing.T) {
	c := NewCollection()
	c.Add(Path{"open", "read", "close"}, 3)
	c.Add(Path{"futex"}, 5)

	assert.Equal(t, 3*3+5*1, c.TotalTransitions())
	assert.Equal(t, map[int]int{2: 3, 0: 5}, c.LengthCounts())
	assert.Equal(t, 8, c.Observations())
	assert.Equal(t, 2, c.Distinct())
}

func TestAddAccumulates(t *testing.T) {
	c := NewCollection()
	c.Add(Path{"a", "b"}, 1)
	c.Add(Path{"a", "b"}, 2)
	c.Add(nil, 4)
	c.Add(Path{"a"}, 0)

	assert.Equal(t, 3, c.Count(Path{"a", "b"}))
	assert.Equal(t, 0, c.Count(Path{"a"}))
	assert.Equal(t, 1, c.Distinct())
}

func TestAddCopiesPath(t *testing.T) {
	c := NewCollection()
	p := Path{"a", "b"}
	c.Add(p, 1)
	p[0] = "z"

	assert.Equal(t, 1, c.Count(Path{"a", "b"}))
}

func TestMerge(t *testing.T) {
	left := NewCollection()
	left.Add(Path{"a", "b"}, 1)
	left.Add(Path{"c", "d", "e"}, 2)

	right := NewCollection()
	right.Add(Path{"a", "b"}, 4)
	right.Add(Path{"x", "y"}, 1)

	left.Merge(right)
	left.Merge(nil)

	assert.Equal(t, 5, left.Count(Path{"a", "b"}))
	assert.Equal(t, 2, left.Count(Path{"c", "d", "e"}))
	assert.Equal(t, 1, left.Count(Path{"x", "y"}))
	assert.Equal(t, 1, right.Count(Path{"x", "y"}), "merge leaves the source untouched")
}

func TestEachIsOrdered(t *testing.T) {
	c := NewCollection()
	c.Add(Path{"b", "c", "d"}, 1)
	c.Add(Path{"z", "a"}, 1)
	c.Add(Path{"a", "z"}, 1)

	var keys []string
	c.Each(func(p Path, _ int) { keys = append(keys, p.Key()) })
	assert.Equal(t, []string{"a z", "z a", "b c d"}, keys)
}

func TestSymbolsAndKeys(t *testing.T) {
	c := NewCollection()
	assert.True(t, c.Empty())
	c.Add(Path{"read", "write"}, 1)
	c.Add(Path{"write", "mmap"}, 1)

	assert.False(t, c.Empty())
	assert.Equal(t, []string{"mmap", "read", "write"}, c.Symbols())
	assert.Equal(t, Path{"read", "write"}, FromKey(Path{"read", "write"}.Key()))
	assert.Nil(t, FromKey(""))
	assert.Equal(t, 0, Path(nil).Length())
}
