package seqmodel

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/miradorstack/mirador-hids/internal/paths"
)

type pathScore struct {
	logProb float64
	err     error
}

// CachedModel memoises per-path log probabilities. Overlapping windows keep
// producing the same paths, so most lookups hit.
type CachedModel struct {
	inner *MultiOrderModel
	cache *lru.Cache[string, pathScore]
}

// NewCachedModel wraps m with an LRU of the given size.
func NewCachedModel(m *MultiOrderModel, size int) (*CachedModel, error) {
	cache, err := lru.New[string, pathScore](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create path cache: %w", err)
	}
	return &CachedModel{inner: m, cache: cache}, nil
}

// Order returns the wrapped model order.
func (c *CachedModel) Order() int {
	return c.inner.Order()
}

// LogLikelihood matches MultiOrderModel.LogLikelihood.
func (c *CachedModel) LogLikelihood(col *paths.Collection) (float64, error) {
	if err := c.inner.checkVocabulary(col); err != nil {
		return 0, err
	}
	return sumLogProb(col, c.pathLogProb)
}

func (c *CachedModel) pathLogProb(p paths.Path) (float64, error) {
	key := p.Key()
	if hit, ok := c.cache.Get(key); ok {
		return hit.logProb, hit.err
	}
	lp, err := c.inner.PathLogProb(p)
	c.cache.Add(key, pathScore{logProb: lp, err: err})
	return lp, err
}

// Len reports the number of cached paths.
func (c *CachedModel) Len() int {
	return c.cache.Len()
}
