package seqmodel

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/miradorstack/mirador-hids/internal/paths"
)

// FitOptions configures model estimation.
type FitOptions struct {
	Order   int
	Prior   float64
	Unknown UnknownHandling
}

type contextCounts struct {
	total int
	next  map[string]int
}

// layer k holds next-symbol counts keyed by the k preceding symbols.
type layer map[string]*contextCounts

// MultiOrderModel combines Markov layers of order 0..K. The i-th node of a
// path is predicted by layer min(i, K). Immutable after Fit.
type MultiOrderModel struct {
	order      int
	prior      float64
	unknown    UnknownHandling
	vocabulary map[string]struct{}
	layers     []layer
}

// Fit estimates a model of the requested order from training paths.
func Fit(c *paths.Collection, opts FitOptions) (*MultiOrderModel, error) {
	if c == nil || c.Empty() {
		return nil, errors.New("fit: no training paths")
	}
	if opts.Order < 0 {
		return nil, fmt.Errorf("fit: negative order %d", opts.Order)
	}
	if opts.Prior < 0 || math.IsNaN(opts.Prior) {
		return nil, fmt.Errorf("fit: invalid prior %v", opts.Prior)
	}
	switch opts.Unknown {
	case "":
		opts.Unknown = UnknownReject
	case UnknownReject, UnknownReserve:
	default:
		return nil, fmt.Errorf("fit: unknown handling %q", opts.Unknown)
	}

	m := &MultiOrderModel{
		order:      opts.Order,
		prior:      opts.Prior,
		unknown:    opts.Unknown,
		vocabulary: make(map[string]struct{}),
		layers:     make([]layer, opts.Order+1),
	}
	for k := range m.layers {
		m.layers[k] = make(layer)
	}

	c.Each(func(p paths.Path, count int) {
		for i, symbol := range p {
			m.vocabulary[symbol] = struct{}{}
			for k := 0; k <= m.order && k <= i; k++ {
				m.layers[k].observe(paths.Path(p[i-k:i]).Key(), symbol, count)
			}
		}
	})

	return m, nil
}

func (l layer) observe(context, symbol string, count int) {
	cc, ok := l[context]
	if !ok {
		cc = &contextCounts{next: make(map[string]int)}
		l[context] = cc
	}
	cc.total += count
	cc.next[symbol] += count
}

// Order returns the highest layer order.
func (m *MultiOrderModel) Order() int {
	return m.order
}

// Prior returns the additive smoothing constant.
func (m *MultiOrderModel) Prior() float64 {
	return m.prior
}

// Unknown returns the unknown-symbol policy.
func (m *MultiOrderModel) Unknown() UnknownHandling {
	return m.unknown
}

// Vocabulary returns the sorted training symbols.
func (m *MultiOrderModel) Vocabulary() []string {
	out := make([]string, 0, len(m.vocabulary))
	for s := range m.vocabulary {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// LogLikelihood returns the summed natural-log probability of every path
// occurrence. Unknown symbols are reported before any scoring failure.
func (m *MultiOrderModel) LogLikelihood(c *paths.Collection) (float64, error) {
	if err := m.checkVocabulary(c); err != nil {
		return 0, err
	}
	return sumLogProb(c, m.PathLogProb)
}

func sumLogProb(c *paths.Collection, score func(paths.Path) (float64, error)) (float64, error) {
	total := 0.0
	var firstErr error
	c.Each(func(p paths.Path, count int) {
		if firstErr != nil {
			return
		}
		lp, err := score(p)
		if err != nil {
			firstErr = err
			return
		}
		total += float64(count) * lp
	})
	if firstErr != nil {
		return 0, firstErr
	}
	return total, nil
}

func (m *MultiOrderModel) checkVocabulary(c *paths.Collection) error {
	if m.unknown != UnknownReject {
		return nil
	}
	for _, s := range c.Symbols() {
		if _, ok := m.vocabulary[s]; !ok {
			return &UnknownSymbolError{Symbol: s}
		}
	}
	return nil
}

// PathLogProb returns the natural-log probability of a single path.
func (m *MultiOrderModel) PathLogProb(p paths.Path) (float64, error) {
	total := 0.0
	for i, symbol := range p {
		if _, ok := m.vocabulary[symbol]; !ok && m.unknown == UnknownReject {
			return 0, &UnknownSymbolError{Symbol: symbol}
		}
		k := i
		if k > m.order {
			k = m.order
		}
		prob := m.prob(k, paths.Path(p[i-k:i]).Key(), symbol)
		if prob <= 0 {
			return 0, &ScoringError{Path: p.Key(), Err: ErrZeroLikelihood}
		}
		total += math.Log(prob)
	}
	return total, nil
}

func (m *MultiOrderModel) prob(k int, context, symbol string) float64 {
	size := float64(len(m.vocabulary))
	if m.unknown == UnknownReserve {
		size++
	}
	var seen, total float64
	if cc, ok := m.layers[k][context]; ok {
		seen = float64(cc.next[symbol])
		total = float64(cc.total)
	}
	denom := total + m.prior*size
	if denom == 0 {
		return 0
	}
	return (seen + m.prior) / denom
}

// degreesOfFreedom counts the free parameters of the observed contexts.
func (m *MultiOrderModel) degreesOfFreedom() int {
	free := len(m.vocabulary) - 1
	if free < 0 {
		free = 0
	}
	dof := 0
	for _, l := range m.layers {
		dof += len(l) * free
	}
	return dof
}

// EstimateOrder fits orders 0..maxOrder and returns the one with the lowest
// Akaike information criterion on the training paths. Ties keep the lower order.
func EstimateOrder(c *paths.Collection, maxOrder int, prior float64) (int, error) {
	if maxOrder < 0 {
		return 0, fmt.Errorf("estimate order: negative max order %d", maxOrder)
	}
	best, bestAIC := 0, math.Inf(1)
	for k := 0; k <= maxOrder; k++ {
		m, err := Fit(c, FitOptions{Order: k, Prior: prior, Unknown: UnknownReject})
		if err != nil {
			return 0, fmt.Errorf("estimate order %d: %w", k, err)
		}
		logL, err := m.LogLikelihood(c)
		if err != nil {
			return 0, fmt.Errorf("estimate order %d: %w", k, err)
		}
		aic := 2*float64(m.degreesOfFreedom()) - 2*logL
		if aic < bestAIC {
			best, bestAIC = k, aic
		}
	}
	return best, nil
}
