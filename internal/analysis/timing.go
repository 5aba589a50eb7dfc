package analysis

import (
	"math"

	"github.com/miradorstack/mirador-hids/internal/extractors"
	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

// TimingStats summarises inter-event gaps in microseconds. Moments are
// population moments; Kurtosis is excess kurtosis.
type TimingStats struct {
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
	P50      float64 `json:"p50"`
	P90      float64 `json:"p90"`
	P99      float64 `json:"p99"`
}

// RunGaps returns the gaps between consecutive exit events of run.
func RunGaps(run models.Run) []float64 {
	gaps := extractors.NewTrace(run).Stream(nil).Gaps()
	out := make([]float64, len(gaps))
	for i, g := range gaps {
		out[i] = float64(g)
	}
	return out
}

// ComputeTimingStats describes gaps. An empty input yields a zero Count and
// NaN elsewhere.
func ComputeTimingStats(gaps []float64) TimingStats {
	nan := math.NaN()
	stats := TimingStats{Count: len(gaps), Min: nan, Max: nan, Mean: nan, Variance: nan, Skewness: nan, Kurtosis: nan, P50: nan, P90: nan, P99: nan}
	if len(gaps) == 0 {
		return stats
	}

	n := float64(len(gaps))
	stats.Min, stats.Max = gaps[0], gaps[0]
	sum := 0.0
	for _, g := range gaps {
		sum += g
		stats.Min = math.Min(stats.Min, g)
		stats.Max = math.Max(stats.Max, g)
	}
	stats.Mean = sum / n

	var m2, m3, m4 float64
	for _, g := range gaps {
		d := g - stats.Mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	m2, m3, m4 = m2/n, m3/n, m4/n
	stats.Variance = m2
	if m2 > 0 {
		stats.Skewness = m3 / math.Pow(m2, 1.5)
		stats.Kurtosis = m4/(m2*m2) - 3
	}

	stats.P50 = utils.Quantile(gaps, 0.5)
	stats.P90 = utils.Quantile(gaps, 0.9)
	stats.P99 = utils.Quantile(gaps, 0.99)
	return stats
}
