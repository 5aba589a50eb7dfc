// Package tracking records run metrics and diagnostic series to sinks.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Recorder receives scalars keyed by name. step orders the points of a
// series; standalone scalars use step 0.
type Recorder interface {
	LogScalar(ctx context.Context, key string, value float64, step int64) error
	Close() error
}

// Metric is the wire form of one recorded scalar.
type Metric struct {
	AnalysisID string    `json:"analysis_id"`
	Key        string    `json:"key"`
	Value      float64   `json:"value"`
	Step       int64     `json:"step"`
	Timestamp  time.Time `json:"timestamp"`
}

func newMetric(analysisID, key string, value float64, step int64) (Metric, error) {
	if key == "" {
		return Metric{}, errors.New("metric key is empty")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Metric{}, fmt.Errorf("metric %s: non-finite value %v", key, value)
	}
	return Metric{
		AnalysisID: analysisID,
		Key:        key,
		Value:      value,
		Step:       step,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) LogScalar(context.Context, string, float64, int64) error { return nil }
func (Nop) Close() error                                            { return nil }

// Multi fans every scalar out to each recorder.
type Multi []Recorder

// LogScalar forwards to every recorder and joins their errors.
func (m Multi) LogScalar(ctx context.Context, key string, value float64, step int64) error {
	var errs []error
	for _, r := range m {
		if err := r.LogScalar(ctx, key, value, step); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every recorder.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Point is one value of a recorded series.
type Point struct {
	Step  int64
	Value float64
}

// Memory keeps scalars in process.
type Memory struct {
	mu     sync.Mutex
	series map[string][]Point
}

// NewMemory returns an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{series: make(map[string][]Point)}
}

func (m *Memory) LogScalar(_ context.Context, key string, value float64, step int64) error {
	if _, err := newMetric("", key, value, step); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[key] = append(m.series[key], Point{Step: step, Value: value})
	return nil
}

func (m *Memory) Close() error { return nil }

// Series returns the points recorded under key in arrival order.
func (m *Memory) Series(key string) []Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Point(nil), m.series[key]...)
}

// Last returns the most recent value of key.
func (m *Memory) Last(key string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	points := m.series[key]
	if len(points) == 0 {
		return 0, false
	}
	return points[len(points)-1].Value, true
}

// Keys returns the number of distinct keys recorded.
func (m *Memory) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.series)
}
