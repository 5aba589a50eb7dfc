package seqmodel

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-hids/internal/paths"
)

func collection(entries map[string]int) *paths.Collection {
	c := paths.NewCollection()
	for key, n := range entries {
		c.Add(paths.FromKey(key), n)
	}
	return c
}

func trainingSet() *paths.Collection {
	return collection(map[string]int{"a b": 2, "a c": 1})
}

func TestFitScoresKnownPath(t *testing.T) {
	m, err := Fit(trainingSet(), FitOptions{Order: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Order())
	assert.Equal(t, UnknownReject, m.Unknown())
	assert.Equal(t, []string{"a", "b", "c"}, m.Vocabulary())

	got, err := m.LogLikelihood(collection(map[string]int{"a b": 1}))
	require.NoError(t, err)
	assert.InDelta(t, math.Log(0.5*2.0/3.0), got, 1e-12)

	got, err = m.LogLikelihood(collection(map[string]int{"a b": 2, "a": 1}))
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Log(1.0/3.0)+math.Log(0.5), got, 1e-12)
}

func TestFitRejectsBadOptions(t *testing.T) {
	_, err := Fit(paths.NewCollection(), FitOptions{})
	require.Error(t, err)
	_, err = Fit(trainingSet(), FitOptions{Order: -1})
	require.Error(t, err)
	_, err = Fit(trainingSet(), FitOptions{Prior: -0.5})
	require.Error(t, err)
	_, err = Fit(trainingSet(), FitOptions{Unknown: "ignore"})
	require.Error(t, err)
}

func TestUnknownSymbolRejected(t *testing.T) {
	m, err := Fit(trainingSet(), FitOptions{Order: 1})
	require.NoError(t, err)

	_, err = m.LogLikelihood(collection(map[string]int{"a x": 1, "b a": 1}))
	var unknown *UnknownSymbolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "x", unknown.Symbol)
}

func TestUnseenContextHasZeroLikelihood(t *testing.T) {
	m, err := Fit(trainingSet(), FitOptions{Order: 1})
	require.NoError(t, err)

	_, err = m.LogLikelihood(collection(map[string]int{"b a": 1}))
	var scoring *ScoringError
	require.ErrorAs(t, err, &scoring)
	assert.True(t, errors.Is(err, ErrZeroLikelihood))
	assert.Equal(t, "b a", scoring.Path)
}

func TestReserveGivesUnknownPriorMass(t *testing.T) {
	m, err := Fit(trainingSet(), FitOptions{Order: 1, Prior: 1, Unknown: UnknownReserve})
	require.NoError(t, err)

	got, err := m.LogLikelihood(collection(map[string]int{"a x": 1}))
	require.NoError(t, err)
	assert.InDelta(t, math.Log(4.0/10.0)+math.Log(1.0/7.0), got, 1e-12)
}

func TestHigherOrderUsesLongestContext(t *testing.T) {
	train := collection(map[string]int{"a b c": 3, "d b e": 1})
	m, err := Fit(train, FitOptions{Order: 2})
	require.NoError(t, err)

	got, err := m.PathLogProb(paths.Path{"a", "b", "c"})
	require.NoError(t, err)
	// P0(a)=3/12, P1(b|a)=1, P2(c|a b)=1
	assert.InDelta(t, math.Log(0.25), got, 1e-12)

	_, err = m.PathLogProb(paths.Path{"d", "b", "c"})
	assert.ErrorIs(t, err, ErrZeroLikelihood)
}

func TestEstimateOrderPrefersDependentModel(t *testing.T) {
	deterministic := collection(map[string]int{"a b": 50, "c d": 50})
	order, err := EstimateOrder(deterministic, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, order)

	independent := collection(map[string]int{"a b": 25, "a a": 25, "b a": 25, "b b": 25})
	order, err = EstimateOrder(independent, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, order)

	_, err = EstimateOrder(deterministic, -1, 0)
	require.Error(t, err)
}

func TestArtifactRoundTrip(t *testing.T) {
	m, err := Fit(trainingSet(), FitOptions{Order: 1, Prior: 0.5, Unknown: UnknownReserve})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, m))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Order(), loaded.Order())
	assert.Equal(t, m.Prior(), loaded.Prior())
	assert.Equal(t, m.Unknown(), loaded.Unknown())
	assert.Equal(t, m.Vocabulary(), loaded.Vocabulary())

	probe := collection(map[string]int{"a b": 3, "c x": 1, "b": 2})
	want, err := m.LogLikelihood(probe)
	require.NoError(t, err)
	got, err := loaded.LogLikelihood(probe)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestArtifactFiles(t *testing.T) {
	m, err := Fit(trainingSet(), FitOptions{Order: 1})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.zst")
	require.NoError(t, SaveFile(path, m))
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Order())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.zst"))
	require.Error(t, err)
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not a model")))
	require.Error(t, err)
}

func TestCachedModelMatchesInner(t *testing.T) {
	m, err := Fit(trainingSet(), FitOptions{Order: 1})
	require.NoError(t, err)
	cached, err := NewCachedModel(m, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Order())

	probe := collection(map[string]int{"a b": 2, "a c": 1, "a": 4})
	want, err := m.LogLikelihood(probe)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := cached.LogLikelihood(probe)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-12)
	}
	assert.Equal(t, 3, cached.Len())

	_, err = cached.LogLikelihood(collection(map[string]int{"c a": 1}))
	assert.ErrorIs(t, err, ErrZeroLikelihood)
	_, err = cached.LogLikelihood(collection(map[string]int{"c a": 1}))
	assert.ErrorIs(t, err, ErrZeroLikelihood)

	_, err = cached.LogLikelihood(collection(map[string]int{"q": 1}))
	var unknown *UnknownSymbolError
	assert.ErrorAs(t, err, &unknown)
}

func TestNewCachedModelRejectsZeroSize(t *testing.T) {
	m, err := Fit(trainingSet(), FitOptions{Order: 0})
	require.NoError(t, err)
	_, err = NewCachedModel(m, 0)
	require.Error(t, err)
}
