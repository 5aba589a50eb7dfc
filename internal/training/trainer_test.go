package training

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-hids/internal/engine"
	"github.com/miradorstack/mirador-hids/internal/extractors"
	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/paths"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

type mapLoader map[string]models.Run

func (m mapLoader) Load(entry models.RunEntry) (models.Run, error) {
	run, ok := m[entry.Path]
	if !ok {
		return models.Run{}, errors.New("missing run " + entry.Path)
	}
	return run, nil
}

func alternatingRun(name string, n int) models.Run {
	events := make([]models.Event, 0, n)
	for i := 0; i < n; i++ {
		typ := "open"
		if i%2 == 1 {
			typ = "close"
		}
		events = append(events, models.Event{Seq: int64(i), Timestamp: int64(i * 10), ThreadID: "1", Direction: models.DirectionExit, Type: typ})
	}
	return models.Run{RunEntry: models.RunEntry{ScenarioName: name, Path: name + ".txt"}, Events: events}
}

func fixture(n int) (mapLoader, []models.RunEntry) {
	loader := mapLoader{}
	var entries []models.RunEntry
	for i := 0; i < n; i++ {
		run := alternatingRun(fmt.Sprintf("train-%d", i), 6)
		loader[run.Path] = run
		entries = append(entries, run.RunEntry)
	}
	return loader, entries
}

func TestMineMergesRuns(t *testing.T) {
	loader, entries := fixture(4)
	trainer := NewTrainer(utils.DiscardLogger(), engine.NewPool(nil, 3), loader, extractors.NewThreadExtractor())

	mined, err := trainer.Mine(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 1, mined.Distinct())
	assert.Equal(t, 4, mined.Count(paths.Path{"open", "close", "open", "close", "open", "close"}))
}

func TestTrainEstimatesOrder(t *testing.T) {
	loader, entries := fixture(5)
	trainer := NewTrainer(nil, nil, loader, extractors.NewThreadExtractor())

	model, err := trainer.Train(context.Background(), entries, Options{Order: -1, MaxOrder: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, model.Order())
	assert.Equal(t, []string{"close", "open"}, model.Vocabulary())

	fixed, err := trainer.Train(context.Background(), entries, Options{Order: 2, Prior: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, fixed.Order())
}

func TestTrainFailures(t *testing.T) {
	loader, entries := fixture(2)
	trainer := NewTrainer(nil, nil, loader, extractors.NewThreadExtractor())

	_, err := trainer.Train(context.Background(), nil, Options{})
	require.Error(t, err)

	_, err = trainer.Train(context.Background(), append(entries, models.RunEntry{Path: "nope"}), Options{})
	require.Error(t, err)

	short := mapLoader{"s.txt": alternatingRun("s", 1)}
	_, err = NewTrainer(nil, nil, short, extractors.NewThreadExtractor()).
		Train(context.Background(), []models.RunEntry{{Path: "s.txt"}}, Options{})
	require.Error(t, err)
}

func TestGaps(t *testing.T) {
	loader, entries := fixture(2)
	trainer := NewTrainer(nil, engine.NewPool(nil, 2), loader, extractors.NewThreadExtractor())

	gaps, err := trainer.Gaps(context.Background(), entries)
	require.NoError(t, err)
	sort.Float64s(gaps)
	assert.Len(t, gaps, 10)
	assert.Equal(t, 10.0, gaps[0])
}
