package repo

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/miradorstack/mirador-hids/internal/models"
)

// SplitConfig controls how manifest rows are divided between training,
// threshold calibration and evaluation.
type SplitConfig struct {
	Seed                int64
	TrainExamples       int
	CalibrationExamples int
	NormalSamples       int // cap on benign evaluation runs, 0 keeps all
	AttackSamples       int // cap on exploit evaluation runs, 0 keeps all
}

// Split is the deterministic partition of a manifest.
type Split struct {
	Train       []models.RunEntry
	Calibration []models.RunEntry
	Evaluation  []models.RunEntry
}

// SplitRuns shuffles benign runs with the configured seed; the first
// TrainExamples go to training and the next CalibrationExamples are held out
// for threshold calibration. Everything else is evaluated, in manifest order.
func SplitRuns(entries []models.RunEntry, cfg SplitConfig) (Split, error) {
	var benign, exploit []int
	for i, e := range entries {
		if e.Label {
			exploit = append(exploit, i)
		} else {
			benign = append(benign, i)
		}
	}

	need := cfg.TrainExamples + cfg.CalibrationExamples
	if need > len(benign) {
		return Split{}, fmt.Errorf("split needs %d benign runs, manifest has %d", need, len(benign))
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	rng.Shuffle(len(benign), func(i, j int) { benign[i], benign[j] = benign[j], benign[i] })
	rng.Shuffle(len(exploit), func(i, j int) { exploit[i], exploit[j] = exploit[j], exploit[i] })

	train := benign[:cfg.TrainExamples]
	calibration := benign[cfg.TrainExamples:need]
	normal := capIndices(benign[need:], cfg.NormalSamples)
	attack := capIndices(exploit, cfg.AttackSamples)

	return Split{
		Train:       pick(entries, train, false),
		Calibration: pick(entries, calibration, false),
		Evaluation:  pick(entries, append(append([]int(nil), normal...), attack...), true),
	}, nil
}

func capIndices(idx []int, limit int) []int {
	if limit > 0 && len(idx) > limit {
		return idx[:limit]
	}
	return idx
}

func pick(entries []models.RunEntry, idx []int, manifestOrder bool) []models.RunEntry {
	if manifestOrder {
		idx = append([]int(nil), idx...)
		sort.Ints(idx)
	}
	out := make([]models.RunEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, entries[i])
	}
	return out
}
