package repo

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

// RunLoader turns manifest entries into parsed runs.
type RunLoader struct {
	logger     *slog.Logger
	vocabulary map[string]struct{}
}

// NewRunLoader constructs a loader. A nil vocabulary accepts every event type.
func NewRunLoader(logger *slog.Logger, vocabulary map[string]struct{}) *RunLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunLoader{logger: logger, vocabulary: vocabulary}
}

// Load reads and parses the run's event log.
func (l *RunLoader) Load(entry models.RunEntry) (models.Run, error) {
	events, err := ReadEventLog(entry.Path)
	if err != nil {
		l.logger.Error("run rejected", slog.String("scenario", entry.ScenarioName), slog.Any("error", err))
		return models.Run{}, err
	}

	if l.vocabulary != nil {
		for _, ev := range events {
			if _, ok := l.vocabulary[ev.Type]; !ok {
				err := utils.NewInputError("repo.RunLoader", entry.Path, fmt.Errorf("event type %q not in vocabulary", ev.Type))
				l.logger.Error("run rejected", slog.String("scenario", entry.ScenarioName), slog.Any("error", err))
				return models.Run{}, err
			}
		}
	}

	l.logger.Debug("run loaded", slog.String("scenario", entry.ScenarioName), slog.Int("events", len(events)))
	return models.Run{RunEntry: entry, Events: events}, nil
}

// LoadVocabulary reads one event type per line. Blank lines are ignored.
func LoadVocabulary(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.NewInputError("repo.LoadVocabulary", "open "+path, err)
	}
	defer f.Close()

	vocab := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			vocab[name] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, utils.NewInputError("repo.LoadVocabulary", "read "+path, err)
	}
	return vocab, nil
}
