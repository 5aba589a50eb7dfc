package repo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

const (
	columnScenario = "scenario_name"
	columnExploit  = "is_executing_exploit"
)

// LoadManifest reads the runs table and resolves every scenario to
// <manifest_dir>/<scenario_name>.txt.
func LoadManifest(path string) ([]models.RunEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.NewInputError("repo.LoadManifest", "open "+path, err)
	}
	defer f.Close()

	entries, err := readManifest(f, filepath.Dir(path))
	if err != nil {
		return nil, utils.NewInputError("repo.LoadManifest", path, err)
	}
	return entries, nil
}

func readManifest(r io.Reader, dir string) ([]models.RunEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty manifest")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	scenarioIdx, exploitIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case columnScenario:
			scenarioIdx = i
		case columnExploit:
			exploitIdx = i
		}
	}
	if scenarioIdx < 0 || exploitIdx < 0 {
		return nil, fmt.Errorf("manifest needs columns %q and %q", columnScenario, columnExploit)
	}

	var entries []models.RunEntry
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if len(record) <= scenarioIdx || len(record) <= exploitIdx {
			return nil, fmt.Errorf("row %d: missing columns", row)
		}

		scenario := strings.TrimSpace(record[scenarioIdx])
		if scenario == "" {
			return nil, fmt.Errorf("row %d: empty %s", row, columnScenario)
		}
		label, err := strconv.ParseBool(strings.TrimSpace(record[exploitIdx]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", row, columnExploit, err)
		}

		entries = append(entries, models.RunEntry{
			ScenarioName: scenario,
			Label:        label,
			Path:         filepath.Join(dir, scenario+".txt"),
		})
	}

	return entries, nil
}
