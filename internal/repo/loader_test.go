package repo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

func TestRunLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.txt",
		"1 10:00:00.0 0 0 p 1 > read",
		"2 10:00:00.1 0 0 p 1 < read",
	)
	entry := models.RunEntry{ScenarioName: "run", Path: path}

	run, err := NewRunLoader(utils.DiscardLogger(), nil).Load(entry)
	require.NoError(t, err)
	assert.Equal(t, entry, run.RunEntry)
	assert.Len(t, run.Events, 2)
}

func TestRunLoaderVocabulary(t *testing.T) {
	dir := t.TempDir()
	vocabPath := writeFile(t, dir, "syscalls.txt", "read", "", "  write  ")
	vocab, err := LoadVocabulary(vocabPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"read": {}, "write": {}}, vocab)

	path := writeFile(t, dir, "run.txt",
		"1 10:00:00.0 0 0 p 1 < read",
		"2 10:00:00.1 0 0 p 1 < mmap",
	)

	_, err = NewRunLoader(utils.DiscardLogger(), vocab).Load(models.RunEntry{ScenarioName: "run", Path: path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrInput))
	assert.Contains(t, err.Error(), "mmap")
}
