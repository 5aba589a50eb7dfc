package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-hids/internal/utils"
)

func writeDataset(t *testing.T, dir string) string {
	t.Helper()
	manifest := []string{"scenario_name, is_executing_exploit, warmup_time"}
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("run_%d", i)
		exploit := i >= 4
		var lines []string
		seq := 0
		for j := 0; j < 300; j++ {
			typ := "open"
			if j%2 == 1 {
				typ = "close"
			}
			ts := int64(j * 10000)
			lines = append(lines, fmt.Sprintf("%d 10:00:%02d.%06d000 0 33 app 100 < %s fd=3", seq, ts/1_000_000, ts%1_000_000, typ))
			seq++
		}
		if exploit {
			for j := 0; j < 4; j++ {
				lines = append(lines, fmt.Sprintf("%d 10:00:01.%06d000 0 33 app 200 < execve", seq, 500000+j*1000))
				seq++
			}
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(strings.Join(lines, "\n")+"\n"), 0o644))
		manifest = append(manifest, fmt.Sprintf("%s, %t, 0", name, exploit))
	}
	path := filepath.Join(dir, "runs.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(manifest, "\n")+"\n"), 0o644))
	return path
}

func TestStartMetricsServerPortInUse(t *testing.T) {
	held, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer held.Close()

	assert.Nil(t, startMetricsServer(utils.DiscardLogger(), held.Addr().String()))
	assert.Nil(t, startMetricsServer(utils.DiscardLogger(), ""))

	srv := startMetricsServer(utils.DiscardLogger(), "127.0.0.1:0")
	require.NotNil(t, srv)
	shutdownMetricsServer(utils.DiscardLogger(), srv)
}

func TestRunCompletesWhenMetricsPortIsTaken(t *testing.T) {
	t.Setenv("MIRADOR_HIDS_CONFIG", "")
	held, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer held.Close()

	dir := t.TempDir()
	manifest := writeDataset(t, dir)
	cfgPath := filepath.Join(dir, "hids.yaml")
	cfg := fmt.Sprintf(`logging:
  level: error
data:
  manifest: %s
split:
  seed: 3
  trainExamples: 2
  calibrationExamples: 1
model:
  path: %s
  order: 1
  unknown: reject
  cacheSize: 16
scan:
  windowSize: 1000000
  stepSize: 100000
  workers: 2
threshold:
  mode: fixed
  value: -50
output:
  dir: %s
server:
  address: ""
  metricsAddress: %s
`, manifest, filepath.Join(dir, "hids.model.zst"), filepath.Join(dir, "results"), held.Addr().String())
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	require.NoError(t, run("train", cfgPath))
	require.NoError(t, run("analyze", cfgPath))
	require.NoError(t, run("stats", cfgPath))

	entries, err := os.ReadDir(filepath.Join(dir, "results"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
