// gen-dataset writes a small synthetic dataset for local runs of hids: a
// runs.csv manifest plus one event log per scenario.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	benignCycle  = []string{"epoll_wait", "accept", "read", "open", "fstat", "mmap", "write", "close"}
	exploitBurst = []string{"execve", "socket", "connect", "dup2", "dup2", "execve"}
)

func main() {
	out := flag.String("out", "localdev-data", "Output directory")
	normal := flag.Int("normal", 40, "Benign runs")
	attack := flag.Int("attack", 10, "Exploit runs")
	seconds := flag.Int("seconds", 30, "Run length in seconds")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := generate(*out, *normal, *attack, *seconds, *seed); err != nil {
		logger.Error("dataset generation failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("dataset written", slog.String("dir", *out), slog.Int("normal", *normal), slog.Int("attack", *attack))
}

func generate(dir string, normal, attack, seconds int, seed int64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	manifest, err := os.Create(filepath.Join(dir, "runs.csv"))
	if err != nil {
		return err
	}
	defer manifest.Close()
	fmt.Fprintln(manifest, "scenario_name,is_executing_exploit,warmup_time,recording_time,exploit_start_time")

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < normal+attack; i++ {
		exploit := i >= normal
		name := fmt.Sprintf("normal_%03d", i)
		start := -1
		if exploit {
			name = fmt.Sprintf("attack_%03d", i-normal)
			start = seconds/3 + rng.Intn(seconds/3+1)
		}
		if err := writeRun(filepath.Join(dir, name+".txt"), rng, seconds, start); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		fmt.Fprintf(manifest, "%s,%t,0,%d,%d\n", name, exploit, seconds, start)
	}
	return nil
}

// writeRun emits request cycles on a few worker threads; exploitAt >= 0
// injects one burst on a fresh thread at that second.
func writeRun(path string, rng *rand.Rand, seconds, exploitAt int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	seq := 0
	emit := func(ts int64, thread int, typ string) {
		clock := 10*3600*1_000_000 + ts
		h, m, s, us := clock/3_600_000_000, clock/60_000_000%60, clock/1_000_000%60, clock%1_000_000
		for _, dir := range []string{">", "<"} {
			fmt.Fprintf(w, "%d %02d:%02d:%02d.%06d000 %d 33 nginx %d %s %s fd=%d\n", seq, h, m, s, us, thread%4, thread, dir, typ, rng.Intn(64))
			seq++
		}
	}

	end := int64(seconds) * 1_000_000
	for ts := int64(0); ts < end; ts += 20_000 + rng.Int63n(60_000) {
		thread := 1000 + rng.Intn(4)
		for i, typ := range benignCycle {
			emit(ts+int64(i*200), thread, typ)
		}
		if exploitAt >= 0 && ts >= int64(exploitAt)*1_000_000 {
			for i, typ := range exploitBurst {
				emit(ts+int64(i*300), 2000, typ)
			}
			exploitAt = -1
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
