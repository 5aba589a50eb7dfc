package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels runs scanned to completion.
	OutcomeSuccess = "success"
	// OutcomeError labels runs that failed to load or scan.
	OutcomeError = "error"
)

var (
	windowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_hids",
			Name:      "windows_total",
			Help:      "Total number of scanned windows, partitioned by scoring outcome.",
		},
		[]string{"outcome"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_hids",
			Name:      "runs_total",
			Help:      "Total number of runs handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runScanSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_hids",
			Name:      "run_scan_seconds",
			Help:      "Time to load, scan and score one run in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	trainingPathsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_hids",
			Name:      "training_paths_total",
			Help:      "Total number of path occurrences mined from training runs.",
		},
	)
)

// Register attaches mirador-hids collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		windowsTotal,
		runsTotal,
		runScanSeconds,
		trainingPathsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveWindow counts one scored window under its outcome label.
func ObserveWindow(outcome string) {
	windowsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records a run scan duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runScanSeconds.Observe(duration.Seconds())
}

// AddTrainingPaths counts mined training path occurrences.
func AddTrainingPaths(n int) {
	if n > 0 {
		trainingPathsTotal.Add(float64(n))
	}
}
