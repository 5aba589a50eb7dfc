package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-hids/internal/analysis"
	"github.com/miradorstack/mirador-hids/internal/api"
	"github.com/miradorstack/mirador-hids/internal/config"
	"github.com/miradorstack/mirador-hids/internal/metrics"
	"github.com/miradorstack/mirador-hids/internal/services"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

const usage = `usage: hids <command> [-config file]

commands:
  train     fit the sequence model on benign training runs
  analyze   score evaluation runs and write a results directory
  stats     print inter-event timing statistics of training runs
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	_ = fs.Parse(os.Args[2:])

	switch command {
	case "train", "analyze", "stats":
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err := run(command, *configPath); err != nil {
		slog.Error("command failed", slog.String("command", command), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := utils.NewLogger(nil, cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)
	logger.Info("starting mirador-hids", slog.String("command", command))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(logger, cfg.Server.MetricsAddress)
	defer shutdownMetricsServer(logger, metricsServer)

	var status services.StatusReporter
	if cfg.Server.Address != "" {
		server, err := api.NewServer(cfg.Server)
		if err != nil {
			return fmt.Errorf("create gRPC server: %w", err)
		}
		go func() {
			if serveErr := server.Start(); serveErr != nil {
				logger.Error("gRPC server exited", slog.Any("error", serveErr))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
		logger.Info("health server listening", slog.String("address", server.Address()))
		status = server
	}

	svc := services.NewDetectionService(logger, cfg, status)
	switch command {
	case "train":
		result, err := svc.Train(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("model written to %s (order %d, %d symbols, %d runs)\n", result.Path, result.Order, result.Vocabulary, result.Runs)
	case "analyze":
		summary, err := svc.Analyze(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("analysis %s, threshold %.4f\n\n%s\nresults in %s\n",
			summary.ID, summary.Threshold, analysis.FormatReport(summary.Report), summary.Dir)
	case "stats":
		stats, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(statsOutput(stats)); err != nil {
			return err
		}
	}

	logger.Info("mirador-hids finished", slog.String("command", command))
	return nil
}

// statsOutput replaces NaN fields, which JSON cannot carry, with nulls.
func statsOutput(s analysis.TimingStats) map[string]any {
	out := map[string]any{"count": s.Count}
	for key, v := range map[string]float64{
		"min": s.Min, "max": s.Max, "mean": s.Mean, "variance": s.Variance,
		"skewness": s.Skewness, "kurtosis": s.Kurtosis,
		"p50": s.P50, "p90": s.P90, "p99": s.P99,
	} {
		if math.IsNaN(v) {
			out[key] = nil
			continue
		}
		out[key] = v
	}
	return out
}

// startMetricsServer exposes /metrics while the command runs. A bind failure
// only disables the endpoint; the command itself carries on.
func startMetricsServer(logger *slog.Logger, address string) *http.Server {
	if address == "" {
		return nil
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		logger.Warn("metrics endpoint disabled", slog.String("address", address), slog.Any("error", err))
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         listener.Addr().String(),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", slog.String("address", srv.Addr))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownMetricsServer(logger *slog.Logger, srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
}
