package services

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-hids/internal/analysis"
	"github.com/miradorstack/mirador-hids/internal/config"
	"github.com/miradorstack/mirador-hids/internal/engine"
	"github.com/miradorstack/mirador-hids/internal/extractors"
	"github.com/miradorstack/mirador-hids/internal/models"
	"github.com/miradorstack/mirador-hids/internal/repo"
	"github.com/miradorstack/mirador-hids/internal/seqmodel"
	"github.com/miradorstack/mirador-hids/internal/tracking"
	"github.com/miradorstack/mirador-hids/internal/training"
	"github.com/miradorstack/mirador-hids/internal/utils"
)

// StatusReporter receives the serving state while a command runs.
type StatusReporter interface {
	SetServing(serving bool)
}

// TrainResult describes a saved model.
type TrainResult struct {
	Path       string
	Order      int
	Vocabulary int
	Runs       int
}

// AnalysisSummary describes one completed analysis.
type AnalysisSummary struct {
	ID        string
	Dir       string
	Threshold float64
	Table     models.AnalysisTable
	Report    models.ClassificationReport
	Traced    int
}

// DetectionService runs the train, analyze and stats commands.
type DetectionService struct {
	logger    *slog.Logger
	cfg       *config.Config
	status    StatusReporter
	latencies *utils.LatencyTracker
	newID     func() string
}

// NewDetectionService constructs the service facade; status may be nil.
func NewDetectionService(logger *slog.Logger, cfg *config.Config, status StatusReporter) *DetectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetectionService{
		logger:    logger,
		cfg:       cfg,
		status:    status,
		latencies: utils.NewLatencyTracker(1024),
		newID:     uuid.NewString,
	}
}

type dataset struct {
	split     repo.Split
	loader    *repo.RunLoader
	extractor extractors.Extractor
	pool      *engine.Pool
}

func (s *DetectionService) openDataset() (*dataset, error) {
	entries, err := repo.LoadManifest(s.cfg.Data.Manifest)
	if err != nil {
		return nil, err
	}

	var vocabulary map[string]struct{}
	if s.cfg.Data.Vocabulary != "" {
		if vocabulary, err = repo.LoadVocabulary(s.cfg.Data.Vocabulary); err != nil {
			return nil, err
		}
	}

	split, err := repo.SplitRuns(entries, repo.SplitConfig{
		Seed:                s.cfg.Split.Seed,
		TrainExamples:       s.cfg.Split.TrainExamples,
		CalibrationExamples: s.cfg.Split.CalibrationExamples,
		NormalSamples:       s.cfg.Split.NormalSamples,
		AttackSamples:       s.cfg.Split.AttackSamples,
	})
	if err != nil {
		return nil, utils.NewInputError("services.openDataset", "split manifest", err)
	}
	s.logger.Info("dataset split",
		"runs", len(entries),
		"train", len(split.Train),
		"calibration", len(split.Calibration),
		"evaluation", len(split.Evaluation))

	return &dataset{
		split:     split,
		loader:    repo.NewRunLoader(s.logger, vocabulary),
		extractor: extractors.New(s.cfg.Scan.TimeDelta),
		pool:      engine.NewPool(s.logger, s.cfg.Scan.Workers),
	}, nil
}

// Train fits the model on the benign training runs and saves it.
func (s *DetectionService) Train(ctx context.Context) (TrainResult, error) {
	ds, err := s.openDataset()
	if err != nil {
		return TrainResult{}, err
	}

	trainer := training.NewTrainer(s.logger, ds.pool, ds.loader, ds.extractor)
	model, err := trainer.Train(ctx, ds.split.Train, training.Options{
		Order:    s.cfg.Model.Order,
		MaxOrder: s.cfg.Model.MaxOrder,
		Prior:    s.cfg.Model.Prior,
		Unknown:  seqmodel.UnknownHandling(s.cfg.Model.Unknown),
	})
	if err != nil {
		return TrainResult{}, utils.NewAppError("services.Train", "fit model", err)
	}
	if err := seqmodel.SaveFile(s.cfg.Model.Path, model); err != nil {
		return TrainResult{}, utils.NewAppError("services.Train", "save model", err)
	}

	s.logger.Info("model saved", "path", s.cfg.Model.Path, "order", model.Order())
	return TrainResult{
		Path:       s.cfg.Model.Path,
		Order:      model.Order(),
		Vocabulary: len(model.Vocabulary()),
		Runs:       len(ds.split.Train),
	}, nil
}

// Stats summarises inter-event gaps of the training runs.
func (s *DetectionService) Stats(ctx context.Context) (analysis.TimingStats, error) {
	ds, err := s.openDataset()
	if err != nil {
		return analysis.TimingStats{}, err
	}
	trainer := training.NewTrainer(s.logger, ds.pool, ds.loader, ds.extractor)
	gaps, err := trainer.Gaps(ctx, ds.split.Train)
	if err != nil {
		return analysis.TimingStats{}, err
	}
	return analysis.ComputeTimingStats(gaps), nil
}

// Analyze scores the evaluation runs, classifies them and writes the results
// directory.
func (s *DetectionService) Analyze(ctx context.Context) (AnalysisSummary, error) {
	s.setServing(false)
	defer s.setServing(false)

	ds, err := s.openDataset()
	if err != nil {
		return AnalysisSummary{}, err
	}
	scorer, err := s.newScorer(ds)
	if err != nil {
		return AnalysisSummary{}, err
	}

	threshold, err := s.threshold(ctx, ds, scorer)
	if err != nil {
		return AnalysisSummary{}, err
	}

	summary := AnalysisSummary{ID: s.newID(), Threshold: threshold}
	summary.Dir = filepath.Join(s.cfg.Output.Dir, summary.ID)
	if err := os.MkdirAll(summary.Dir, 0o755); err != nil {
		return summary, utils.NewAppError("services.Analyze", "create results directory", err)
	}

	recorder, err := s.newRecorder(summary)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			s.logger.Warn("closing metric recorder failed", "error", err)
		}
	}()
	if err := recorder.LogScalar(ctx, "threshold", threshold, 0); err != nil {
		s.logger.Warn("recording threshold failed", "error", err)
	}

	analyzer := analysis.NewAnalyzer(s.logger, recorder, ds.split.Evaluation, analysis.Options{
		Threshold:      threshold,
		TraceThreshold: s.cfg.Output.TraceThreshold,
	})

	s.setServing(true)
	timed := &timedScorer{inner: scorer, latencies: s.latencies, logger: s.logger}
	if err := ds.pool.ScoreRuns(ctx, ds.split.Evaluation, ds.loader, timed, analyzer); err != nil {
		return summary, utils.NewAppError("services.Analyze", "score evaluation runs", err)
	}

	summary.Table = analyzer.EvaluateRuns()
	if err := writeRunsCSV(filepath.Join(summary.Dir, "runs.csv"), summary.Table); err != nil {
		return summary, utils.NewAppError("services.Analyze", "write runs", err)
	}

	summary.Report, err = analyzer.Report(ctx)
	if err != nil {
		s.logger.Warn("recording report metrics failed", "error", err)
	}
	if err := os.WriteFile(filepath.Join(summary.Dir, "report.txt"), []byte(analysis.FormatReport(summary.Report)), 0o644); err != nil {
		return summary, utils.NewAppError("services.Analyze", "write report", err)
	}

	summary.Traced, err = analyzer.WriteMisclassifiedRuns(ctx, s.cfg.Output.OnlyWrong)
	if err != nil {
		return summary, utils.NewAppError("services.Analyze", "write traces", err)
	}

	s.logger.Info("analysis complete", "id", summary.ID, "dir", summary.Dir, "runs", len(summary.Table))
	return summary, nil
}

func (s *DetectionService) newScorer(ds *dataset) (*engine.Scorer, error) {
	fitted, err := seqmodel.LoadFile(s.cfg.Model.Path)
	if err != nil {
		return nil, utils.NewInputError("services.newScorer", "load model", err)
	}

	var model seqmodel.Model = fitted
	if s.cfg.Model.CacheSize > 0 {
		if model, err = seqmodel.NewCachedModel(fitted, s.cfg.Model.CacheSize); err != nil {
			return nil, err
		}
	}

	policy := engine.ScoringPolicy{
		TransitionFloor: s.cfg.Scoring.TransitionFloor,
		Normalization:   engine.Normalization(s.cfg.Scoring.Normalization),
		Sentinels: engine.Sentinels{
			EmptyWindow:   s.cfg.Scoring.EmptyWindowSentinel,
			UnknownSymbol: s.cfg.Scoring.UnknownSymbolSentinel,
			ModelError:    s.cfg.Scoring.ModelErrorSentinel,
		},
	}
	return engine.NewScorer(s.logger, model, ds.extractor, s.cfg.Scan.WindowSize, s.cfg.Scan.StepSize, policy)
}

// threshold returns the fixed threshold or the configured percentile of the
// calibration run minima.
func (s *DetectionService) threshold(ctx context.Context, ds *dataset, scorer *engine.Scorer) (float64, error) {
	if s.cfg.Threshold.Mode == config.ThresholdFixed {
		return s.cfg.Threshold.Value, nil
	}

	calibration := analysis.NewAnalyzer(s.logger, nil, ds.split.Calibration, analysis.Options{})
	if err := ds.pool.ScoreRuns(ctx, ds.split.Calibration, ds.loader, scorer, calibration); err != nil {
		return 0, utils.NewAppError("services.threshold", "score calibration runs", err)
	}
	threshold := calibration.MinLikelihood(s.cfg.Threshold.Percentile)
	if math.IsNaN(threshold) {
		return 0, utils.NewAppError("services.threshold", "calibration runs have no scorable window", nil)
	}
	s.logger.Info("threshold calibrated",
		"percentile", s.cfg.Threshold.Percentile,
		"runs", len(ds.split.Calibration),
		"threshold", threshold)
	return threshold, nil
}

func (s *DetectionService) newRecorder(summary AnalysisSummary) (tracking.Recorder, error) {
	file, err := tracking.NewFileRecorder(filepath.Join(summary.Dir, "metrics.jsonl"), summary.ID)
	if err != nil {
		return nil, utils.NewAppError("services.newRecorder", "open metrics file", err)
	}
	recorders := tracking.Multi{file}

	if s.cfg.Tracking.NATSURL != "" {
		nats, err := tracking.NewNATSRecorder(s.logger, s.cfg.Tracking.NATSURL, s.cfg.Tracking.Subject, summary.ID)
		if err != nil {
			file.Close()
			return nil, utils.NewAppError("services.newRecorder", "connect tracking", err)
		}
		recorders = append(recorders, nats)
	}
	return recorders, nil
}

func (s *DetectionService) setServing(serving bool) {
	if s.status != nil {
		s.status.SetServing(serving)
	}
}

// timedScorer tracks per-run scoring latency.
type timedScorer struct {
	inner     engine.RunScorer
	latencies *utils.LatencyTracker
	logger    *slog.Logger
}

func (t *timedScorer) ScoreRun(ctx context.Context, run models.Run) (models.RunResult, error) {
	start := time.Now()
	result, err := t.inner.ScoreRun(ctx, run)
	if err != nil {
		return result, err
	}
	t.latencies.Observe(time.Since(start))
	if count := t.latencies.Count(); count >= 20 && count%20 == 0 {
		t.logger.Info("run scoring latency", slog.Duration("p95", t.latencies.Quantile(0.95)), slog.Int("samples", count))
	}
	return result, nil
}

func writeRunsCSV(path string, table models.AnalysisTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	rows := [][]string{{"scenario_name", "label", "min_likelihood", "result_id", "predicted_label"}}
	for _, row := range table {
		rows = append(rows, []string{
			row.ScenarioName,
			strconv.FormatBool(row.Label),
			strconv.FormatFloat(row.MinLikelihood, 'g', -1, 64),
			strconv.Itoa(row.ResultID),
			strconv.FormatBool(row.Predicted),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return errors.Join(w.Error(), f.Close())
}
