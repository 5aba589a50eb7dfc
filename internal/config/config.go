package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-hids/internal/utils"
)

// Config captures every setting of the train, analyze and stats commands.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Data      DataConfig      `yaml:"data"`
	Split     SplitConfig     `yaml:"split"`
	Model     ModelConfig     `yaml:"model"`
	Scan      ScanConfig      `yaml:"scan"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Threshold ThresholdConfig `yaml:"threshold"`
	Output    OutputConfig    `yaml:"output"`
	Server    ServerConfig    `yaml:"server"`
	Tracking  TrackingConfig  `yaml:"tracking"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DataConfig locates the dataset.
type DataConfig struct {
	Manifest   string `yaml:"manifest"`
	Vocabulary string `yaml:"vocabulary"`
}

// SplitConfig controls the deterministic train/calibration/evaluation split.
type SplitConfig struct {
	Seed                int64 `yaml:"seed"`
	TrainExamples       int   `yaml:"trainExamples"`
	CalibrationExamples int   `yaml:"calibrationExamples"`
	NormalSamples       int   `yaml:"normalSamples"`
	AttackSamples       int   `yaml:"attackSamples"`
}

// ModelConfig controls fitting and loading the sequence model.
type ModelConfig struct {
	Path      string  `yaml:"path"`
	Order     int     `yaml:"order"`
	MaxOrder  int     `yaml:"maxOrder"`
	Prior     float64 `yaml:"prior"`
	Unknown   string  `yaml:"unknown"`
	CacheSize int     `yaml:"cacheSize"`
}

// ScanConfig controls windowing and path extraction. Sizes are microseconds.
type ScanConfig struct {
	WindowSize int64 `yaml:"windowSize"`
	StepSize   int64 `yaml:"stepSize"`
	TimeDelta  int64 `yaml:"timeDelta"`
	Workers    int   `yaml:"workers"`
}

// ScoringConfig controls the window filter, normalisation and sentinels.
type ScoringConfig struct {
	TransitionFloor       int     `yaml:"transitionFloor"`
	Normalization         string  `yaml:"normalization"`
	EmptyWindowSentinel   float64 `yaml:"emptyWindowSentinel"`
	UnknownSymbolSentinel float64 `yaml:"unknownSymbolSentinel"`
	ModelErrorSentinel    float64 `yaml:"modelErrorSentinel"`
}

// ThresholdConfig selects how the exploit threshold is obtained.
type ThresholdConfig struct {
	Mode       string  `yaml:"mode"` // fixed | percentile
	Value      float64 `yaml:"value"`
	Percentile float64 `yaml:"percentile"`
}

// OutputConfig controls the results directory and trace output.
type OutputConfig struct {
	Dir            string  `yaml:"dir"`
	OnlyWrong      bool    `yaml:"onlyWrong"`
	TraceThreshold float64 `yaml:"traceThreshold"`
}

// ServerConfig controls the optional gRPC health listener and metrics endpoint.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// TrackingConfig configures the optional NATS metric sink.
type TrackingConfig struct {
	NATSURL string `yaml:"natsURL"`
	Subject string `yaml:"subject"`
}

const (
	ThresholdFixed      = "fixed"
	ThresholdPercentile = "percentile"
)

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_HIDS_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", JSON: false},
		Split: SplitConfig{
			Seed:                1,
			TrainExamples:       20,
			CalibrationExamples: 10,
		},
		Model: ModelConfig{
			Path:      "hids.model.zst",
			Order:     -1,
			MaxOrder:  3,
			Prior:     0,
			Unknown:   "reject",
			CacheSize: 4096,
		},
		Scan: ScanConfig{
			WindowSize: 1000000,
			StepSize:   100000,
			TimeDelta:  0,
			Workers:    4,
		},
		Scoring: ScoringConfig{
			TransitionFloor:       3,
			Normalization:         "log",
			EmptyWindowSentinel:   -110,
			UnknownSymbolSentinel: -100,
			ModelErrorSentinel:    0,
		},
		Threshold: ThresholdConfig{
			Mode:       ThresholdPercentile,
			Value:      -1,
			Percentile: 0.05,
		},
		Output: OutputConfig{
			Dir:            "results",
			OnlyWrong:      true,
			TraceThreshold: -1,
		},
		Server: ServerConfig{
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Tracking: TrackingConfig{Subject: "hids.metrics"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_HIDS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_HIDS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_HIDS_MANIFEST"); v != "" {
		cfg.Data.Manifest = v
	}
	if v := os.Getenv("MIRADOR_HIDS_VOCABULARY"); v != "" {
		cfg.Data.Vocabulary = v
	}
	if v := os.Getenv("MIRADOR_HIDS_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("MIRADOR_HIDS_WINDOW_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Scan.WindowSize = n
		}
	}
	if v := os.Getenv("MIRADOR_HIDS_STEP_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Scan.StepSize = n
		}
	}
	if v := os.Getenv("MIRADOR_HIDS_TIME_DELTA"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Scan.TimeDelta = n
		}
	}
	if v := os.Getenv("MIRADOR_HIDS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Workers = n
		}
	}
	if v := os.Getenv("MIRADOR_HIDS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Threshold.Mode = ThresholdFixed
			cfg.Threshold.Value = f
		}
	}
	if v := os.Getenv("MIRADOR_HIDS_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("MIRADOR_HIDS_ONLY_WRONG"); v != "" {
		cfg.Output.OnlyWrong = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("MIRADOR_HIDS_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_HIDS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_HIDS_NATS_URL"); v != "" {
		cfg.Tracking.NATSURL = v
	}
	if v := os.Getenv("MIRADOR_HIDS_TRACKING_SUBJECT"); v != "" {
		cfg.Tracking.Subject = v
	}
}

// Validate reports the first unusable setting as an ErrConfig error.
func (c *Config) Validate() error {
	fail := func(msg string, args ...any) error {
		return utils.NewConfigError("validate config", fmt.Sprintf(msg, args...), nil)
	}

	if c.Data.Manifest == "" {
		return fail("data.manifest is required")
	}
	if c.Model.Path == "" {
		return fail("model.path is required")
	}
	if c.Model.MaxOrder < 0 {
		return fail("model.maxOrder must not be negative")
	}
	if c.Model.Prior < 0 {
		return fail("model.prior must not be negative")
	}
	if c.Model.Unknown != "reject" && c.Model.Unknown != "reserve" {
		return fail("model.unknown must be reject or reserve, got %q", c.Model.Unknown)
	}
	if c.Model.CacheSize < 0 {
		return fail("model.cacheSize must not be negative")
	}
	if c.Scan.WindowSize <= 0 {
		return fail("scan.windowSize must be positive")
	}
	if c.Scan.StepSize <= 0 {
		return fail("scan.stepSize must be positive")
	}
	if c.Scan.TimeDelta < 0 {
		return fail("scan.timeDelta must not be negative")
	}
	if c.Scan.Workers < 1 {
		return fail("scan.workers must be at least 1")
	}
	if c.Scoring.TransitionFloor < 0 {
		return fail("scoring.transitionFloor must not be negative")
	}
	switch c.Scoring.Normalization {
	case "log", "divide", "none":
	default:
		return fail("scoring.normalization must be log, divide or none, got %q", c.Scoring.Normalization)
	}
	switch c.Threshold.Mode {
	case ThresholdFixed:
	case ThresholdPercentile:
		if c.Threshold.Percentile < 0 || c.Threshold.Percentile > 1 {
			return fail("threshold.percentile must be within [0, 1]")
		}
		if c.Split.CalibrationExamples < 1 {
			return fail("percentile threshold needs split.calibrationExamples > 0")
		}
	default:
		return fail("threshold.mode must be fixed or percentile, got %q", c.Threshold.Mode)
	}
	if c.Split.TrainExamples < 1 {
		return fail("split.trainExamples must be at least 1")
	}
	if c.Split.CalibrationExamples < 0 || c.Split.NormalSamples < 0 || c.Split.AttackSamples < 0 {
		return fail("split sizes must not be negative")
	}
	if c.Output.Dir == "" {
		return fail("output.dir is required")
	}
	if c.Tracking.NATSURL != "" && c.Tracking.Subject == "" {
		return fail("tracking.subject is required when tracking.natsURL is set")
	}
	return nil
}
