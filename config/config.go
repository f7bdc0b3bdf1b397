package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"scorecast/ml"
)

// Config is the full service and training configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Training   TrainingConfig   `yaml:"training"`
}

// HTTPConfig configures the listener and CORS.
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// LogConfig configures the zap logger and optional file rotation.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`         // empty logs to stderr only
	MaxSizeMB   int    `yaml:"max_size_mb"`  // rotate after this size
	MaxBackups  int    `yaml:"max_backups"`  // rotated files kept
	MaxAgeDays  int    `yaml:"max_age_days"` // days rotated files are kept
	Compress    bool   `yaml:"compress"`
}

// DatabaseConfig points at the sqlite prediction log.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ArtifactsConfig locates the preprocessor and model files. Relative
// file names resolve against Dir.
type ArtifactsConfig struct {
	Dir          string `yaml:"dir"`
	Preprocessor string `yaml:"preprocessor"`
	Model        string `yaml:"model"`
}

// PreprocessorPath resolves the preprocessor file against Dir.
func (a ArtifactsConfig) PreprocessorPath() string {
	return resolve(a.Dir, a.Preprocessor)
}

// ModelPath resolves the model file against Dir.
func (a ArtifactsConfig) ModelPath() string {
	return resolve(a.Dir, a.Model)
}

func resolve(dir, file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

// MonitoringConfig sizes the in-memory recent-prediction cache.
type MonitoringConfig struct {
	RecentCacheSize int `yaml:"recent_cache_size"`
}

// TrainingConfig drives the offline training run.
type TrainingConfig struct {
	Dataset       string                  `yaml:"dataset"`
	Encoding      string                  `yaml:"encoding"` // WHATWG label, empty for UTF-8
	Target        string                  `yaml:"target"`
	TestRatio     float64                 `yaml:"test_ratio"`
	RandomSeed    int64                   `yaml:"random_seed"`
	Folds         int                     `yaml:"folds"`
	MinScore      float64                 `yaml:"min_score"`
	HandleUnknown string                  `yaml:"handle_unknown"`
	Models        map[string]string       `yaml:"models"` // identifier -> estimator kind
	ParamGrids    map[string]ml.ParamGrid `yaml:"param_grids"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:           5000,
			Timeout:        30 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Database: DatabaseConfig{Path: "data/scorecast.db"},
		Artifacts: ArtifactsConfig{
			Dir:          "artifacts",
			Preprocessor: ml.DefaultPreprocessorFile,
			Model:        ml.DefaultModelFile,
		},
		Monitoring: MonitoringConfig{RecentCacheSize: 256},
		Training: TrainingConfig{
			Dataset:       "notebook/data/stud.csv",
			Target:        ml.ColumnMathScore,
			TestRatio:     0.2,
			RandomSeed:    42,
			Folds:         ml.DefaultFolds,
			MinScore:      0.6,
			HandleUnknown: string(ml.UnknownError),
		},
	}
	applyDefaults(cfg)
	return cfg
}

// Load reads path over Default. An empty path tries config.yaml and
// configs/config.yaml and falls back to defaults when neither exists.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.Training.Models = nil
	cfg.Training.ParamGrids = nil

	if path == "" {
		path = Find()
		if path == "" {
			applyDefaults(cfg)
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the first of config.yaml and configs/config.yaml that exists,
// or "" when neither does.
func Find() string {
	for _, p := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 5000
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Artifacts.Preprocessor == "" {
		cfg.Artifacts.Preprocessor = ml.DefaultPreprocessorFile
	}
	if cfg.Artifacts.Model == "" {
		cfg.Artifacts.Model = ml.DefaultModelFile
	}
	if cfg.Monitoring.RecentCacheSize <= 0 {
		cfg.Monitoring.RecentCacheSize = 256
	}
	if cfg.Training.Target == "" {
		cfg.Training.Target = ml.ColumnMathScore
	}
	if cfg.Training.Folds == 0 {
		cfg.Training.Folds = ml.DefaultFolds
	}
	if cfg.Training.HandleUnknown == "" {
		cfg.Training.HandleUnknown = string(ml.UnknownError)
	}
	if len(cfg.Training.Models) == 0 {
		cfg.Training.Models = defaultModels()
		if len(cfg.Training.ParamGrids) == 0 {
			cfg.Training.ParamGrids = defaultParamGrids()
		}
	}
}

func defaultModels() map[string]string {
	return map[string]string{
		"Linear Regression": ml.KindLinearRegression,
		"Decision Tree":     ml.KindDecisionTree,
		"Random Forest":     ml.KindRandomForest,
		"Gradient Boosting": ml.KindGradientBoosting,
		"K-Neighbors":       ml.KindKNeighbors,
	}
}

func defaultParamGrids() map[string]ml.ParamGrid {
	return map[string]ml.ParamGrid{
		"Linear Regression": {"fit_intercept": {true}, "alpha": {0.0, 1.0}},
		"Decision Tree":     {"max_depth": {4, 8}, "min_samples_leaf": {1, 5}},
		"Random Forest":     {"n_estimators": {32, 64}, "max_depth": {8}, "max_features": {0.5, 1.0}},
		"Gradient Boosting": {"n_estimators": {64, 128}, "learning_rate": {0.05, 0.1}},
		"K-Neighbors":       {"n_neighbors": {5, 7, 9}, "weights": {"uniform", "distance"}},
	}
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if t := c.Training.TestRatio; t <= 0 || t >= 1 {
		return fmt.Errorf("training.test_ratio must be in (0, 1), got %v", t)
	}
	if c.Training.Folds < 2 {
		return fmt.Errorf("training.folds must be >= 2, got %d", c.Training.Folds)
	}
	switch ml.UnknownPolicy(c.Training.HandleUnknown) {
	case ml.UnknownError, ml.UnknownIgnore:
	default:
		return fmt.Errorf("training.handle_unknown must be %q or %q", ml.UnknownError, ml.UnknownIgnore)
	}
	for name, kind := range c.Training.Models {
		if _, err := ml.NewEstimator(kind); err != nil {
			return fmt.Errorf("training.models[%s]: %w", name, err)
		}
	}
	return nil
}
