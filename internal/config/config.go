// Package config loads run settings from defaults, an optional YAML file,
// LSTMSALES_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LSTMSALES"

// Config holds every setting of a training run.
type Config struct {
	// Inputs
	TrainPath     string   `mapstructure:"train"`
	TestPath      string   `mapstructure:"test"`
	TemplatePath  string   `mapstructure:"template"`
	TargetColumn  string   `mapstructure:"target_column"`
	YearPrefix    string   `mapstructure:"year_prefix"`
	MonthPrefix   string   `mapstructure:"month_prefix"`
	IgnoreColumns []string `mapstructure:"ignore_columns"`

	// Output
	OutputDir        string `mapstructure:"output_dir"`
	PredictionColumn string `mapstructure:"prediction_column"`
	ModelOut         string `mapstructure:"model_out"`
	CVReport         string `mapstructure:"cv_report"`
	HistoryPath      string `mapstructure:"history"`
	MetricsFile      string `mapstructure:"metrics_file"`

	// Features
	YearLookback  int     `mapstructure:"year_lookback"`
	MonthLookback int     `mapstructure:"month_lookback"`
	MaskValue     float64 `mapstructure:"mask_value"`

	// Model and training
	SeqSizes         []int   `mapstructure:"seq_sizes"`
	FinalDenseSizes  []int   `mapstructure:"final_dense_sizes"`
	Dropout          float64 `mapstructure:"dropout"`
	RecurrentDropout float64 `mapstructure:"recurrent_dropout"`
	Optimizer        string  `mapstructure:"optimizer"`
	LearningRate     float64 `mapstructure:"learning_rate"`
	ClipNorm         float64 `mapstructure:"clip_norm"`
	Epochs           int     `mapstructure:"epochs"`
	BatchSize        int     `mapstructure:"batch_size"`
	Patience         int     `mapstructure:"patience"`
	MinDelta         float64 `mapstructure:"min_delta"`
	Seed             int64   `mapstructure:"seed"`

	// Search
	Folds int `mapstructure:"folds"`
	Jobs  int `mapstructure:"jobs"`

	// Logging
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	LogInterval int    `mapstructure:"log_interval"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		TrainPath:        "data/train_features.csv",
		TestPath:         "data/test_features.csv",
		TemplatePath:     "data/yancheng_testA_20171225.csv",
		TargetColumn:     "sale_quantity",
		YearPrefix:       "year_lag_",
		MonthPrefix:      "month_lag_",
		IgnoreColumns:    []string{},
		OutputDir:        "sub",
		PredictionColumn: "predict_quantity",
		YearLookback:     3,
		MonthLookback:    6,
		MaskValue:        -1,
		SeqSizes:         []int{32, 64, 128},
		FinalDenseSizes:  []int{32, 64, 128},
		Dropout:          0.2,
		RecurrentDropout: 0.2,
		Optimizer:        "adam",
		LearningRate:     0.001,
		ClipNorm:         1.0,
		Epochs:           500,
		BatchSize:        300,
		Seed:             7,
		Folds:            6,
		Jobs:             -1,
		LogLevel:         "info",
		LogFormat:        "text",
		LogInterval:      50,
	}
}

// SetDefaults registers Default() on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("train", d.TrainPath)
	v.SetDefault("test", d.TestPath)
	v.SetDefault("template", d.TemplatePath)
	v.SetDefault("target_column", d.TargetColumn)
	v.SetDefault("year_prefix", d.YearPrefix)
	v.SetDefault("month_prefix", d.MonthPrefix)
	v.SetDefault("ignore_columns", d.IgnoreColumns)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("prediction_column", d.PredictionColumn)
	v.SetDefault("model_out", d.ModelOut)
	v.SetDefault("cv_report", d.CVReport)
	v.SetDefault("history", d.HistoryPath)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("year_lookback", d.YearLookback)
	v.SetDefault("month_lookback", d.MonthLookback)
	v.SetDefault("mask_value", d.MaskValue)
	v.SetDefault("seq_sizes", d.SeqSizes)
	v.SetDefault("final_dense_sizes", d.FinalDenseSizes)
	v.SetDefault("dropout", d.Dropout)
	v.SetDefault("recurrent_dropout", d.RecurrentDropout)
	v.SetDefault("optimizer", d.Optimizer)
	v.SetDefault("learning_rate", d.LearningRate)
	v.SetDefault("clip_norm", d.ClipNorm)
	v.SetDefault("epochs", d.Epochs)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("patience", d.Patience)
	v.SetDefault("min_delta", d.MinDelta)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("folds", d.Folds)
	v.SetDefault("jobs", d.Jobs)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_interval", d.LogInterval)
}

// Load reads cfgFile (if not empty) and the environment into v and returns
// the merged, validated configuration. Flags must already be bound to v.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot produce a run.
func (c *Config) Validate() error {
	var problems []string
	check := func(bad bool, msg string) {
		if bad {
			problems = append(problems, msg)
		}
	}

	check(c.YearLookback <= 0, "year_lookback must be positive")
	check(c.MonthLookback <= 0, "month_lookback must be positive")
	check(c.Epochs <= 0, "epochs must be positive")
	check(c.BatchSize <= 0, "batch_size must be positive")
	check(c.Folds < 2, "folds must be at least 2")
	check(len(c.SeqSizes) == 0, "seq_sizes must not be empty")
	check(len(c.FinalDenseSizes) == 0, "final_dense_sizes must not be empty")
	for _, s := range append(append([]int(nil), c.SeqSizes...), c.FinalDenseSizes...) {
		check(s <= 0, fmt.Sprintf("layer width %d must be positive", s))
	}
	check(c.Dropout < 0 || c.Dropout >= 1, "dropout must be in [0, 1)")
	check(c.RecurrentDropout < 0 || c.RecurrentDropout >= 1, "recurrent_dropout must be in [0, 1)")
	check(c.LearningRate <= 0, "learning_rate must be positive")
	check(c.Optimizer != "adam" && c.Optimizer != "sgd", "optimizer must be adam or sgd")
	check(c.Patience < 0, "patience must not be negative")
	check(c.TrainPath == "" || c.TestPath == "" || c.TemplatePath == "", "train, test and template paths are required")
	check(c.LogFormat != "text" && c.LogFormat != "json", "log_format must be text or json")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
