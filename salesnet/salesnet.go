// Package salesnet re-exports the forecaster for use outside this module:
// build or load a model, train it and run the full pipeline.
package salesnet

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/lstmsales/internal/config"
	"github.com/FlavioCFOliveira/lstmsales/internal/features"
	"github.com/FlavioCFOliveira/lstmsales/internal/metrics"
	"github.com/FlavioCFOliveira/lstmsales/internal/net"
	"github.com/FlavioCFOliveira/lstmsales/internal/pipeline"
	"github.com/FlavioCFOliveira/lstmsales/internal/scale"
	"github.com/FlavioCFOliveira/lstmsales/internal/search"
)

// Re-export common types for easier access
type (
	Model      = net.Model
	Spec       = net.Spec
	Sample     = net.Sample
	FitOptions = net.FitOptions
	History    = net.History
	Callback   = net.Callback
	Config     = config.Config
	Result     = pipeline.Result
	Params     = search.Params
	Grid       = search.Grid
	Fold       = search.Fold
	Scaler     = scale.MinMaxScaler
)

// Model creation
func Build(spec Spec) (*Model, error) {
	return net.Build(spec)
}

// Callbacks
func Logger(log logrus.FieldLogger, interval int) net.Logger {
	return net.Logger{Log: log, Interval: interval}
}

func EarlyStopping(patience int, minDelta float64, log logrus.FieldLogger) *net.EarlyStopping {
	return net.NewEarlyStopping(patience, minDelta, log)
}

func CSVLogger(filename string, log logrus.FieldLogger) *net.CSVLogger {
	return net.NewCSVLogger(filename, false, log)
}

// Preprocessing
func NewScaler(mask ...float64) *Scaler {
	if len(mask) > 0 {
		return scale.NewMinMaxScaler(scale.WithSentinel(mask[0]))
	}
	return scale.NewMinMaxScaler()
}

func Reshape(flat [][]float64, steps int) ([][][]float64, error) {
	return features.Reshape(flat, steps)
}

func KFold(n, k int) ([]Fold, error) {
	return search.KFold(n, k)
}

// Pipeline
func DefaultConfig() Config {
	return config.Default()
}

// Train runs the full job described by cfg and returns the submission
// path and search report.
func Train(ctx context.Context, cfg *Config, log logrus.FieldLogger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return pipeline.New(cfg, log, metrics.NewRecorder()).Run(ctx)
}

// Model Persistence
func Load(filename string) (*Model, error) {
	return net.Load(filename)
}
