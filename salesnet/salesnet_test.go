package salesnet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/lstmsales/internal/config"
)

func TestBuildFitSaveLoad(t *testing.T) {
	model, err := Build(Spec{
		DenseSize: 2, YearSteps: 2, YearFeatures: 1, MonthSteps: 3, MonthFeatures: 1,
		SeqSize: 3, FinalDenseSize: 2, MaskValue: -1,
		Optimizer: "adam", LearningRate: 0.01, Seed: 7,
	})
	require.NoError(t, err)

	samples := []Sample{
		{Dense: []float64{0, 1}, Year: [][]float64{{0.1}, {0.2}}, Month: [][]float64{{0.3}, {-1}, {0.5}}},
		{Dense: []float64{1, 0}, Year: [][]float64{{-1}, {0.9}}, Month: [][]float64{{0.7}, {0.8}, {0.9}}},
	}
	log, _ := test.NewNullLogger()
	hist, err := model.Fit(context.Background(), samples, []float64{0.2, 0.8}, FitOptions{
		Epochs:    3,
		BatchSize: 2,
		Callbacks: []Callback{Logger(log, 1), EarlyStopping(5, 0, log)},
	})
	require.NoError(t, err)
	assert.Len(t, hist.Loss, 3)

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, model.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.Predict(samples), loaded.Predict(samples))
}

func TestNewScalerSentinel(t *testing.T) {
	s := NewScaler(-1)
	out, err := s.FitTransform([][]float64{{-1}, {2}, {4}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-1}, {0}, {1}}, out)
}

func TestTrainRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Folds = 1
	log, _ := test.NewNullLogger()

	_, err := Train(context.Background(), &cfg, log)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestLoggerWithoutLog(t *testing.T) {
	assert.NotPanics(t, func() { Logger(nil, 1).OnEpochEnd(0, 1, nil) })
}
