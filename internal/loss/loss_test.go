package loss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMSEForward(t *testing.T) {
	tests := []struct {
		name     string
		yPred    []float64
		yTrue    []float64
		expected float64
	}{
		{"perfect", []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
		{"unit error", []float64{1, 2}, []float64{2, 3}, 1},
		{"mixed", []float64{0, 4}, []float64{1, 2}, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, MSE{}.Forward(tt.yPred, tt.yTrue), 1e-12)
		})
	}
}

func TestMSEGradient(t *testing.T) {
	grad := make([]float64, 2)
	MSE{}.Gradient([]float64{3, 1}, []float64{1, 1}, grad)
	assert.InDeltaSlice(t, []float64{2, 0}, grad, 1e-12)

	single := make([]float64, 1)
	MSE{}.Gradient([]float64{0.5}, []float64{0.2}, single)
	assert.InDelta(t, 0.6, single[0], 1e-12)
}

func TestMSELengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() { MSE{}.Forward([]float64{1}, []float64{1, 2}) })
	assert.Panics(t, func() { MSE{}.Gradient([]float64{1}, []float64{1}, nil) })
}

func TestMeanSquaredError(t *testing.T) {
	assert.Equal(t, 0.0, MeanSquaredError(nil, nil))
	assert.InDelta(t, 4.0/3.0, MeanSquaredError([]float64{0, 0, 0}, []float64{1, 1, -1.4142135623730951}), 1e-9)
}
