package scale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTransform(t *testing.T) {
	s := NewMinMaxScaler()
	out, err := s.FitTransform([][]float64{
		{0, 10},
		{5, 20},
		{10, 30},
	})
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{0, 0}, {0.5, 0.5}, {1, 1}}, out)
	lo, hi := s.Range(1)
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 30.0, hi)
}

// Test rows are transformed with training ranges and never move them.
func TestTransformDoesNotRefit(t *testing.T) {
	s := NewMinMaxScaler()
	require.NoError(t, s.Fit([][]float64{{0}, {10}}))

	out, err := s.Transform([][]float64{{20}, {-5}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2}, {-0.5}}, out)

	lo, hi := s.Range(0)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 10.0, hi)
}

func TestTransformBeforeFit(t *testing.T) {
	s := NewMinMaxScaler()
	_, err := s.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = s.InverseTransform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.False(t, s.Fitted())
}

func TestShapeErrors(t *testing.T) {
	s := NewMinMaxScaler()
	assert.ErrorIs(t, s.Fit(nil), ErrShape)
	assert.ErrorIs(t, s.Fit([][]float64{{1, 2}, {3}}), ErrShape)

	require.NoError(t, s.Fit([][]float64{{1, 2}}))
	_, err := s.Transform([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestConstantColumnMapsToZero(t *testing.T) {
	s := NewMinMaxScaler()
	out, err := s.FitTransform([][]float64{{4}, {4}, {4}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0}, {0}, {0}}, out)
}

func TestInverseTransformRoundTrip(t *testing.T) {
	s := NewMinMaxScaler()
	rows := [][]float64{{3, -1}, {7, 5}, {5, 2}}
	scaled, err := s.FitTransform(rows)
	require.NoError(t, err)

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	for i := range rows {
		assert.InDeltaSlice(t, rows[i], back[i], 1e-12)
	}
}

func TestSentinelExcludedAndPreserved(t *testing.T) {
	s := NewMinMaxScaler(WithSentinel(-1))
	out, err := s.FitTransform([][]float64{
		{-1, 2},
		{4, -1},
		{8, 6},
	})
	require.NoError(t, err)

	lo, hi := s.Range(0)
	assert.Equal(t, 4.0, lo)
	assert.Equal(t, 8.0, hi)
	assert.Equal(t, [][]float64{{-1, 0}, {0, -1}, {1, 1}}, out)
}

func TestAllSentinelColumn(t *testing.T) {
	s := NewMinMaxScaler(WithSentinel(-1))
	out, err := s.FitTransform([][]float64{{-1}, {-1}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-1}, {-1}}, out)
}

func TestColumnHelpers(t *testing.T) {
	v := []float64{1, 2, 3}
	assert.Equal(t, [][]float64{{1}, {2}, {3}}, Column(v))
	assert.Equal(t, v, FromColumn(Column(v)))
}

func TestTransformEmpty(t *testing.T) {
	s := NewMinMaxScaler()
	require.NoError(t, s.Fit([][]float64{{1}}))
	out, err := s.Transform(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
