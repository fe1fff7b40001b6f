// Package scale implements per-column min-max normalisation to [0, 1].
//
// A scaler is fit once on training rows and then reused, unchanged, for any
// other rows. Fit and Transform are separate calls so test data can never
// influence the fitted ranges.
package scale

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNotFitted is returned when transforming with an unfitted scaler.
	ErrNotFitted = errors.New("scaler is not fitted")
	// ErrShape is returned for empty or ragged input, or a column count that
	// differs from the fitted one.
	ErrShape = errors.New("scaler input has wrong shape")
)

// MinMaxScaler rescales each column linearly so the fitted minimum maps to 0
// and the fitted maximum to 1.
type MinMaxScaler struct {
	min    []float64
	scale  []float64
	fitted bool

	sentinel    float64
	hasSentinel bool
}

// Option configures a MinMaxScaler.
type Option func(*MinMaxScaler)

// WithSentinel excludes cells equal to v from fitting and passes them
// through Transform and InverseTransform unchanged.
func WithSentinel(v float64) Option {
	return func(s *MinMaxScaler) {
		s.sentinel = v
		s.hasSentinel = true
	}
}

// NewMinMaxScaler returns an unfitted scaler.
func NewMinMaxScaler(opts ...Option) *MinMaxScaler {
	s := &MinMaxScaler{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MinMaxScaler) skip(v float64) bool {
	return s.hasSentinel && v == s.sentinel
}

func width(rows [][]float64) (int, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, fmt.Errorf("%w: no data", ErrShape)
	}
	w := len(rows[0])
	for i, r := range rows {
		if len(r) != w {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(r), w)
		}
	}
	return w, nil
}

// Fit computes per-column ranges from rows. Refitting replaces the ranges.
func (s *MinMaxScaler) Fit(rows [][]float64) error {
	w, err := width(rows)
	if err != nil {
		return err
	}

	s.min = make([]float64, w)
	s.scale = make([]float64, w)
	col := make([]float64, 0, len(rows))
	for j := 0; j < w; j++ {
		col = col[:0]
		for _, r := range rows {
			if !s.skip(r[j]) {
				col = append(col, r[j])
			}
		}
		if len(col) == 0 {
			s.min[j], s.scale[j] = 0, 1
			continue
		}
		lo, hi := floats.Min(col), floats.Max(col)
		s.min[j] = lo
		s.scale[j] = hi - lo
		if s.scale[j] == 0 {
			s.scale[j] = 1
		}
	}
	s.fitted = true
	return nil
}

func (s *MinMaxScaler) apply(rows [][]float64, f func(v float64, j int) float64) ([][]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	if len(rows) == 0 {
		return [][]float64{}, nil
	}
	w, err := width(rows)
	if err != nil {
		return nil, err
	}
	if w != len(s.min) {
		return nil, fmt.Errorf("%w: got %d columns, fitted on %d", ErrShape, w, len(s.min))
	}

	out := make([][]float64, len(rows))
	for i, r := range rows {
		o := make([]float64, w)
		for j, v := range r {
			if s.skip(v) {
				o[j] = v
				continue
			}
			o[j] = f(v, j)
		}
		out[i] = o
	}
	return out, nil
}

// Transform returns scaled copies of rows using the fitted ranges. Values
// outside the fitted range land outside [0, 1]; nothing is clipped.
func (s *MinMaxScaler) Transform(rows [][]float64) ([][]float64, error) {
	return s.apply(rows, func(v float64, j int) float64 {
		return (v - s.min[j]) / s.scale[j]
	})
}

// InverseTransform maps scaled rows back to the original units.
func (s *MinMaxScaler) InverseTransform(rows [][]float64) ([][]float64, error) {
	return s.apply(rows, func(v float64, j int) float64 {
		return v*s.scale[j] + s.min[j]
	})
}

// FitTransform fits on rows and returns them scaled.
func (s *MinMaxScaler) FitTransform(rows [][]float64) ([][]float64, error) {
	if err := s.Fit(rows); err != nil {
		return nil, err
	}
	return s.Transform(rows)
}

// Fitted reports whether Fit has succeeded.
func (s *MinMaxScaler) Fitted() bool {
	return s.fitted
}

// NumFeatures returns the fitted column count.
func (s *MinMaxScaler) NumFeatures() int {
	return len(s.min)
}

// Range returns the fitted minimum and maximum of column j.
func (s *MinMaxScaler) Range(j int) (lo, hi float64) {
	return s.min[j], s.min[j] + s.scale[j]
}

// Column turns a vector into a one-column matrix.
func Column(v []float64) [][]float64 {
	rows := make([][]float64, len(v))
	for i, x := range v {
		rows[i] = []float64{x}
	}
	return rows
}

// FromColumn is the inverse of Column.
func FromColumn(rows [][]float64) []float64 {
	v := make([]float64, len(rows))
	for i, r := range rows {
		v[i] = r[0]
	}
	return v
}
