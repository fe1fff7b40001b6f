// Package features loads the pre-engineered training and test features:
// a dense feature vector plus yearly and monthly lookback sequences per row.
package features

import (
	"errors"
	"fmt"
)

var (
	// ErrShape reports arrays whose widths do not fit the lookback windows
	// or whose rows disagree.
	ErrShape = errors.New("feature shape mismatch")
	// ErrColumn reports a missing or unparsable column.
	ErrColumn = errors.New("feature column error")
)

// TrainSet holds aligned training arrays. Year and Month rows are flat
// lookback*features vectors.
type TrainSet struct {
	Target []float64
	Dense  [][]float64
	Year   [][]float64
	Month  [][]float64
}

// TestSet holds aligned test arrays.
type TestSet struct {
	Dense [][]float64
	Year  [][]float64
	Month [][]float64
}

// Source supplies features for given lookback window sizes.
type Source interface {
	LoadTrain(lbYear, lbMon int) (*TrainSet, error)
	LoadTest(lbYear, lbMon int) (*TestSet, error)
}

// Len returns the number of training rows.
func (s *TrainSet) Len() int { return len(s.Target) }

// Len returns the number of test rows.
func (s *TestSet) Len() int { return len(s.Dense) }

// Validate checks row alignment across the arrays.
func (s *TrainSet) Validate() error {
	n := len(s.Target)
	if len(s.Dense) != n || len(s.Year) != n || len(s.Month) != n {
		return fmt.Errorf("%w: target %d, dense %d, year %d, month %d rows",
			ErrShape, n, len(s.Dense), len(s.Year), len(s.Month))
	}
	return nil
}

// Validate checks row alignment across the arrays.
func (s *TestSet) Validate() error {
	n := len(s.Dense)
	if len(s.Year) != n || len(s.Month) != n {
		return fmt.Errorf("%w: dense %d, year %d, month %d rows",
			ErrShape, n, len(s.Year), len(s.Month))
	}
	return nil
}

// Reshape turns flat rows of steps*F values into [rows][steps][F]. The
// result shares no memory with flat and holds exactly the same elements.
func Reshape(flat [][]float64, steps int) ([][][]float64, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("%w: lookback must be positive, got %d", ErrShape, steps)
	}
	out := make([][][]float64, len(flat))
	width := -1
	for i, row := range flat {
		if width < 0 {
			width = len(row)
			if width == 0 || width%steps != 0 {
				return nil, fmt.Errorf("%w: %d values do not split into %d steps", ErrShape, width, steps)
			}
		}
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(row), width)
		}
		f := width / steps
		seq := make([][]float64, steps)
		for t := range seq {
			seq[t] = append([]float64(nil), row[t*f:(t+1)*f]...)
		}
		out[i] = seq
	}
	return out, nil
}
