// Package net assembles the three-branch forecasting network and trains it.
//
// The graph is:
//
//	dense_input  -> Dense(seq_size)                 -+
//	year_input   -> Masking -> LSTM(seq_size)        +-> concat -> Dense(final_dense_size) -> Dense(1)
//	month_input  -> Masking -> LSTM(seq_size)       -+
//
// All parameters live in one flat vector so a single optimizer instance
// updates the whole model.
package net

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/FlavioCFOliveira/lstmsales/internal/activations"
	"github.com/FlavioCFOliveira/lstmsales/internal/layer"
	"github.com/FlavioCFOliveira/lstmsales/internal/loss"
	"github.com/FlavioCFOliveira/lstmsales/internal/opt"
)

// ErrSpec is returned for an invalid model Spec.
var ErrSpec = errors.New("invalid model spec")

// Spec describes the model shape and its training hyperparameters.
type Spec struct {
	DenseSize     int // width of the tabular feature vector
	YearSteps     int
	YearFeatures  int
	MonthSteps    int
	MonthFeatures int

	SeqSize        int
	FinalDenseSize int

	Dropout          float64
	RecurrentDropout float64
	MaskValue        float64

	Optimizer    string
	LearningRate float64
	Seed         int64
}

// Validate checks that every size is positive, dropout is in [0, 1) and
// the optimizer is known.
func (s Spec) Validate() error {
	sizes := []struct {
		name string
		v    int
	}{
		{"dense size", s.DenseSize},
		{"year steps", s.YearSteps},
		{"year features", s.YearFeatures},
		{"month steps", s.MonthSteps},
		{"month features", s.MonthFeatures},
		{"seq size", s.SeqSize},
		{"final dense size", s.FinalDenseSize},
	}
	for _, sz := range sizes {
		if sz.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrSpec, sz.name, sz.v)
		}
	}
	if s.Dropout < 0 || s.Dropout >= 1 || s.RecurrentDropout < 0 || s.RecurrentDropout >= 1 {
		return fmt.Errorf("%w: dropout must be in [0, 1)", ErrSpec)
	}
	if s.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate must be positive", ErrSpec)
	}
	if _, err := opt.New(s.Optimizer, s.LearningRate); err != nil {
		return fmt.Errorf("%w: %w", ErrSpec, err)
	}
	return nil
}

// Sample is one model input: a dense vector and two [steps][features]
// sequences.
type Sample struct {
	Dense []float64
	Year  [][]float64
	Month [][]float64
}

// Model is the multi-input forecasting network.
type Model struct {
	spec Spec

	denseProj *layer.Dense
	yearMask  layer.Masking
	yearSeq   *layer.LSTM
	monthMask layer.Masking
	monthSeq  *layer.LSTM
	hidden    *layer.Dense
	output    *layer.Dense
	layers    []layer.Layer

	params []float64
	grads  []float64

	loss loss.Loss
	opt  opt.Optimizer
	rng  *rand.Rand

	concatBuf []float64
	outGrad   []float64
	training  bool
}

// Build creates a freshly initialised model. Two models built from equal
// specs have identical weights.
func Build(spec Spec) (*Model, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	optimizer, err := opt.New(spec.Optimizer, spec.LearningRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpec, err)
	}
	rng := rand.New(rand.NewSource(spec.Seed))

	m := &Model{
		spec:      spec,
		denseProj: layer.NewDense("class_dense", spec.DenseSize, spec.SeqSize, activations.Linear{}, rng),
		yearMask:  layer.NewMasking(spec.MaskValue),
		yearSeq:   layer.NewLSTM("year_seq", spec.YearFeatures, spec.SeqSize, spec.Dropout, spec.RecurrentDropout, rng),
		monthMask: layer.NewMasking(spec.MaskValue),
		monthSeq:  layer.NewLSTM("month_seq", spec.MonthFeatures, spec.SeqSize, spec.Dropout, spec.RecurrentDropout, rng),
		hidden:    layer.NewDense("final_dense", 3*spec.SeqSize, spec.FinalDenseSize, activations.Linear{}, rng),
		output:    layer.NewDense("main_out", spec.FinalDenseSize, 1, activations.Linear{}, rng),
		loss:      loss.MSE{},
		opt:       optimizer,
		rng:       rng,
		concatBuf: make([]float64, 3*spec.SeqSize),
		outGrad:   make([]float64, 1),
	}
	m.layers = []layer.Layer{m.denseProj, m.yearSeq, m.monthSeq, m.hidden, m.output}
	m.bind()
	return m, nil
}

func (m *Model) bind() {
	total := 0
	for _, l := range m.layers {
		total += l.NumParams()
	}
	m.params = make([]float64, total)
	m.grads = make([]float64, total)
	off := 0
	for _, l := range m.layers {
		n := l.NumParams()
		l.Bind(m.params[off:off+n], m.grads[off:off+n])
		off += n
	}
}

// SetTraining toggles dropout in the recurrent branches.
func (m *Model) SetTraining(training bool) {
	m.training = training
	m.yearSeq.SetTraining(training)
	m.monthSeq.SetTraining(training)
}

// Forward computes the scalar prediction for one sample.
func (m *Model) Forward(s Sample) float64 {
	s0 := m.spec.SeqSize
	copy(m.concatBuf[:s0], m.denseProj.Forward(s.Dense))
	copy(m.concatBuf[s0:2*s0], m.yearSeq.Forward(s.Year, m.yearMask.Mask(s.Year)))
	copy(m.concatBuf[2*s0:], m.monthSeq.Forward(s.Month, m.monthMask.Mask(s.Month)))
	return m.output.Forward(m.hidden.Forward(m.concatBuf))[0]
}

// Backward propagates dL/dprediction for the last Forward call and
// accumulates parameter gradients.
func (m *Model) Backward(grad float64) {
	s0 := m.spec.SeqSize
	m.outGrad[0] = grad
	g := m.hidden.Backward(m.output.Backward(m.outGrad))
	m.denseProj.Backward(g[:s0])
	m.yearSeq.Backward(g[s0 : 2*s0])
	m.monthSeq.Backward(g[2*s0:])
}

// ClearGradients zeroes every accumulated gradient.
func (m *Model) ClearGradients() {
	for _, l := range m.layers {
		l.ClearGradients()
	}
}

// Predict returns one prediction per sample with dropout disabled.
func (m *Model) Predict(samples []Sample) []float64 {
	prev := m.training
	m.SetTraining(false)
	defer m.SetTraining(prev)

	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = m.Forward(s)
	}
	return out
}

// Evaluate returns the mean squared error over samples.
func (m *Model) Evaluate(samples []Sample, target []float64) float64 {
	return loss.MeanSquaredError(target, m.Predict(samples))
}

// Spec returns the shape and hyperparameters the model was built from.
func (m *Model) Spec() Spec { return m.spec }

// Params returns the live flat parameter vector.
func (m *Model) Params() []float64 { return m.params }

// Gradients returns the live flat gradient vector.
func (m *Model) Gradients() []float64 { return m.grads }

// NumParams returns the number of trainable parameters.
func (m *Model) NumParams() int { return len(m.params) }

// Layers returns the parameterised layers in binding order.
func (m *Model) Layers() []layer.Layer { return m.layers }
