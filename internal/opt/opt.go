// Package opt provides optimization algorithms.
package opt

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknown is returned by New for an unsupported optimizer name.
var ErrUnknown = errors.New("unknown optimizer")

// Optimizer updates a flat parameter vector from its gradient vector.
// Stateful optimizers bind their state to the first vector they see, so one
// optimizer instance serves exactly one model.
type Optimizer interface {
	// StepInPlace updates params in-place from gradients.
	StepInPlace(params, gradients []float64)

	// Name identifies the optimizer in saved models and summaries.
	Name() string
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	LearningRate float64
}

// StepInPlace updates params in-place: params = params - lr * gradients
func (s SGD) StepInPlace(params, gradients []float64) {
	for i := range params {
		params[i] -= s.LearningRate * gradients[i]
	}
}

// Name returns "sgd".
func (SGD) Name() string { return "sgd" }

// Adam optimizer with bias-corrected first and second moment estimates.
type Adam struct {
	LearningRate float64
	Beta1        float64 // Exponential decay rate for first moment
	Beta2        float64 // Exponential decay rate for second moment
	Epsilon      float64 // Small constant for numerical stability

	m []float64
	v []float64
	t int
}

// NewAdam creates a new Adam optimizer with the usual defaults.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
	}
}

// StepInPlace applies one Adam update.
func (a *Adam) StepInPlace(params, gradients []float64) {
	if len(params) != len(gradients) {
		panic("Adam: params and gradients must have same length")
	}
	if a.m == nil {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
	}
	if len(a.m) != len(params) {
		panic("Adam: parameter vector changed size")
	}

	a.t++
	corr1 := 1 - math.Pow(a.Beta1, float64(a.t))
	corr2 := 1 - math.Pow(a.Beta2, float64(a.t))
	stepSize := a.LearningRate * math.Sqrt(corr2) / corr1

	for i, g := range gradients {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		params[i] -= stepSize * a.m[i] / (math.Sqrt(a.v[i]) + a.Epsilon)
	}
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int {
	return a.t
}

// Name returns "adam".
func (*Adam) Name() string { return "adam" }

// New returns a fresh optimizer by name: "adam" or "sgd".
func New(name string, learningRate float64) (Optimizer, error) {
	switch name {
	case "adam":
		return NewAdam(learningRate), nil
	case "sgd":
		return SGD{LearningRate: learningRate}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknown, name)
}
