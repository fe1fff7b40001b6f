// Package activations provides the element-wise activation functions used
// by the dense projections and the LSTM gates.
package activations

import "math"

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) from the pre-activation x.
	Derivative(x float64) float64
}

// Linear is the identity activation. Dense layers in the forecaster use it
// for every projection.
type Linear struct{}

// Activate returns x unchanged.
func (Linear) Activate(x float64) float64 { return x }

// Derivative is always 1.
func (Linear) Derivative(float64) float64 { return 1 }

// Sigmoid activation function.
type Sigmoid struct{}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Activate computes sigmoid(x)
func (Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (Sigmoid) Derivative(x float64) float64 {
	s := sigmoid(x)
	return s * (1 - s)
}

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (Tanh) Derivative(x float64) float64 {
	t := math.Tanh(x)
	return 1 - t*t
}
