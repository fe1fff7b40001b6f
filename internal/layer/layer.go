// Package layer provides the neural network layers used by the forecaster:
// fully connected projections, timestep masking and a masked LSTM encoder.
package layer

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/lstmsales/internal/activations"
)

// Layer is the parameter-owning part shared by every layer.
//
// Parameters live in one flat slice per layer. Bind moves them (and their
// gradient accumulators) into caller-provided storage so a model can expose
// all of its weights to the optimizer as a single contiguous vector.
type Layer interface {
	Name() string
	InSize() int
	OutSize() int
	NumParams() int
	Bind(params, grads []float64)
	ClearGradients()
}

// Dense is a fully connected layer.
// Weights are stored row-major: weight for output o, input i is at w[o*in+i].
type Dense struct {
	name    string
	inSize  int
	outSize int
	act     activations.Activation

	params []float64
	grads  []float64
	w, b   []float64
	gw, gb []float64

	inputBuf  []float64
	preActBuf []float64
	outputBuf []float64
	dzBuf     []float64
	gradInBuf []float64
}

// NewDense creates a dense layer with Glorot-uniform weights and zero biases.
func NewDense(name string, in, out int, act activations.Activation, rng *rand.Rand) *Dense {
	if act == nil {
		act = activations.Linear{}
	}
	d := &Dense{
		name:      name,
		inSize:    in,
		outSize:   out,
		act:       act,
		inputBuf:  make([]float64, in),
		preActBuf: make([]float64, out),
		outputBuf: make([]float64, out),
		dzBuf:     make([]float64, out),
		gradInBuf: make([]float64, in),
	}
	d.Bind(make([]float64, d.NumParams()), make([]float64, d.NumParams()))

	limit := math.Sqrt(6.0 / float64(in+out))
	for i := range d.w {
		d.w[i] = rng.Float64()*2*limit - limit
	}
	return d
}

// Forward computes act(Wx + b). The returned slice is reused between calls.
func (d *Dense) Forward(x []float64) []float64 {
	if len(x) != d.inSize {
		panic("Dense: input size mismatch")
	}
	copy(d.inputBuf, x)

	for o := 0; o < d.outSize; o++ {
		row := d.w[o*d.inSize : (o+1)*d.inSize]
		z := d.b[o] + floats.Dot(row, d.inputBuf)
		d.preActBuf[o] = z
		d.outputBuf[o] = d.act.Activate(z)
	}
	return d.outputBuf
}

// Backward accumulates weight and bias gradients for the last Forward call
// and returns the gradient w.r.t. the input.
func (d *Dense) Backward(grad []float64) []float64 {
	for o := 0; o < d.outSize; o++ {
		d.dzBuf[o] = grad[o] * d.act.Derivative(d.preActBuf[o])
	}

	for i := range d.gradInBuf {
		d.gradInBuf[i] = 0
	}
	for o, dz := range d.dzBuf {
		if dz == 0 {
			continue
		}
		d.gb[o] += dz
		lo, hi := o*d.inSize, (o+1)*d.inSize
		floats.AddScaled(d.gw[lo:hi], dz, d.inputBuf)
		floats.AddScaled(d.gradInBuf, dz, d.w[lo:hi])
	}
	return d.gradInBuf
}

// Bind adopts params and grads as backing storage, copying current values.
func (d *Dense) Bind(params, grads []float64) {
	if len(params) != d.NumParams() || len(grads) != d.NumParams() {
		panic("Dense: bind size mismatch")
	}
	if d.params != nil {
		copy(params, d.params)
		copy(grads, d.grads)
	}
	nw := d.inSize * d.outSize
	d.params, d.grads = params, grads
	d.w, d.b = params[:nw], params[nw:]
	d.gw, d.gb = grads[:nw], grads[nw:]
}

// ClearGradients zeroes the accumulated gradients.
func (d *Dense) ClearGradients() {
	for i := range d.grads {
		d.grads[i] = 0
	}
}

// Params returns the live parameter slice (weights then biases).
func (d *Dense) Params() []float64 { return d.params }

// Gradients returns the live gradient slice.
func (d *Dense) Gradients() []float64 { return d.grads }

// Name returns the layer name used in summaries.
func (d *Dense) Name() string { return d.name }

// InSize returns the input size of the layer.
func (d *Dense) InSize() int { return d.inSize }

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int { return d.outSize }

// NumParams returns out*in weights plus out biases.
func (d *Dense) NumParams() int { return d.outSize*d.inSize + d.outSize }
