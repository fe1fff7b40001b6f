package layer

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/lstmsales/internal/activations"
)

// Gate blocks inside the stacked weight matrices, in this order.
const (
	gateInput = iota
	gateForget
	gateCell
	gateOutput
	numGates
)

// lstmStep holds the activations of one timestep needed for BPTT.
type lstmStep struct {
	active bool
	x      []float64 // input after each gate's dropout; numGates*inSize
	hPrev  []float64 // previous hidden state after each gate's recurrent dropout; numGates*outSize
	cPrev  []float64
	gates  []float64 // i, f, g, o after activation; numGates*outSize
	c      []float64
	tanhC  []float64
}

// LSTM encodes a (possibly masked) sequence into its final hidden state.
//
// Masked timesteps are skipped: hidden and cell state are carried over
// unchanged, so the output is the state after the last unmasked step.
// Every gate has its own input and recurrent dropout mask, sampled once per
// sequence and only while training.
type LSTM struct {
	name    string
	inSize  int
	outSize int

	dropout          float64
	recurrentDropout float64
	training         bool
	rng              *rand.Rand

	gateAct activations.Activation
	cellAct activations.Activation

	// Layout: wx [numGates*out*in], wh [numGates*out*out], b [numGates*out]
	params       []float64
	grads        []float64
	wx, wh, b    []float64
	gwx, gwh, gb []float64

	steps  []lstmStep
	seqLen int
	xMask  []float64
	hMask  []float64
	h, c   []float64

	// backward scratch
	dz     []float64
	dh     []float64
	dc     []float64
	dxg    []float64 // per-gate input gradient before dropout
	dhg    []float64 // per-gate hidden gradient before dropout
	dInput [][]float64
}

// NewLSTM creates an LSTM with Glorot-uniform weights and a forget-gate
// bias of 1.
func NewLSTM(name string, inSize, outSize int, dropout, recurrentDropout float64, rng *rand.Rand) *LSTM {
	l := &LSTM{
		name:             name,
		inSize:           inSize,
		outSize:          outSize,
		dropout:          dropout,
		recurrentDropout: recurrentDropout,
		rng:              rand.New(rand.NewSource(rng.Int63())),
		gateAct:          activations.Sigmoid{},
		cellAct:          activations.Tanh{},
		xMask:            make([]float64, numGates*inSize),
		hMask:            make([]float64, numGates*outSize),
		h:                make([]float64, outSize),
		c:                make([]float64, outSize),
		dz:               make([]float64, numGates*outSize),
		dh:               make([]float64, outSize),
		dc:               make([]float64, outSize),
		dxg:              make([]float64, numGates*inSize),
		dhg:              make([]float64, numGates*outSize),
	}
	l.Bind(make([]float64, l.NumParams()), make([]float64, l.NumParams()))

	rows := numGates * outSize
	inLimit := math.Sqrt(6.0 / float64(inSize+rows))
	for i := range l.wx {
		l.wx[i] = rng.Float64()*2*inLimit - inLimit
	}
	recLimit := math.Sqrt(6.0 / float64(outSize+rows))
	for i := range l.wh {
		l.wh[i] = rng.Float64()*2*recLimit - recLimit
	}
	for i := gateForget * outSize; i < (gateForget+1)*outSize; i++ {
		l.b[i] = 1
	}
	return l
}

// SetTraining toggles dropout.
func (l *LSTM) SetTraining(training bool) {
	l.training = training
}

func (l *LSTM) sampleMask(mask []float64, p float64) {
	if !l.training || p <= 0 {
		for i := range mask {
			mask[i] = 1
		}
		return
	}
	keep := 1 / (1 - p)
	for i := range mask {
		if l.rng.Float64() < p {
			mask[i] = 0
		} else {
			mask[i] = keep
		}
	}
}

func (l *LSTM) ensureSteps(n int) {
	for len(l.steps) < n {
		l.steps = append(l.steps, lstmStep{
			x:     make([]float64, numGates*l.inSize),
			hPrev: make([]float64, numGates*l.outSize),
			cPrev: make([]float64, l.outSize),
			gates: make([]float64, numGates*l.outSize),
			c:     make([]float64, l.outSize),
			tanhC: make([]float64, l.outSize),
		})
		l.dInput = append(l.dInput, make([]float64, l.inSize))
	}
}

// Forward runs the sequence and returns the final hidden state.
// keep[t] == false skips timestep t; a nil keep processes every step.
// The returned slice is reused between calls.
func (l *LSTM) Forward(seq [][]float64, keep []bool) []float64 {
	T := len(seq)
	l.ensureSteps(T)
	l.sampleMask(l.xMask, l.dropout)
	l.sampleMask(l.hMask, l.recurrentDropout)

	for i := range l.h {
		l.h[i] = 0
		l.c[i] = 0
	}

	in, out := l.inSize, l.outSize
	for t := 0; t < T; t++ {
		st := &l.steps[t]
		st.active = keep == nil || keep[t]
		if !st.active {
			continue
		}
		if len(seq[t]) != in {
			panic("LSTM: input size mismatch")
		}
		for g := 0; g < numGates; g++ {
			floats.MulTo(st.x[g*in:(g+1)*in], seq[t], l.xMask[g*in:(g+1)*in])
			floats.MulTo(st.hPrev[g*out:(g+1)*out], l.h, l.hMask[g*out:(g+1)*out])
		}
		copy(st.cPrev, l.c)

		for r := 0; r < numGates*out; r++ {
			g := r / out
			z := l.b[r] +
				floats.Dot(l.wx[r*in:(r+1)*in], st.x[g*in:(g+1)*in]) +
				floats.Dot(l.wh[r*out:(r+1)*out], st.hPrev[g*out:(g+1)*out])
			if g == gateCell {
				st.gates[r] = l.cellAct.Activate(z)
			} else {
				st.gates[r] = l.gateAct.Activate(z)
			}
		}

		ig := st.gates[gateInput*out : (gateInput+1)*out]
		fg := st.gates[gateForget*out : (gateForget+1)*out]
		cg := st.gates[gateCell*out : (gateCell+1)*out]
		og := st.gates[gateOutput*out : (gateOutput+1)*out]
		for k := 0; k < out; k++ {
			st.c[k] = fg[k]*st.cPrev[k] + ig[k]*cg[k]
			st.tanhC[k] = math.Tanh(st.c[k])
			l.c[k] = st.c[k]
			l.h[k] = og[k] * st.tanhC[k]
		}
	}
	l.seqLen = T
	return l.h
}

// Backward propagates the gradient of the final hidden state through time,
// accumulating parameter gradients. It returns the gradient w.r.t. each
// input timestep; masked steps receive zeros. The result is reused between
// calls.
func (l *LSTM) Backward(grad []float64) [][]float64 {
	in, out := l.inSize, l.outSize
	copy(l.dh, grad)
	for k := range l.dc {
		l.dc[k] = 0
	}

	for t := l.seqLen - 1; t >= 0; t-- {
		dx := l.dInput[t]
		for i := range dx {
			dx[i] = 0
		}
		st := &l.steps[t]
		if !st.active {
			continue
		}

		ig := st.gates[gateInput*out : (gateInput+1)*out]
		fg := st.gates[gateForget*out : (gateForget+1)*out]
		cg := st.gates[gateCell*out : (gateCell+1)*out]
		og := st.gates[gateOutput*out : (gateOutput+1)*out]

		for k := 0; k < out; k++ {
			dc := l.dc[k] + l.dh[k]*og[k]*(1-st.tanhC[k]*st.tanhC[k])
			l.dz[gateInput*out+k] = dc * cg[k] * ig[k] * (1 - ig[k])
			l.dz[gateForget*out+k] = dc * st.cPrev[k] * fg[k] * (1 - fg[k])
			l.dz[gateCell*out+k] = dc * ig[k] * (1 - cg[k]*cg[k])
			l.dz[gateOutput*out+k] = l.dh[k] * st.tanhC[k] * og[k] * (1 - og[k])
			l.dc[k] = dc * fg[k]
		}

		for i := range l.dxg {
			l.dxg[i] = 0
		}
		for k := range l.dhg {
			l.dhg[k] = 0
		}
		for r, dz := range l.dz {
			if dz == 0 {
				continue
			}
			g := r / out
			l.gb[r] += dz
			floats.AddScaled(l.gwx[r*in:(r+1)*in], dz, st.x[g*in:(g+1)*in])
			floats.AddScaled(l.gwh[r*out:(r+1)*out], dz, st.hPrev[g*out:(g+1)*out])
			floats.AddScaled(l.dxg[g*in:(g+1)*in], dz, l.wx[r*in:(r+1)*in])
			floats.AddScaled(l.dhg[g*out:(g+1)*out], dz, l.wh[r*out:(r+1)*out])
		}

		for k := range l.dh {
			l.dh[k] = 0
		}
		for g := 0; g < numGates; g++ {
			xm, hm := l.xMask[g*in:(g+1)*in], l.hMask[g*out:(g+1)*out]
			for i, v := range l.dxg[g*in : (g+1)*in] {
				dx[i] += v * xm[i]
			}
			for k, v := range l.dhg[g*out : (g+1)*out] {
				l.dh[k] += v * hm[k]
			}
		}
	}
	return l.dInput[:l.seqLen]
}

// Bind adopts params and grads as backing storage, copying current values.
func (l *LSTM) Bind(params, grads []float64) {
	if len(params) != l.NumParams() || len(grads) != l.NumParams() {
		panic("LSTM: bind size mismatch")
	}
	if l.params != nil {
		copy(params, l.params)
		copy(grads, l.grads)
	}
	rows := numGates * l.outSize
	nx, nh := rows*l.inSize, rows*l.outSize
	l.params, l.grads = params, grads
	l.wx, l.wh, l.b = params[:nx], params[nx:nx+nh], params[nx+nh:]
	l.gwx, l.gwh, l.gb = grads[:nx], grads[nx:nx+nh], grads[nx+nh:]
}

// ClearGradients zeroes out the accumulated gradients.
func (l *LSTM) ClearGradients() {
	for i := range l.grads {
		l.grads[i] = 0
	}
}

// Params returns the live parameter slice.
func (l *LSTM) Params() []float64 { return l.params }

// Gradients returns the live gradient slice.
func (l *LSTM) Gradients() []float64 { return l.grads }

// Name returns the layer name used in summaries.
func (l *LSTM) Name() string { return l.name }

// InSize returns the number of features per timestep.
func (l *LSTM) InSize() int { return l.inSize }

// OutSize returns the hidden state width.
func (l *LSTM) OutSize() int { return l.outSize }

// NumParams returns the number of trainable parameters.
func (l *LSTM) NumParams() int {
	rows := numGates * l.outSize
	return rows*l.inSize + rows*l.outSize + rows
}

// Dropout returns the input and recurrent dropout rates.
func (l *LSTM) Dropout() (input, recurrent float64) {
	return l.dropout, l.recurrentDropout
}
