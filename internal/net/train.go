package net

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// FitOptions controls a training run.
type FitOptions struct {
	Epochs    int
	BatchSize int
	// ClipNorm rescales the averaged batch gradient when its L2 norm exceeds
	// it. Zero disables clipping.
	ClipNorm  float64
	Callbacks []Callback
}

// History records the mean training loss of every completed epoch.
type History struct {
	Loss    []float64
	Stopped bool
}

// Fit trains on samples for opts.Epochs epochs of shuffled mini-batches.
// Gradients are averaged over each batch and applied in one optimizer step.
// Cancellation is checked between batches.
func (m *Model) Fit(ctx context.Context, samples []Sample, target []float64, opts FitOptions) (*History, error) {
	n := len(samples)
	if n == 0 || n != len(target) {
		return nil, fmt.Errorf("fit: %d samples for %d targets", n, len(target))
	}
	if opts.Epochs <= 0 || opts.BatchSize <= 0 {
		return nil, fmt.Errorf("fit: epochs and batch size must be positive")
	}

	m.SetTraining(true)
	defer m.SetTraining(false)

	for _, cb := range opts.Callbacks {
		cb.OnTrainBegin(m)
	}
	defer func() {
		for _, cb := range opts.Callbacks {
			cb.OnTrainEnd(m)
		}
	}()

	hist := &History{}
	pred := make([]float64, 1)
	truth := make([]float64, 1)
	grad := make([]float64, 1)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		order := m.rng.Perm(n)
		var epochLoss float64

		for start := 0; start < n; start += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			end := min(start+opts.BatchSize, n)

			m.ClearGradients()
			for _, idx := range order[start:end] {
				pred[0] = m.Forward(samples[idx])
				truth[0] = target[idx]
				epochLoss += m.loss.Forward(pred, truth)
				m.loss.Gradient(pred, truth, grad)
				m.Backward(grad[0])
			}

			floats.Scale(1/float64(end-start), m.grads)
			if opts.ClipNorm > 0 {
				if norm := floats.Norm(m.grads, 2); norm > opts.ClipNorm {
					floats.Scale(opts.ClipNorm/norm, m.grads)
				}
			}
			m.opt.StepInPlace(m.params, m.grads)
		}

		epochLoss /= float64(n)
		hist.Loss = append(hist.Loss, epochLoss)

		stop := false
		for _, cb := range opts.Callbacks {
			cb.OnEpochEnd(epoch, epochLoss, m)
			if s, ok := cb.(Stopper); ok && s.StopTraining() {
				stop = true
			}
		}
		if stop {
			hist.Stopped = true
			break
		}
	}
	return hist, nil
}
