// Package loss provides the regression loss the forecaster trains on.
package loss

// Loss scores predictions against targets and writes dL/dpred.
//
// The model has one output, so training calls both methods with
// one-element slices per sample; cross-validation scores whole folds.
type Loss interface {
	Forward(yPred, yTrue []float64) float64
	Gradient(yPred, yTrue, grad []float64)
}

// MSE is the mean squared error.
type MSE struct{}

// Forward returns mean((yPred - yTrue)^2). Mismatched lengths panic.
func (MSE) Forward(yPred, yTrue []float64) float64 {
	if len(yPred) != len(yTrue) {
		panic("MSE: prediction and target lengths differ")
	}
	var sum float64
	for i, p := range yPred {
		d := p - yTrue[i]
		sum += d * d
	}
	return sum / float64(len(yPred))
}

// Gradient stores 2/n * (yPred - yTrue) in grad without allocating.
func (MSE) Gradient(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("MSE: prediction, target and gradient lengths differ")
	}
	scale := 2 / float64(n)
	for i, p := range yPred {
		grad[i] = scale * (p - yTrue[i])
	}
}

// MeanSquaredError is the cross-validation scorer; lower is better. An
// empty fold scores 0.
func MeanSquaredError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	return MSE{}.Forward(yPred, yTrue)
}
