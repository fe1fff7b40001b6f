package net

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Callback observes a training run.
type Callback interface {
	OnTrainBegin(m *Model)
	OnTrainEnd(m *Model)
	OnEpochEnd(epoch int, loss float64, m *Model)
}

// Stopper is implemented by callbacks that can end training early.
type Stopper interface {
	StopTraining() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (BaseCallback) OnTrainBegin(*Model)             {}
func (BaseCallback) OnTrainEnd(*Model)               {}
func (BaseCallback) OnEpochEnd(int, float64, *Model) {}

// EarlyStopping stops training when the epoch loss has not improved by more
// than MinDelta for Patience consecutive epochs.
type EarlyStopping struct {
	BaseCallback
	Patience int
	MinDelta float64
	Log      logrus.FieldLogger

	bestLoss     float64
	numBadEpochs int
	stopped      bool
}

// NewEarlyStopping creates an EarlyStopping callback.
func NewEarlyStopping(patience int, minDelta float64, log logrus.FieldLogger) *EarlyStopping {
	return &EarlyStopping{
		Patience: patience,
		MinDelta: minDelta,
		Log:      log,
		bestLoss: math.Inf(1),
	}
}

// OnTrainBegin resets the callback so it can be reused across fits.
func (c *EarlyStopping) OnTrainBegin(*Model) {
	c.bestLoss = math.Inf(1)
	c.numBadEpochs = 0
	c.stopped = false
}

// OnEpochEnd tracks the best loss seen so far.
func (c *EarlyStopping) OnEpochEnd(epoch int, loss float64, _ *Model) {
	if loss < c.bestLoss-c.MinDelta {
		c.bestLoss = loss
		c.numBadEpochs = 0
		return
	}
	c.numBadEpochs++
	if c.numBadEpochs >= c.Patience {
		c.stopped = true
		if c.Log != nil {
			c.Log.WithFields(logrus.Fields{
				"epoch":    epoch,
				"loss":     loss,
				"patience": c.Patience,
			}).Info("early stopping")
		}
	}
}

// StopTraining reports whether patience ran out.
func (c *EarlyStopping) StopTraining() bool {
	return c.stopped
}

// Logger logs training progress every Interval epochs. Epochs are reported
// 1-based, as in the history CSV. A nil Log disables it.
type Logger struct {
	BaseCallback
	Log      logrus.FieldLogger
	Interval int
}

// OnEpochEnd logs the epoch loss.
func (c Logger) OnEpochEnd(epoch int, loss float64, _ *Model) {
	if c.Log == nil {
		return
	}
	if c.Interval > 0 && (epoch+1)%c.Interval == 0 {
		c.Log.WithFields(logrus.Fields{"epoch": epoch + 1, "loss": loss}).Debug("epoch done")
	}
}
