// Package search runs an exhaustive hyperparameter grid search with k-fold
// cross-validation and refits the best configuration.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/lstmsales/internal/loss"
	"github.com/FlavioCFOliveira/lstmsales/internal/net"
)

var (
	// ErrFolds is returned when the fold count does not fit the data.
	ErrFolds = errors.New("invalid fold count")
	// ErrEmptyGrid is returned when the grid has no combinations.
	ErrEmptyGrid = errors.New("empty parameter grid")
)

// Params is one point of the grid.
type Params struct {
	SeqSize        int
	FinalDenseSize int
}

func (p Params) String() string {
	return fmt.Sprintf("seq_size=%d final_dense_size=%d", p.SeqSize, p.FinalDenseSize)
}

// Grid lists the candidate values of each hyperparameter.
type Grid struct {
	SeqSizes        []int
	FinalDenseSizes []int
}

// Combinations returns the Cartesian product, SeqSizes varying slowest.
func (g Grid) Combinations() []Params {
	out := make([]Params, 0, len(g.SeqSizes)*len(g.FinalDenseSizes))
	for _, s := range g.SeqSizes {
		for _, f := range g.FinalDenseSizes {
			out = append(out, Params{SeqSize: s, FinalDenseSize: f})
		}
	}
	return out
}

// Builder creates a fresh, untrained model for a grid point.
type Builder func(p Params) (*net.Model, error)

// Observer receives per-fold and per-configuration outcomes. It must be
// safe for concurrent use.
type Observer interface {
	ObserveFold(p Params, fold int, mse float64, elapsed time.Duration)
	ObserveResult(r Result)
}

// Options controls a search.
type Options struct {
	Folds int
	// Jobs bounds the number of concurrent fits; <= 0 uses every CPU.
	Jobs  int
	Refit bool
	// Fit is used for every cross-validation fit. Its callbacks must be
	// safe to share between goroutines.
	Fit net.FitOptions
	// RefitCallbacks are added only to the final refit.
	RefitCallbacks []net.Callback
	Log            logrus.FieldLogger
	Observer       Observer
}

// Result is the cross-validated score of one grid point.
type Result struct {
	Params
	FoldScores []float64
	MeanMSE    float64
	StdMSE     float64
	Rank       int
}

// Report is the outcome of a search.
type Report struct {
	Results   []Result // grid order
	Best      Result
	BestModel *net.Model
}

func subset(samples []net.Sample, target []float64, idx []int) ([]net.Sample, []float64) {
	s := make([]net.Sample, len(idx))
	y := make([]float64, len(idx))
	for k, i := range idx {
		s[k] = samples[i]
		y[k] = target[i]
	}
	return s, y
}

// Run evaluates every grid point on every fold, ranks the points by mean
// validation MSE (lower is better, ties keep grid order) and, if requested,
// refits the best point on all rows.
func Run(ctx context.Context, build Builder, grid Grid, samples []net.Sample, target []float64, opts Options) (*Report, error) {
	combos := grid.Combinations()
	if len(combos) == 0 {
		return nil, ErrEmptyGrid
	}
	folds, err := KFold(len(samples), opts.Folds)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	scores := make([][]float64, len(combos))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for ci, p := range combos {
		for fi, fold := range folds {
			ci, p, fi, fold := ci, p, fi, fold // per-iteration copies for go < 1.22 loop semantics
			g.Go(func() error {
				start := time.Now()
				model, err := build(p)
				if err != nil {
					return fmt.Errorf("build %s: %w", p, err)
				}
				trX, trY := subset(samples, target, fold.Train)
				vaX, vaY := subset(samples, target, fold.Valid)
				if _, err := model.Fit(gctx, trX, trY, opts.Fit); err != nil {
					return fmt.Errorf("fit %s fold %d: %w", p, fi+1, err)
				}
				mse := loss.MeanSquaredError(vaY, model.Predict(vaX))
				scores[ci][fi] = mse

				elapsed := time.Since(start)
				log.WithFields(logrus.Fields{
					"seq_size":         p.SeqSize,
					"final_dense_size": p.FinalDenseSize,
					"fold":             fi + 1,
					"mse":              mse,
					"elapsed":          elapsed.Round(time.Millisecond),
				}).Debug("fold scored")
				if opts.Observer != nil {
					opts.Observer.ObserveFold(p, fi, mse, elapsed)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{Results: make([]Result, len(combos))}
	for ci, p := range combos {
		mean, std := stat.PopMeanStdDev(scores[ci], nil)
		rep.Results[ci] = Result{
			Params:     p,
			FoldScores: scores[ci],
			MeanMSE:    mean,
			StdMSE:     std,
		}
	}
	rank(rep.Results)
	for _, r := range rep.Results {
		if r.Rank == 1 {
			rep.Best = r
		}
		if opts.Observer != nil {
			opts.Observer.ObserveResult(r)
		}
		log.WithFields(logrus.Fields{
			"seq_size":         r.SeqSize,
			"final_dense_size": r.FinalDenseSize,
			"mean_mse":         r.MeanMSE,
			"std_mse":          r.StdMSE,
			"rank":             r.Rank,
		}).Info("grid point evaluated")
	}

	if !opts.Refit {
		return rep, nil
	}

	model, err := build(rep.Best.Params)
	if err != nil {
		return nil, fmt.Errorf("build best %s: %w", rep.Best.Params, err)
	}
	refit := opts.Fit
	refit.Callbacks = append(append([]net.Callback(nil), opts.Fit.Callbacks...), opts.RefitCallbacks...)
	if _, err := model.Fit(ctx, samples, target, refit); err != nil {
		return nil, fmt.Errorf("refit %s: %w", rep.Best.Params, err)
	}
	rep.BestModel = model
	return rep, nil
}

// rank assigns 1-based ranks by ascending mean MSE; equal means keep grid
// order.
func rank(results []Result) {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].MeanMSE < results[order[b]].MeanMSE
	})
	for r, i := range order {
		results[i].Rank = r + 1
	}
}
