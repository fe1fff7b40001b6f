// Package pipeline wires the stages of a training run together: load,
// scale, reshape, search, refit, predict and export.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/lstmsales/internal/config"
	"github.com/FlavioCFOliveira/lstmsales/internal/features"
	"github.com/FlavioCFOliveira/lstmsales/internal/metrics"
	"github.com/FlavioCFOliveira/lstmsales/internal/net"
	"github.com/FlavioCFOliveira/lstmsales/internal/scale"
	"github.com/FlavioCFOliveira/lstmsales/internal/search"
	"github.com/FlavioCFOliveira/lstmsales/internal/submission"
)

// Pipeline runs one training job.
type Pipeline struct {
	Config *config.Config
	Source features.Source
	// Log defaults to a logger that discards everything.
	Log logrus.FieldLogger
	// Metrics is optional.
	Metrics *metrics.Recorder
	// Now stamps the submission file name; defaults to time.Now.
	Now func() time.Time
}

// Result summarises a finished run.
type Result struct {
	SubmissionPath string
	Report         *search.Report
	Predictions    []float64
}

// New returns a pipeline reading the CSV files named in cfg. A nil log
// discards output.
func New(cfg *config.Config, log logrus.FieldLogger, rec *metrics.Recorder) *Pipeline {
	if log == nil {
		log = discardLogger()
	}
	return &Pipeline{
		Config:  cfg,
		Source:  SourceFromConfig(cfg),
		Log:     log,
		Metrics: rec,
		Now:     time.Now,
	}
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// SourceFromConfig builds the CSV feature source described by cfg.
func SourceFromConfig(cfg *config.Config) *features.CSVSource {
	return &features.CSVSource{
		TrainPath:   cfg.TrainPath,
		TestPath:    cfg.TestPath,
		TargetCol:   cfg.TargetColumn,
		YearPrefix:  cfg.YearPrefix,
		MonthPrefix: cfg.MonthPrefix,
		Ignore:      cfg.IgnoreColumns,
		Sentinel:    cfg.MaskValue,
	}
}

// scalers holds the four independently fitted min-max scalers.
type scalers struct {
	dense, year, month, target *scale.MinMaxScaler
}

func newScalers(mask float64) *scalers {
	return &scalers{
		dense:  scale.NewMinMaxScaler(),
		year:   scale.NewMinMaxScaler(scale.WithSentinel(mask)),
		month:  scale.NewMinMaxScaler(scale.WithSentinel(mask)),
		target: scale.NewMinMaxScaler(),
	}
}

// inputs is a scaled and reshaped feature matrix.
type inputs struct {
	dense       [][]float64
	year, month [][][]float64
}

func (in *inputs) samples() []net.Sample {
	out := make([]net.Sample, len(in.dense))
	for i := range out {
		out[i] = net.Sample{Dense: in.dense[i], Year: in.year[i], Month: in.month[i]}
	}
	return out
}

// prepare scales dense, year and month with the given transform and
// reshapes each sequence with its own lookback.
func (p *Pipeline) prepare(dense, year, month [][]float64, tf func(*scale.MinMaxScaler, [][]float64) ([][]float64, error), sc *scalers) (*inputs, error) {
	var err error
	in := &inputs{}
	if in.dense, err = tf(sc.dense, dense); err != nil {
		return nil, fmt.Errorf("scale dense: %w", err)
	}
	yearScaled, err := tf(sc.year, year)
	if err != nil {
		return nil, fmt.Errorf("scale year: %w", err)
	}
	monthScaled, err := tf(sc.month, month)
	if err != nil {
		return nil, fmt.Errorf("scale month: %w", err)
	}
	if in.year, err = features.Reshape(yearScaled, p.Config.YearLookback); err != nil {
		return nil, fmt.Errorf("reshape year: %w", err)
	}
	if in.month, err = features.Reshape(monthScaled, p.Config.MonthLookback); err != nil {
		return nil, fmt.Errorf("reshape month: %w", err)
	}
	return in, nil
}

func fitTransform(s *scale.MinMaxScaler, rows [][]float64) ([][]float64, error) {
	return s.FitTransform(rows)
}

func transform(s *scale.MinMaxScaler, rows [][]float64) ([][]float64, error) {
	return s.Transform(rows)
}

// baseSpec derives the input shapes from the fitted scalers and the
// lookbacks.
func (p *Pipeline) baseSpec(sc *scalers) net.Spec {
	cfg := p.Config
	return net.Spec{
		DenseSize:        sc.dense.NumFeatures(),
		YearSteps:        cfg.YearLookback,
		YearFeatures:     sc.year.NumFeatures() / cfg.YearLookback,
		MonthSteps:       cfg.MonthLookback,
		MonthFeatures:    sc.month.NumFeatures() / cfg.MonthLookback,
		Dropout:          cfg.Dropout,
		RecurrentDropout: cfg.RecurrentDropout,
		MaskValue:        cfg.MaskValue,
		Optimizer:        cfg.Optimizer,
		LearningRate:     cfg.LearningRate,
		Seed:             cfg.Seed,
	}
}

func (p *Pipeline) refitCallbacks() []net.Callback {
	cfg := p.Config
	cbs := []net.Callback{net.Logger{Log: p.Log, Interval: cfg.LogInterval}}
	if cfg.Patience > 0 {
		cbs = append(cbs, net.NewEarlyStopping(cfg.Patience, cfg.MinDelta, p.Log))
	}
	if cfg.HistoryPath != "" {
		cbs = append(cbs, net.NewCSVLogger(cfg.HistoryPath, false, p.Log))
	}
	return cbs
}

// Run executes the whole job and returns where the submission was written.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.Config
	if p.Log == nil {
		p.Log = discardLogger()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	train, err := p.Source.LoadTrain(cfg.YearLookback, cfg.MonthLookback)
	if err != nil {
		return nil, fmt.Errorf("load train: %w", err)
	}
	test, err := p.Source.LoadTest(cfg.YearLookback, cfg.MonthLookback)
	if err != nil {
		return nil, fmt.Errorf("load test: %w", err)
	}
	if train.Len() == 0 || test.Len() == 0 {
		return nil, fmt.Errorf("%w: %d train rows, %d test rows", features.ErrShape, train.Len(), test.Len())
	}
	p.Log.WithFields(logrus.Fields{
		"train_rows": train.Len(),
		"test_rows":  test.Len(),
	}).Info("features loaded")

	sc := newScalers(cfg.MaskValue)
	trainIn, err := p.prepare(train.Dense, train.Year, train.Month, fitTransform, sc)
	if err != nil {
		return nil, err
	}
	testIn, err := p.prepare(test.Dense, test.Year, test.Month, transform, sc)
	if err != nil {
		return nil, err
	}
	targetScaled, err := sc.target.FitTransform(scale.Column(train.Target))
	if err != nil {
		return nil, fmt.Errorf("scale target: %w", err)
	}
	target := scale.FromColumn(targetScaled)

	base := p.baseSpec(sc)
	build := func(hp search.Params) (*net.Model, error) {
		spec := base
		spec.SeqSize = hp.SeqSize
		spec.FinalDenseSize = hp.FinalDenseSize
		return net.Build(spec)
	}

	opts := search.Options{
		Folds: cfg.Folds,
		Jobs:  cfg.Jobs,
		Refit: true,
		Fit: net.FitOptions{
			Epochs:    cfg.Epochs,
			BatchSize: cfg.BatchSize,
			ClipNorm:  cfg.ClipNorm,
		},
		RefitCallbacks: p.refitCallbacks(),
		Log:            p.Log,
	}
	if p.Metrics != nil {
		opts.Observer = p.Metrics
	}
	grid := search.Grid{SeqSizes: cfg.SeqSizes, FinalDenseSizes: cfg.FinalDenseSizes}

	start := time.Now()
	rep, err := search.Run(ctx, build, grid, trainIn.samples(), target, opts)
	if err != nil {
		return nil, fmt.Errorf("grid search: %w", err)
	}
	if p.Metrics != nil {
		p.Metrics.ObserveRefit()
	}
	p.Log.WithFields(logrus.Fields{
		"seq_size":         rep.Best.SeqSize,
		"final_dense_size": rep.Best.FinalDenseSize,
		"mean_mse":         rep.Best.MeanMSE,
		"elapsed":          time.Since(start).Round(time.Second),
	}).Info("best configuration refit")
	p.Log.Debug("model summary\n" + rep.BestModel.Summary())

	scaled := rep.BestModel.Predict(testIn.samples())
	restored, err := sc.target.InverseTransform(scale.Column(scaled))
	if err != nil {
		return nil, fmt.Errorf("inverse scale predictions: %w", err)
	}
	preds := scale.FromColumn(restored)
	if p.Metrics != nil {
		p.Metrics.ObservePredictions(len(preds))
	}

	w := &submission.Writer{
		TemplatePath: cfg.TemplatePath,
		Column:       cfg.PredictionColumn,
		OutputDir:    cfg.OutputDir,
	}
	path, err := w.Write(preds, submission.RunInfo{
		YearLookback:  cfg.YearLookback,
		MonthLookback: cfg.MonthLookback,
		Epochs:        cfg.Epochs,
		BatchSize:     cfg.BatchSize,
		Time:          now(),
	})
	if err != nil {
		return nil, fmt.Errorf("write submission: %w", err)
	}
	p.Log.WithField("file", path).Info("submission written")

	if err := p.writeArtifacts(rep, now()); err != nil {
		return nil, err
	}
	return &Result{SubmissionPath: path, Report: rep, Predictions: preds}, nil
}

// writeArtifacts writes the optional CV report, model file and metrics
// textfile.
func (p *Pipeline) writeArtifacts(rep *search.Report, now time.Time) error {
	cfg := p.Config
	if cfg.CVReport != "" {
		if err := writeReport(cfg.CVReport, rep); err != nil {
			return fmt.Errorf("write cv report: %w", err)
		}
		p.Log.WithField("file", cfg.CVReport).Info("cv report written")
	}
	if cfg.ModelOut != "" {
		if err := ensureDir(cfg.ModelOut); err != nil {
			return err
		}
		if err := rep.BestModel.Save(cfg.ModelOut); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
		p.Log.WithField("file", cfg.ModelOut).Info("model saved")
	}
	if cfg.MetricsFile != "" && p.Metrics != nil {
		if err := ensureDir(cfg.MetricsFile); err != nil {
			return err
		}
		if err := p.Metrics.WriteTextfile(cfg.MetricsFile, now); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}

func writeReport(path string, rep *search.Report) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := rep.WriteCSV(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
