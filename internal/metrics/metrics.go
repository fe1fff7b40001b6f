// Package metrics records run statistics in a private Prometheus registry
// and writes them out in the text exposition format for the node exporter
// textfile collector.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FlavioCFOliveira/lstmsales/internal/search"
)

const namespace = "lstmsales"

// Recorder implements search.Observer and tracks the final outputs.
type Recorder struct {
	registry *prometheus.Registry

	fitsTotal    *prometheus.CounterVec
	fitDuration  prometheus.Histogram
	cvMSE        *prometheus.GaugeVec
	bestCVMSE    prometheus.Gauge
	predictions  prometheus.Counter
	runTimestamp prometheus.Gauge
}

// NewRecorder registers every collector on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fits_total",
			Help:      "Model fits completed, by phase.",
		}, []string{"phase"}),
		fitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Wall time of one cross-validation fit and score.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10),
		}),
		cvMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cv_mse",
			Help:      "Mean cross-validated MSE of a grid point (scaled target).",
		}, []string{"seq_size", "final_dense_size"}),
		bestCVMSE: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_cv_mse",
			Help:      "Mean cross-validated MSE of the selected grid point.",
		}),
		predictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Test rows predicted.",
		}),
		runTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
	}
	r.registry.MustRegister(r.fitsTotal, r.fitDuration, r.cvMSE, r.bestCVMSE, r.predictions, r.runTimestamp)
	return r
}

// ObserveFold counts one cross-validation fit.
func (r *Recorder) ObserveFold(_ search.Params, _ int, _ float64, elapsed time.Duration) {
	r.fitsTotal.WithLabelValues("cv").Inc()
	r.fitDuration.Observe(elapsed.Seconds())
}

// ObserveResult publishes the mean score of a grid point.
func (r *Recorder) ObserveResult(res search.Result) {
	r.cvMSE.WithLabelValues(strconv.Itoa(res.SeqSize), strconv.Itoa(res.FinalDenseSize)).Set(res.MeanMSE)
	if res.Rank == 1 {
		r.bestCVMSE.Set(res.MeanMSE)
	}
}

// ObserveRefit counts the final refit.
func (r *Recorder) ObserveRefit() {
	r.fitsTotal.WithLabelValues("refit").Inc()
}

// ObservePredictions counts predicted rows.
func (r *Recorder) ObservePredictions(n int) {
	r.predictions.Add(float64(n))
}

// WriteTextfile stamps the finish time and writes the registry to path.
func (r *Recorder) WriteTextfile(path string, now time.Time) error {
	r.runTimestamp.Set(float64(now.Unix()))
	return prometheus.WriteToTextfile(path, r.registry)
}
