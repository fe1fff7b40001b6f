package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/lstmsales/internal/search"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	p := search.Params{SeqSize: 32, FinalDenseSize: 64}

	r.ObserveFold(p, 0, 0.1, 2*time.Second)
	r.ObserveFold(p, 1, 0.2, time.Second)
	r.ObserveResult(search.Result{Params: p, MeanMSE: 0.15, Rank: 1})
	r.ObserveResult(search.Result{Params: search.Params{SeqSize: 64, FinalDenseSize: 64}, MeanMSE: 0.3, Rank: 2})
	r.ObserveRefit()
	r.ObservePredictions(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fitsTotal.WithLabelValues("cv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fitsTotal.WithLabelValues("refit")))
	assert.Equal(t, 0.15, testutil.ToFloat64(r.bestCVMSE))
	assert.Equal(t, 0.3, testutil.ToFloat64(r.cvMSE.WithLabelValues("64", "64")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.predictions))

	n, err := testutil.GatherAndCount(r.registry, "lstmsales_cv_mse", "lstmsales_fit_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObservePredictions(3)

	path := filepath.Join(t.TempDir(), "lstmsales.prom")
	require.NoError(t, r.WriteTextfile(path, time.Unix(1700000000, 0)))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "lstmsales_predictions_total 3")
	assert.Contains(t, string(body), "lstmsales_last_run_timestamp_seconds 1.7e+09")
}
