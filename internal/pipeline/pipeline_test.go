package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/lstmsales/internal/config"
	"github.com/FlavioCFOliveira/lstmsales/internal/features"
	"github.com/FlavioCFOliveira/lstmsales/internal/metrics"
	"github.com/FlavioCFOliveira/lstmsales/internal/net"
	"github.com/FlavioCFOliveira/lstmsales/internal/submission"
)

func header(extra ...string) []string {
	cols := []string{"id", "price"}
	for i := 1; i <= 3; i++ {
		cols = append(cols, fmt.Sprintf("year_lag_%d", i))
	}
	for i := 1; i <= 6; i++ {
		cols = append(cols, fmt.Sprintf("month_lag_%d", i))
	}
	return append(cols, extra...)
}

func row(i int, withTarget bool) []string {
	rec := []string{fmt.Sprintf("r%d", i), fmt.Sprintf("%d.5", i%5)}
	for k := 1; k <= 3; k++ {
		if i%4 == 0 && k == 1 {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, fmt.Sprintf("%d", (i+k)%7))
	}
	for k := 1; k <= 6; k++ {
		rec = append(rec, fmt.Sprintf("%d", (i*k)%9))
	}
	if withTarget {
		rec = append(rec, fmt.Sprintf("%d", 10+3*(i%5)))
	}
	return rec
}

func writeCSV(t *testing.T, path string, records [][]string) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(file)
	require.NoError(t, w.WriteAll(records))
	require.NoError(t, file.Close())
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()

	train := [][]string{header("sale_quantity")}
	for i := 0; i < 12; i++ {
		train = append(train, row(i, true))
	}
	test := [][]string{header()}
	template := [][]string{{"id", "predict_quantity"}}
	for i := 100; i < 104; i++ {
		test = append(test, row(i, false))
		template = append(template, []string{fmt.Sprintf("r%d", i), ""})
	}

	cfg := config.Default()
	cfg.TrainPath = filepath.Join(dir, "train.csv")
	cfg.TestPath = filepath.Join(dir, "test.csv")
	cfg.TemplatePath = filepath.Join(dir, "template.csv")
	writeCSV(t, cfg.TrainPath, train)
	writeCSV(t, cfg.TestPath, test)
	writeCSV(t, cfg.TemplatePath, template)

	cfg.IgnoreColumns = []string{"id"}
	cfg.OutputDir = filepath.Join(dir, "sub")
	cfg.CVReport = filepath.Join(dir, "reports", "cv.csv")
	cfg.ModelOut = filepath.Join(dir, "models", "best.gob")
	cfg.HistoryPath = filepath.Join(dir, "history.csv")
	cfg.MetricsFile = filepath.Join(dir, "metrics", "lstmsales.prom")
	cfg.SeqSizes = []int{2}
	cfg.FinalDenseSizes = []int{2, 3}
	cfg.Folds = 3
	cfg.Jobs = 2
	cfg.Epochs = 3
	cfg.BatchSize = 4
	require.NoError(t, cfg.Validate())
	return &cfg
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	p := New(cfg, log, metrics.NewRecorder())
	p.Now = func() time.Time { return time.Date(2017, 12, 25, 9, 30, 0, 0, time.UTC) }

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.OutputDir, "lstm_y3m6_e3b4_12250930.csv"), res.SubmissionPath)
	assert.Len(t, res.Predictions, 4)
	assert.Len(t, res.Report.Results, 2)
	assert.Equal(t, 1, res.Report.Best.Rank)

	file, err := os.Open(res.SubmissionPath)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"id", "predict_quantity"}, records[0])
	for i, rec := range records[1:] {
		assert.Equal(t, fmt.Sprintf("r%d", 100+i), rec[0])
		assert.NotEmpty(t, rec[1])
	}

	for _, path := range []string{cfg.CVReport, cfg.HistoryPath, cfg.MetricsFile} {
		body, err := os.ReadFile(path)
		require.NoError(t, err, path)
		assert.NotEmpty(t, body, path)
	}
	model, err := net.Load(cfg.ModelOut)
	require.NoError(t, err)
	assert.Equal(t, res.Report.BestModel.Params(), model.Params())

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "submission written")
	assert.Contains(t, strings.Join(messages, "\n"), "Model: sales_lstm")
}

func TestRunDeterministic(t *testing.T) {
	cfg := testConfig(t)
	cfg.CVReport, cfg.ModelOut, cfg.HistoryPath, cfg.MetricsFile = "", "", "", ""
	log, _ := test.NewNullLogger()

	first, err := New(cfg, log, nil).Run(context.Background())
	require.NoError(t, err)
	second, err := New(cfg, log, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Predictions, second.Predictions)
	assert.Equal(t, first.Report.Best.Params, second.Report.Best.Params)
}

func TestRunRowMismatch(t *testing.T) {
	cfg := testConfig(t)
	writeCSV(t, cfg.TemplatePath, [][]string{{"id", "predict_quantity"}, {"r100", ""}})
	log, _ := test.NewNullLogger()

	_, err := New(cfg, log, nil).Run(context.Background())
	assert.ErrorIs(t, err, submission.ErrRowMismatch)
}

func TestRunEmptyTest(t *testing.T) {
	cfg := testConfig(t)
	log, _ := test.NewNullLogger()
	p := &Pipeline{
		Config: cfg,
		Log:    log,
		Source: &features.MemorySource{
			Train: &features.TrainSet{
				Target: []float64{1, 2, 3},
				Dense:  [][]float64{{1}, {2}, {3}},
				Year:   [][]float64{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}},
				Month:  [][]float64{{1, 2, 3, 4, 5, 6}, {1, 2, 3, 4, 5, 6}, {1, 2, 3, 4, 5, 6}},
			},
			Test: &features.TestSet{},
		},
	}

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, features.ErrShape)
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	log, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg, log, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWithoutLogger(t *testing.T) {
	cfg := testConfig(t)
	cfg.CVReport, cfg.ModelOut, cfg.HistoryPath, cfg.MetricsFile = "", "", "", ""

	res, err := New(cfg, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Predictions, 4)

	p := &Pipeline{Config: cfg, Source: SourceFromConfig(cfg)}
	_, err = p.Run(context.Background())
	assert.NoError(t, err)
}

// Test features are only transformed, never fitted on, so changing them
// leaves the selected model untouched.
func TestTestFeaturesDoNotInfluenceTraining(t *testing.T) {
	cfg := testConfig(t)
	cfg.CVReport, cfg.ModelOut, cfg.HistoryPath, cfg.MetricsFile = "", "", "", ""
	log, _ := test.NewNullLogger()

	before, err := New(cfg, log, nil).Run(context.Background())
	require.NoError(t, err)

	file, err := os.Open(cfg.TestPath)
	require.NoError(t, err)
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.NoError(t, file.Close())
	for i := 1; i < len(records); i++ {
		records[i][1] = fmt.Sprintf("%d", 1000*i)
	}
	writeCSV(t, cfg.TestPath, records)

	after, err := New(cfg, log, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before.Report.BestModel.Params(), after.Report.BestModel.Params())
	assert.Equal(t, before.Report.Results, after.Report.Results)
	assert.NotEqual(t, before.Predictions, after.Predictions)
}
