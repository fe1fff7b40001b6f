package features

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func newSource(t *testing.T) *CSVSource {
	dir := t.TempDir()
	return &CSVSource{
		TrainPath: writeFile(t, dir, "train.csv",
			"id,price,sale_quantity,year_lag_1,year_lag_2,month_lag_1,month_lag_2,month_lag_3",
			"a,1.5,10,3,4,,5,6",
			"b,2.5,20,NA,7,8,9,10",
		),
		TestPath: writeFile(t, dir, "test.csv",
			"id,price,year_lag_1,year_lag_2,month_lag_1,month_lag_2,month_lag_3",
			"c,3.5,1,2,3,4,5",
		),
		TargetCol:   "sale_quantity",
		YearPrefix:  "year_lag_",
		MonthPrefix: "month_lag_",
		Ignore:      []string{"id"},
		Sentinel:    -1,
	}
}

func TestCSVSourceLoadTrain(t *testing.T) {
	src := newSource(t)

	train, err := src.LoadTrain(2, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, train.Len())
	assert.Equal(t, []float64{10, 20}, train.Target)
	assert.Equal(t, [][]float64{{1.5}, {2.5}}, train.Dense)
	assert.Equal(t, [][]float64{{3, 4}, {-1, 7}}, train.Year)
	assert.Equal(t, [][]float64{{-1, 5, 6}, {8, 9, 10}}, train.Month)
}

func TestCSVSourceLoadTest(t *testing.T) {
	src := newSource(t)

	test, err := src.LoadTest(2, 3)
	require.NoError(t, err)

	assert.Equal(t, 1, test.Len())
	assert.Equal(t, [][]float64{{3.5}}, test.Dense)
	assert.Equal(t, [][]float64{{1, 2}}, test.Year)
	assert.Equal(t, [][]float64{{3, 4, 5}}, test.Month)
}

func TestCSVSourceLookbackMustDivideColumns(t *testing.T) {
	src := newSource(t)

	_, err := src.LoadTrain(2, 2)
	assert.ErrorIs(t, err, ErrShape)
}

func TestCSVSourceMissingTarget(t *testing.T) {
	src := newSource(t)
	src.TargetCol = "quantity"

	_, err := src.LoadTrain(2, 3)
	assert.ErrorIs(t, err, ErrColumn)
}

func TestCSVSourceMissingDenseValue(t *testing.T) {
	src := newSource(t)
	src.TrainPath = writeFile(t, t.TempDir(), "train.csv",
		"price,sale_quantity,year_lag_1,month_lag_1",
		",10,3,4",
	)

	_, err := src.LoadTrain(1, 1)
	assert.ErrorIs(t, err, ErrColumn)
}

func TestCSVSourceTestColumnsMustMatch(t *testing.T) {
	src := newSource(t)
	src.TestPath = writeFile(t, t.TempDir(), "test.csv",
		"id,discount,year_lag_1,year_lag_2,month_lag_1,month_lag_2,month_lag_3",
		"c,3.5,1,2,3,4,5",
	)

	_, err := src.LoadTest(2, 3)
	assert.ErrorIs(t, err, ErrShape)
}

func TestCSVSourcePaddedHeaders(t *testing.T) {
	src := newSource(t)
	src.TrainPath = writeFile(t, t.TempDir(), "train.csv",
		"\ufeffid, price ,sale_quantity , year_lag_1,year_lag_2,month_lag_1,month_lag_2,month_lag_3",
		"a,1.5,10,3,4,,5,6",
	)

	train, err := src.LoadTrain(2, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, train.Target)
	assert.Equal(t, [][]float64{{1.5}}, train.Dense)

	_, err = src.LoadTest(2, 3)
	assert.NoError(t, err)
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := newSource(t)
	src.TrainPath = filepath.Join(t.TempDir(), "nope.csv")

	_, err := src.LoadTrain(2, 3)
	assert.Error(t, err)
}

func TestReshapePreservesElements(t *testing.T) {
	flat := [][]float64{
		{1, 2, 3, 4, 5, 6},
		{7, 8, 9, 10, 11, 12},
	}

	seq, err := Reshape(flat, 3)
	require.NoError(t, err)

	require.Len(t, seq, 2)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, seq[0])

	var total int
	for _, s := range seq {
		for _, step := range s {
			total += len(step)
		}
	}
	assert.Equal(t, 12, total)

	seq[0][0][0] = 99
	assert.Equal(t, 1.0, flat[0][0])
}

func TestReshapeErrors(t *testing.T) {
	_, err := Reshape([][]float64{{1, 2, 3}}, 2)
	assert.ErrorIs(t, err, ErrShape)

	_, err = Reshape([][]float64{{1, 2}, {1}}, 2)
	assert.ErrorIs(t, err, ErrShape)

	_, err = Reshape([][]float64{{1}}, 0)
	assert.ErrorIs(t, err, ErrShape)
}

func TestMemorySource(t *testing.T) {
	src := &MemorySource{
		Train: &TrainSet{
			Target: []float64{1},
			Dense:  [][]float64{{1}},
			Year:   [][]float64{{1, 2}},
			Month:  [][]float64{{1, 2, 3}},
		},
		Test: &TestSet{
			Dense: [][]float64{{1}},
			Year:  [][]float64{{1, 2}},
			Month: [][]float64{{1, 2, 3}},
		},
	}

	_, err := src.LoadTrain(2, 3)
	require.NoError(t, err)
	_, err = src.LoadTest(2, 3)
	require.NoError(t, err)

	_, err = src.LoadTrain(2, 2)
	assert.ErrorIs(t, err, ErrShape)
}

func TestTrainSetValidate(t *testing.T) {
	set := &TrainSet{Target: []float64{1, 2}, Dense: [][]float64{{1}}}
	assert.ErrorIs(t, set.Validate(), ErrShape)
}
