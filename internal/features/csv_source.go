package features

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CSVSource reads features from pre-engineered CSV files with a header row.
// Columns are routed by name: the target column, columns prefixed with
// YearPrefix and MonthPrefix (in file order) and, for everything that is
// not ignored, the dense feature vector.
type CSVSource struct {
	TrainPath   string
	TestPath    string
	TargetCol   string
	YearPrefix  string
	MonthPrefix string
	Ignore      []string
	// Sentinel fills empty or NA sequence cells.
	Sentinel float64
}

type columnLayout struct {
	target int
	dense  []int
	year   []int
	month  []int
	names  []string
}

func (s *CSVSource) layout(header []string, requireTarget bool) (*columnLayout, error) {
	ignored := make(map[string]bool, len(s.Ignore))
	for _, c := range s.Ignore {
		ignored[c] = true
	}
	l := &columnLayout{target: -1, names: header}
	for j, name := range header {
		name = headerName(name)
		switch {
		case ignored[name]:
		case name == s.TargetCol:
			l.target = j
		case s.YearPrefix != "" && strings.HasPrefix(name, s.YearPrefix):
			l.year = append(l.year, j)
		case s.MonthPrefix != "" && strings.HasPrefix(name, s.MonthPrefix):
			l.month = append(l.month, j)
		default:
			l.dense = append(l.dense, j)
		}
	}
	if requireTarget && l.target < 0 {
		return nil, fmt.Errorf("%w: target column %q not found", ErrColumn, s.TargetCol)
	}
	if len(l.dense) == 0 {
		return nil, fmt.Errorf("%w: no dense feature columns", ErrColumn)
	}
	return l, nil
}

func (l *columnLayout) check(lbYear, lbMon int) error {
	if len(l.year) == 0 || len(l.year)%lbYear != 0 {
		return fmt.Errorf("%w: %d year columns for lookback %d", ErrShape, len(l.year), lbYear)
	}
	if len(l.month) == 0 || len(l.month)%lbMon != 0 {
		return fmt.Errorf("%w: %d month columns for lookback %d", ErrShape, len(l.month), lbMon)
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s has no data rows", ErrColumn, path)
	}
	return records, nil
}

func (s *CSVSource) parse(v string, allowMissing bool) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "NA") || strings.EqualFold(v, "nan") {
		if allowMissing {
			return s.Sentinel, nil
		}
		return 0, fmt.Errorf("missing value")
	}
	return strconv.ParseFloat(v, 64)
}

func (s *CSVSource) pick(rec []string, cols []int, row int, names []string, allowMissing bool) ([]float64, error) {
	out := make([]float64, len(cols))
	for k, j := range cols {
		v, err := s.parse(rec[j], allowMissing)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d column %q: %v", ErrColumn, row, names[j], err)
		}
		out[k] = v
	}
	return out, nil
}

func (s *CSVSource) load(path string, withTarget bool, lbYear, lbMon int) (*columnLayout, *TrainSet, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}
	l, err := s.layout(records[0], withTarget)
	if err != nil {
		return nil, nil, err
	}
	if err := l.check(lbYear, lbMon); err != nil {
		return nil, nil, err
	}

	set := &TrainSet{}
	for i, rec := range records[1:] {
		row := i + 2
		if len(rec) != len(l.names) {
			return nil, nil, fmt.Errorf("%w: inconsistent number of columns at row %d", ErrShape, row)
		}
		dense, err := s.pick(rec, l.dense, row, l.names, false)
		if err != nil {
			return nil, nil, err
		}
		year, err := s.pick(rec, l.year, row, l.names, true)
		if err != nil {
			return nil, nil, err
		}
		month, err := s.pick(rec, l.month, row, l.names, true)
		if err != nil {
			return nil, nil, err
		}
		if withTarget {
			y, err := s.parse(rec[l.target], false)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: row %d target: %v", ErrColumn, row, err)
			}
			set.Target = append(set.Target, y)
		}
		set.Dense = append(set.Dense, dense)
		set.Year = append(set.Year, year)
		set.Month = append(set.Month, month)
	}
	return l, set, nil
}

// LoadTrain reads the training file.
func (s *CSVSource) LoadTrain(lbYear, lbMon int) (*TrainSet, error) {
	_, set, err := s.load(s.TrainPath, true, lbYear, lbMon)
	if err != nil {
		return nil, err
	}
	return set, set.Validate()
}

// LoadTest reads the test file. Its dense and sequence columns must match
// the training file by name and order.
func (s *CSVSource) LoadTest(lbYear, lbMon int) (*TestSet, error) {
	testLayout, set, err := s.load(s.TestPath, false, lbYear, lbMon)
	if err != nil {
		return nil, err
	}

	trainRecords, err := readHeader(s.TrainPath)
	if err != nil {
		return nil, err
	}
	trainLayout, err := s.layout(trainRecords, true)
	if err != nil {
		return nil, err
	}
	for _, pair := range [][2][]int{
		{trainLayout.dense, testLayout.dense},
		{trainLayout.year, testLayout.year},
		{trainLayout.month, testLayout.month},
	} {
		if !sameNames(trainLayout.names, pair[0], testLayout.names, pair[1]) {
			return nil, fmt.Errorf("%w: test columns differ from training columns", ErrShape)
		}
	}

	test := &TestSet{Dense: set.Dense, Year: set.Year, Month: set.Month}
	return test, test.Validate()
}

func readHeader(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return header, nil
}

// headerName drops a UTF-8 byte order mark and surrounding spaces.
func headerName(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
}

func sameNames(a []string, ai []int, b []string, bi []int) bool {
	if len(ai) != len(bi) {
		return false
	}
	for k := range ai {
		if headerName(a[ai[k]]) != headerName(b[bi[k]]) {
			return false
		}
	}
	return true
}
