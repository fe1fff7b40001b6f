// Package submission writes predictions into a copy of a submission
// template.
package submission

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRowMismatch is returned when the template and the predictions
	// disagree on the number of rows.
	ErrRowMismatch = errors.New("template rows do not match predictions")
	// ErrColumn is returned when the prediction column is missing.
	ErrColumn = errors.New("prediction column not found in template")
)

// RunInfo carries the run parameters encoded in the output file name.
type RunInfo struct {
	YearLookback  int
	MonthLookback int
	Epochs        int
	BatchSize     int
	Time          time.Time
}

// FileName returns lstm_y{Y}m{M}_e{E}b{B}_{MMDDHHMM}.csv.
func (r RunInfo) FileName() string {
	return fmt.Sprintf("lstm_y%dm%d_e%db%d_%s.csv",
		r.YearLookback, r.MonthLookback, r.Epochs, r.BatchSize, r.Time.Format("01021504"))
}

// Writer copies a template and overwrites its prediction column.
type Writer struct {
	TemplatePath string
	Column       string
	OutputDir    string
}

// headerName drops a UTF-8 byte order mark and surrounding spaces.
func headerName(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
}

// Write writes predictions and returns the path of the new file. The
// template header and every other column are copied unchanged.
func (w *Writer) Write(predictions []float64, info RunInfo) (string, error) {
	records, err := readTemplate(w.TemplatePath)
	if err != nil {
		return "", err
	}

	col := -1
	for j, name := range records[0] {
		if headerName(name) == headerName(w.Column) {
			col = j
			break
		}
	}
	if col < 0 {
		return "", fmt.Errorf("%w: %q in %s", ErrColumn, w.Column, w.TemplatePath)
	}
	if rows := len(records) - 1; rows != len(predictions) {
		return "", fmt.Errorf("%w: template has %d rows, got %d predictions", ErrRowMismatch, rows, len(predictions))
	}

	for i, p := range predictions {
		records[i+1][col] = strconv.FormatFloat(p, 'f', -1, 64)
	}

	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(w.OutputDir, info.FileName())
	if err := writeCSV(path, records); err != nil {
		return "", err
	}
	return path, nil
}

func readTemplate(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("template %s is empty", path)
	}
	return records, nil
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	cw := csv.NewWriter(file)
	if err := cw.WriteAll(records); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
