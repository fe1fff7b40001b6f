package net

import (
	"fmt"
	"strings"
)

// Summary renders the layer table: name, type, output shape and parameter
// count, followed by the total.
func (m *Model) Summary() string {
	s := m.spec
	rows := []struct {
		name, kind, shape string
		params            int
	}{
		{"dense_input", "Input", fmt.Sprintf("(%d)", s.DenseSize), 0},
		{"year_seq_input", "Input", fmt.Sprintf("(%d, %d)", s.YearSteps, s.YearFeatures), 0},
		{"month_seq_input", "Input", fmt.Sprintf("(%d, %d)", s.MonthSteps, s.MonthFeatures), 0},
		{"year_seq_mask", "Masking", fmt.Sprintf("(%d, %d)", s.YearSteps, s.YearFeatures), 0},
		{"month_seq_mask", "Masking", fmt.Sprintf("(%d, %d)", s.MonthSteps, s.MonthFeatures), 0},
		{m.denseProj.Name(), "Dense", fmt.Sprintf("(%d)", m.denseProj.OutSize()), m.denseProj.NumParams()},
		{m.yearSeq.Name(), "LSTM", fmt.Sprintf("(%d)", m.yearSeq.OutSize()), m.yearSeq.NumParams()},
		{m.monthSeq.Name(), "LSTM", fmt.Sprintf("(%d)", m.monthSeq.OutSize()), m.monthSeq.NumParams()},
		{"final_merge", "Concatenate", fmt.Sprintf("(%d)", 3*s.SeqSize), 0},
		{m.hidden.Name(), "Dense", fmt.Sprintf("(%d)", m.hidden.OutSize()), m.hidden.NumParams()},
		{m.output.Name(), "Dense", fmt.Sprintf("(%d)", m.output.OutSize()), m.output.NumParams()},
	}

	var b strings.Builder
	rule := strings.Repeat("_", 65)
	fmt.Fprintln(&b, "Model: sales_lstm")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%-25s %-20s %-10s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(&b, strings.Repeat("=", 65))
	for _, r := range rows {
		fmt.Fprintf(&b, "%-25s %-20s %-10d\n", fmt.Sprintf("%s (%s)", r.name, r.kind), r.shape, r.params)
	}
	fmt.Fprintln(&b, strings.Repeat("=", 65))
	fmt.Fprintf(&b, "Total params: %d\n", m.NumParams())
	fmt.Fprintf(&b, "Optimizer: %s (lr %g)\n", m.opt.Name(), s.LearningRate)
	fmt.Fprint(&b, rule)
	return b.String()
}
