package search

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes one row per grid point: parameters, mean and std of the
// fold scores, rank and every fold score.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"seq_size", "final_dense_size", "mean_mse", "std_mse", "rank"}
	if len(r.Results) > 0 {
		for f := range r.Results[0].FoldScores {
			header = append(header, fmt.Sprintf("fold_%d", f+1))
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'g', 8, 64) }
	for _, res := range r.Results {
		row := []string{
			strconv.Itoa(res.SeqSize),
			strconv.Itoa(res.FinalDenseSize),
			format(res.MeanMSE),
			format(res.StdMSE),
			strconv.Itoa(res.Rank),
		}
		for _, s := range res.FoldScores {
			row = append(row, format(s))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
