package app

import (
	"github.com/montanaflynn/stats"

	"imprint/domain/core"
	"imprint/domain/run"
)

// Summary describes one result column.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// Summarize computes count, range, mean and percentiles of values.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, core.NewInvalidArgumentError("values", "cannot summarize an empty column")
	}
	data := stats.Float64Data(values)

	var s Summary
	var err error
	s.Count = data.Len()
	if s.Min, err = data.Min(); err != nil {
		return Summary{}, err
	}
	if s.Max, err = data.Max(); err != nil {
		return Summary{}, err
	}
	if s.Mean, err = data.Mean(); err != nil {
		return Summary{}, err
	}
	if s.P50, err = data.Median(); err != nil {
		return Summary{}, err
	}
	if s.P95, err = data.Percentile(95); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// SummarizeValidation summarizes the tile-wide bounds. Max is the headline
// number: the worst error bound anywhere on the grid.
func SummarizeValidation(t *run.ValidationTable) (Summary, error) {
	return Summarize(t.TieBounds())
}

// SummarizeCalibration summarizes calibrated thresholds. Min is the headline
// number: the threshold that controls error on every tile.
func SummarizeCalibration(t *run.CalibrationTable) (Summary, error) {
	return Summarize(t.Lams())
}
