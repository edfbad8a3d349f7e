package api

import (
	"encoding/json"
	"math"

	"imprint/app"
	"imprint/domain/run"
)

// apiFloat encodes non-finite values as null. A calibrated threshold is +Inf
// for tiles where no null holds.
type apiFloat float64

func (f apiFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

type validationRowJSON struct {
	TileID     int      `json:"tile_id"`
	TieSum     int      `json:"tie_sum"`
	TieEst     apiFloat `json:"tie_est"`
	TieCPBound apiFloat `json:"tie_cp_bound"`
	TieBound   apiFloat `json:"tie_bound"`
	K          int      `json:"K"`
}

type calibrationRowJSON struct {
	TileID int      `json:"tile_id"`
	Lams   apiFloat `json:"lams"`
	Alpha0 apiFloat `json:"alpha0"`
	Idx    int      `json:"idx"`
	K      int      `json:"K"`
}

type summaryJSON struct {
	Count int      `json:"count"`
	Min   apiFloat `json:"min"`
	Max   apiFloat `json:"max"`
	Mean  apiFloat `json:"mean"`
	P50   apiFloat `json:"p50"`
	P95   apiFloat `json:"p95"`
}

type runResponse[R any] struct {
	Manifest *run.Manifest `json:"manifest"`
	Rows     []R           `json:"rows"`
	Summary  *summaryJSON  `json:"summary,omitempty"`
	Saved    bool          `json:"saved"`
}

func toSummaryJSON(s *app.Summary) *summaryJSON {
	if s == nil {
		return nil
	}
	return &summaryJSON{
		Count: s.Count,
		Min:   apiFloat(s.Min),
		Max:   apiFloat(s.Max),
		Mean:  apiFloat(s.Mean),
		P50:   apiFloat(s.P50),
		P95:   apiFloat(s.P95),
	}
}

func validationRunJSON(m *run.Manifest, t *run.ValidationTable, s *app.Summary, saved bool) runResponse[validationRowJSON] {
	rows := make([]validationRowJSON, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = validationRowJSON{
			TileID:     r.TileID,
			TieSum:     r.TieSum,
			TieEst:     apiFloat(r.TieEst),
			TieCPBound: apiFloat(r.TieCPBound),
			TieBound:   apiFloat(r.TieBound),
			K:          r.K,
		}
	}
	return runResponse[validationRowJSON]{Manifest: m, Rows: rows, Summary: toSummaryJSON(s), Saved: saved}
}

func calibrationRunJSON(m *run.Manifest, t *run.CalibrationTable, s *app.Summary, saved bool) runResponse[calibrationRowJSON] {
	rows := make([]calibrationRowJSON, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = calibrationRowJSON{
			TileID: r.TileID,
			Lams:   apiFloat(r.Lams),
			Alpha0: apiFloat(r.Alpha0),
			Idx:    r.Idx,
			K:      r.K,
		}
	}
	return runResponse[calibrationRowJSON]{Manifest: m, Rows: rows, Summary: toSummaryJSON(s), Saved: saved}
}
