package run

// ValidationRow is the per-tile output of a validation pass.
type ValidationRow struct {
	TileID     int     `json:"tile_id" db:"tile_id"`
	TieSum     int     `json:"tie_sum" db:"tie_sum"`
	TieEst     float64 `json:"tie_est" db:"tie_est"`
	TieCPBound float64 `json:"tie_cp_bound" db:"tie_cp_bound"`
	TieBound   float64 `json:"tie_bound" db:"tie_bound"`
	K          int     `json:"K" db:"k"`
}

// CalibrationRow is the per-tile output of a calibration pass.
type CalibrationRow struct {
	TileID int     `json:"tile_id" db:"tile_id"`
	Lams   float64 `json:"lams" db:"lams"`
	Alpha0 float64 `json:"alpha0" db:"alpha0"`
	Idx    int     `json:"idx" db:"idx"`
	K      int     `json:"K" db:"k"`
}

// ValidationTable holds one row per simulated tile in input order.
type ValidationTable struct {
	Rows []ValidationRow `json:"rows"`
}

// CalibrationTable holds one row per simulated tile in input order.
type CalibrationTable struct {
	Rows []CalibrationRow `json:"rows"`
}

// StatsTable holds the raw statistic rows of a diagnostic pass in input order.
type StatsTable struct {
	TileIDs []int       `json:"tile_ids"`
	Stats   [][]float64 `json:"stats"`
}

// Len returns the number of rows.
func (t *ValidationTable) Len() int { return len(t.Rows) }

// Len returns the number of rows.
func (t *CalibrationTable) Len() int { return len(t.Rows) }

// TieBounds returns the tile-wide bound column.
func (t *ValidationTable) TieBounds() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.TieBound
	}
	return out
}

// Lams returns the calibrated threshold column.
func (t *CalibrationTable) Lams() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Lams
	}
	return out
}
