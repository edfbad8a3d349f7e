package excel

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"imprint/domain/run"
)

// WriteValidation writes a validation table to a CSV or XLSX file.
func WriteValidation(path string, t *run.ValidationTable) error {
	table := &Table{Headers: []string{"tile_id", "tie_sum", "tie_est", "tie_cp_bound", "tie_bound", "K"}}
	for _, r := range t.Rows {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(r.TileID),
			strconv.Itoa(r.TieSum),
			formatFloat(r.TieEst),
			formatFloat(r.TieCPBound),
			formatFloat(r.TieBound),
			strconv.Itoa(r.K),
		})
	}
	return WriteTable(path, table)
}

// WriteCalibration writes a calibration table to a CSV or XLSX file.
func WriteCalibration(path string, t *run.CalibrationTable) error {
	table := &Table{Headers: []string{"tile_id", "lams", "alpha0", "idx", "K"}}
	for _, r := range t.Rows {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(r.TileID),
			formatFloat(r.Lams),
			formatFloat(r.Alpha0),
			strconv.Itoa(r.Idx),
			strconv.Itoa(r.K),
		})
	}
	return WriteTable(path, table)
}

// WriteStats writes one row per tile with its raw statistics. Rows shorter
// than the widest are padded with empty cells.
func WriteStats(path string, t *run.StatsTable) error {
	width := 0
	for _, row := range t.Stats {
		width = max(width, len(row))
	}
	table := &Table{Headers: []string{"tile_id", "K"}}
	for k := 0; k < width; k++ {
		table.Headers = append(table.Headers, "stat"+strconv.Itoa(k))
	}
	for i, row := range t.Stats {
		out := make([]string, 2, width+2)
		out[0] = strconv.Itoa(t.TileIDs[i])
		out[1] = strconv.Itoa(len(row))
		for _, v := range row {
			out = append(out, formatFloat(v))
		}
		for len(out) < width+2 {
			out = append(out, "")
		}
		table.Rows = append(table.Rows, out)
	}
	return WriteTable(path, table)
}

// WriteTable writes the table as CSV or XLSX by file extension.
func WriteTable(path string, table *Table) error {
	if fileType(path) == "csv" {
		return writeCSV(path, table)
	}
	return writeXLSX(path, table)
}

func writeCSV(path string, table *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Headers); err != nil {
		return err
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return err
	}
	return f.Close()
}

func writeXLSX(path string, table *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range table.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	for r, row := range table.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, cellValue(v)); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}

// cellValue stores finite numbers as numbers so spreadsheets can compute
// with them. Everything else stays text.
func cellValue(s string) interface{} {
	if x, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(x, 0) && !math.IsNaN(x) {
		return x
	}
	return s
}
