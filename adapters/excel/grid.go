package excel

import (
	"fmt"
	"strconv"

	"imprint/domain/core"
	"imprint/domain/grid"
	"imprint/internal"
)

// ReadGrid loads a grid with columns theta0..theta{d-1}, radii0..radii{d-1},
// null_truth0.. and optional id, K and active columns. Vertices are the
// corners of the box given by theta and radii. Missing K means "use the
// default"; missing active means active.
func ReadGrid(path string, logger *internal.Logger) (*grid.Grid, error) {
	table, err := NewDataReader(path, logger).ReadTable()
	if err != nil {
		return nil, err
	}
	return GridFromTable(table)
}

// GridFromTable parses a grid from a table already in memory.
func GridFromTable(table *Table) (*grid.Grid, error) {
	thetaCols := indexedColumns(table, "theta")
	d := len(thetaCols)
	if d == 0 {
		return nil, core.NewInvalidArgumentError("grid file", "has no theta0 column")
	}
	radiiCols := indexedColumns(table, "radii")
	if len(radiiCols) != d {
		return nil, core.NewInvalidArgumentError("grid file", fmt.Sprintf("has %d theta columns but %d radii columns", d, len(radiiCols)))
	}
	if err := grid.CheckSize(d, len(table.Rows)); err != nil {
		return nil, err
	}
	nullCols := indexedColumns(table, "null_truth")
	idCol, kCol, activeCol := table.Column("id"), table.Column("K"), table.Column("active")

	tiles := make([]grid.Tile, len(table.Rows))
	for i, row := range table.Rows {
		t := grid.Tile{
			ID:        i,
			Theta:     make([]float64, d),
			Radii:     make([]float64, d),
			NullTruth: make([]bool, len(nullCols)),
			Active:    true,
		}
		var err error
		for j := 0; j < d; j++ {
			if t.Theta[j], err = parseFloat(row[thetaCols[j]]); err != nil {
				return nil, core.NewInvalidTileError(i, fmt.Sprintf("theta%d: %v", j, err))
			}
			if t.Radii[j], err = parseFloat(row[radiiCols[j]]); err != nil {
				return nil, core.NewInvalidTileError(i, fmt.Sprintf("radii%d: %v", j, err))
			}
		}
		for j, col := range nullCols {
			if t.NullTruth[j], err = strconv.ParseBool(row[col]); err != nil {
				return nil, core.NewInvalidTileError(i, fmt.Sprintf("null_truth%d: %v", j, err))
			}
		}
		if idCol >= 0 && row[idCol] != "" {
			if t.ID, err = strconv.Atoi(row[idCol]); err != nil {
				return nil, core.NewInvalidTileError(i, fmt.Sprintf("id: %v", err))
			}
		}
		if kCol >= 0 && row[kCol] != "" {
			k, err := parseFloat(row[kCol])
			if err != nil || k < 0 || k != float64(int(k)) {
				return nil, core.NewInvalidTileError(i, fmt.Sprintf("K must be a non-negative integer, got %q", row[kCol]))
			}
			t.K = int(k)
		}
		if activeCol >= 0 && row[activeCol] != "" {
			if t.Active, err = strconv.ParseBool(row[activeCol]); err != nil {
				return nil, core.NewInvalidTileError(i, fmt.Sprintf("active: %v", err))
			}
		}
		t.Vertices = grid.BoxVertices(t.Theta, t.Radii)
		tiles[i] = t
	}
	return grid.New(d, tiles)
}

// GridTable lays a grid out in the layout ReadGrid accepts.
func GridTable(g *grid.Grid) *Table {
	nNull := 0
	if g.NTiles() > 0 {
		nNull = len(g.Tiles[0].NullTruth)
	}
	table := &Table{Headers: []string{"id"}}
	for j := 0; j < g.D; j++ {
		table.Headers = append(table.Headers, fmt.Sprintf("theta%d", j))
	}
	for j := 0; j < g.D; j++ {
		table.Headers = append(table.Headers, fmt.Sprintf("radii%d", j))
	}
	for j := 0; j < nNull; j++ {
		table.Headers = append(table.Headers, fmt.Sprintf("null_truth%d", j))
	}
	table.Headers = append(table.Headers, "K", "active")

	for _, t := range g.Tiles {
		row := []string{strconv.Itoa(t.ID)}
		for _, x := range t.Theta {
			row = append(row, formatFloat(x))
		}
		for _, x := range t.Radii {
			row = append(row, formatFloat(x))
		}
		for _, n := range t.NullTruth {
			row = append(row, strconv.FormatBool(n))
		}
		row = append(row, strconv.Itoa(t.K), strconv.FormatBool(t.Active))
		table.Rows = append(table.Rows, row)
	}
	return table
}

// WriteGrid writes g to a CSV or XLSX file.
func WriteGrid(path string, g *grid.Grid) error {
	return WriteTable(path, GridTable(g))
}

// indexedColumns finds prefix0, prefix1, ... stopping at the first gap.
func indexedColumns(table *Table, prefix string) []int {
	var cols []int
	for j := 0; ; j++ {
		col := table.Column(fmt.Sprintf("%s%d", prefix, j))
		if col < 0 {
			return cols
		}
		cols = append(cols, col)
	}
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
