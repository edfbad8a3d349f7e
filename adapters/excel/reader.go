// Package excel imports grids from and exports result tables to CSV and
// XLSX files. The format is chosen by file extension.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"imprint/internal"
)

// sheetName is the sheet written by the exporters. Readers take the first
// sheet whatever its name.
const sheetName = "Sheet1"

// Table is a header row plus string cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Column returns the index of the named header or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Headers {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{filePath: filePath, fileType: fileType(filePath), logger: logger.WithComponent("DataReader")}
}

func fileType(path string) string {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return "csv"
	}
	return "xlsx"
}

// ReadTable reads the header and data rows of the file
func (r *DataReader) ReadTable() (*Table, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	default:
		rows, err = r.readExcel()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row", strings.ToUpper(r.fileType))
	}

	table := &Table{Headers: make([]string, len(rows[0]))}
	for i, h := range rows[0] {
		table.Headers[i] = strings.TrimSpace(h)
	}
	for _, row := range rows[1:] {
		cells := make([]string, len(table.Headers))
		for j := 0; j < len(row) && j < len(cells); j++ {
			cells[j] = strings.TrimSpace(row[j])
		}
		table.Rows = append(table.Rows, cells)
	}
	r.logger.Debug("%s file processed (%d columns, %d rows)", strings.ToUpper(r.fileType), len(table.Headers), len(table.Rows))
	return table, nil
}

func (r *DataReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", r.filePath)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	return rows, nil
}

func (r *DataReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}
