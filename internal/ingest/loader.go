package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"brigade/internal/models"
)

// LoadTable reads an uploaded spreadsheet into a RawTable. The format is
// chosen by file extension: .xlsx is read with excelize (first sheet), .csv
// and .txt with encoding/csv. The first row containing at least two
// non-empty cells becomes the header.
func LoadTable(filename string, r io.Reader) (*models.RawTable, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return loadXLSX(filename, r)
	case ".csv", ".txt":
		return loadCSV(filename, r)
	default:
		return nil, fmt.Errorf("unsupported file type %q: only .xlsx and .csv are supported", filepath.Ext(filename))
	}
}

func loadXLSX(filename string, r io.Reader) (*models.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", filename)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet %q: %w", sheets[0], err)
	}
	return buildTable(filename, sheets[0], rows)
}

func loadCSV(filename string, r io.Reader) (*models.RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return buildTable(filename, "", rows)
}

func buildTable(filename, sheet string, rows [][]string) (*models.RawTable, error) {
	headerIdx := -1
	for i, row := range rows {
		if countNonEmpty(row) >= 2 {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, fmt.Errorf("no header row found in %s", filename)
	}

	header := make([]string, len(rows[headerIdx]))
	for i, cell := range rows[headerIdx] {
		header[i] = strings.TrimSpace(cell)
	}

	table := &models.RawTable{
		SourceFile: filepath.Base(filename),
		SheetName:  sheet,
		Header:     header,
	}
	for _, row := range rows[headerIdx+1:] {
		if countNonEmpty(row) == 0 {
			continue
		}
		trimmed := make([]string, len(row))
		for i, cell := range row {
			trimmed[i] = strings.TrimSpace(cell)
		}
		table.Rows = append(table.Rows, trimmed)
	}
	return table, nil
}

func countNonEmpty(row []string) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}
