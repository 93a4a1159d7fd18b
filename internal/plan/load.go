package plan

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet read from .xlsx plan files.
const SheetName = "Plan"

// LoadFile reads a plan from a .csv or .xlsx file. Both formats carry a
// header row followed by rows of: day, date, primary, secondary.
func LoadFile(path string) (*Catalog, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".xlsx" {
		return loadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan file: %w", err)
	}
	defer f.Close()
	return parseCSV(f)
}

func loadXLSX(path string) (*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open plan workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", SheetName, err)
	}
	return fromRows(rows)
}

func parseCSV(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read plan csv: %w", err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) (*Catalog, error) {
	var entries []DayEntry
	for i, row := range rows {
		// header
		if i == 0 {
			continue
		}
		if isBlank(row) {
			continue
		}
		e, err := rowToEntry(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		entries = append(entries, e)
	}
	return New(entries)
}

func rowToEntry(row []string) (DayEntry, error) {
	if len(row) < 3 {
		return DayEntry{}, fmt.Errorf("expected at least 3 columns, got %d", len(row))
	}
	n, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return DayEntry{}, fmt.Errorf("parse day number %q: %w", row[0], err)
	}
	e := DayEntry{
		DayNumber: n,
		Date:      strings.TrimSpace(row[1]),
		Primary:   strings.TrimSpace(row[2]),
	}
	if len(row) > 3 {
		e.Secondary = strings.TrimSpace(row[3])
	}
	return e, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
