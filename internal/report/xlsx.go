package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the media type of WriteXLSX output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX writes a workbook with one sheet per section.
func WriteXLSX(w io.Writer, s *Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, sec := range s.sections() {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sec.sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sec.sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sec.sheet, err)
		}

		if err := setRow(f, sec.sheet, 1, sec.headers); err != nil {
			return err
		}
		if err := f.SetRowStyle(sec.sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("style %s header: %w", sec.sheet, err)
		}
		for j, row := range sec.rows {
			if err := setRow(f, sec.sheet, j+2, row); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
