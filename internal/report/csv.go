package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVContentType is the media type of WriteCSV output.
const CSVContentType = "text/csv; charset=utf-8"

// WriteCSV writes each section as a "=== TITLE ===" line followed by a
// header row and the data rows. Sections are separated by a blank line.
func WriteCSV(w io.Writer, s *Snapshot) error {
	for i, sec := range s.sections() {
		sep := ""
		if i > 0 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(w, "%s=== %s ===\n", sep, sec.title); err != nil {
			return fmt.Errorf("write section %s: %w", sec.title, err)
		}

		cw := csv.NewWriter(w)
		if err := cw.Write(sec.headers); err != nil {
			return fmt.Errorf("write %s header: %w", sec.title, err)
		}
		if err := cw.WriteAll(sec.rows); err != nil {
			return fmt.Errorf("write %s rows: %w", sec.title, err)
		}
	}
	return nil
}
