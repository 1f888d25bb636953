package gridsync

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// gridEntry is one non-blank cell of an imported grid.
type gridEntry struct {
	ref     CellRef
	raw     string
	formula string
}

// ImportCSV replaces the contents of the sheet with a CSV grid. Rows fill
// from row 1 and fields from column A; fields are trimmed and blank fields
// skipped. The grid is validated before the sheet is touched, so a failed
// import leaves the sheet unchanged.
func (r *SheetRegistry) ImportCSV(sheetID string, src io.Reader) (Dimensions, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: read csv: %w", ErrImport, err)
	}

	var entries []gridEntry
	for rowIdx, record := range records {
		for colIdx, field := range record {
			value := strings.TrimSpace(field)
			if value == "" {
				continue
			}
			if err := checkImportBounds(rowIdx, colIdx); err != nil {
				return Dimensions{}, err
			}
			entries = append(entries, gridEntry{ref: NewCellRef(rowIdx, colIdx), raw: value})
		}
	}
	return r.load(sheetID, entries)
}

// ExportCSV writes the full rows×columns grid of the sheet as CSV.
func (r *SheetRegistry) ExportCSV(sheetID string, dst io.Writer) error {
	s := r.GetOrCreateSheet(sheetID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := csv.NewWriter(dst)
	record := make([]string, s.columns)
	for row := 0; row < s.rows; row++ {
		for col := 0; col < s.columns; col++ {
			record[col] = s.cells[NewCellRef(row, col)].Value.String()
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", row+1, err)
		}
	}
	w.Flush()
	return w.Error()
}

func checkImportBounds(row, col int) error {
	if col >= MaxColumns || row >= MaxRefRow {
		return importError("value at row %d, column %d is outside A1:Z%d", row+1, col+1, MaxRefRow)
	}
	return nil
}

// load clears the sheet and writes entries into it, plain values first so
// formulas see them. The sheet grows to hold every entry but never past
// the registry limits. Everything is staged first and swapped in at the end.
func (r *SheetRegistry) load(sheetID string, entries []gridEntry) (Dimensions, error) {
	s := r.GetOrCreateSheet(sheetID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, columns := s.rows, s.columns
	for _, e := range entries {
		rows = max(rows, e.ref.Row+1)
		columns = max(columns, e.ref.Col+1)
	}
	if rows > r.opts.maxRows || columns > r.opts.maxColumns {
		return Dimensions{}, importError("grid of %d rows and %d columns exceeds the %dx%d limit",
			rows, columns, r.opts.maxRows, r.opts.maxColumns)
	}

	staged := newSheet(s.id, rows, columns)
	for _, pass := range []bool{false, true} {
		for _, e := range entries {
			if (e.formula != "") != pass {
				continue
			}
			if _, _, err := r.applyLocked(staged, e.ref, Text(e.raw), e.formula); err != nil {
				return Dimensions{}, fmt.Errorf("%w: cell %s: %w", ErrImport, e.ref, err)
			}
		}
	}
	r.recalculateAll(staged)
	s.cells = staged.cells
	s.rows, s.columns = rows, columns
	return Dimensions{Rows: rows, Columns: columns}, nil
}
