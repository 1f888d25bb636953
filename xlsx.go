package gridsync

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// defaultWorksheet is the sheet a new excelize file starts with.
const defaultWorksheet = "Sheet1"

// ExportXLSX writes the sheet as a single-worksheet xlsx workbook named
// after sheetID. Formula cells are written as formulas.
func (r *SheetRegistry) ExportXLSX(sheetID string, dst io.Writer) error {
	cells := r.GetOrCreateSheet(sheetID).Cells()

	f := excelize.NewFile()
	defer f.Close()

	name := SafeSheetName(sheetID)
	if name == "" {
		name = defaultWorksheet
	}
	if name != defaultWorksheet {
		if err := f.SetSheetName(defaultWorksheet, name); err != nil {
			return fmt.Errorf("name worksheet %q: %w", name, err)
		}
	}

	for _, c := range cells {
		if err := writeXLSXCell(f, name, c); err != nil {
			return fmt.Errorf("write cell %s: %w", c.Ref, err)
		}
	}
	if err := f.Write(dst); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeXLSXCell(f *excelize.File, sheet string, c Cell) error {
	if c.IsFormula() {
		return f.SetCellFormula(sheet, c.Ref, strings.TrimPrefix(strings.TrimSpace(c.Formula), "="))
	}
	if n, ok := c.Value.AsNumber(); ok {
		return f.SetCellFloat(sheet, c.Ref, n, -1, 64)
	}
	if s, ok := c.Value.AsText(); ok {
		return f.SetCellStr(sheet, c.Ref, s)
	}
	return nil
}

// ImportXLSX replaces the contents of the sheet with the first worksheet of
// an xlsx workbook, with the same rules as ImportCSV. Cells holding a
// formula are re-evaluated here rather than trusting cached results.
func (r *SheetRegistry) ImportXLSX(sheetID string, src io.Reader) (Dimensions, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: open xlsx: %w", ErrImport, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Dimensions{}, importError("workbook has no worksheets")
	}
	name := sheets[0]

	rows, err := f.GetRows(name)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: read rows from %q: %w", ErrImport, name, err)
	}

	var entries []gridEntry
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if err := checkImportBounds(rowIdx, colIdx); err != nil {
				return Dimensions{}, err
			}
			entries = append(entries, gridEntry{ref: NewCellRef(rowIdx, colIdx), raw: value})
		}
	}

	// Formula cells without a cached result are missing from GetRows.
	seen := make(map[CellRef]int, len(entries))
	for i, e := range entries {
		seen[e.ref] = i
	}
	for row := 0; row < MaxRefRow; row++ {
		for col := 0; col < MaxColumns; col++ {
			ref := NewCellRef(row, col)
			formula, err := f.GetCellFormula(name, ref.String())
			if err != nil || formula == "" {
				continue
			}
			if i, ok := seen[ref]; ok {
				entries[i].formula = formula
				continue
			}
			entries = append(entries, gridEntry{ref: ref, formula: formula})
		}
	}
	return r.load(sheetID, entries)
}

// SafeSheetName sanitizes a string for use as an Excel sheet name.
// It replaces forbidden characters ([]*?/\:) with underscore and truncates to 31 chars.
func SafeSheetName(name string) string {
	forbidden := []rune{'/', '\\', ':', '*', '?', '[', ']'}
	runes := []rune(name)
	for i, r := range runes {
		for _, f := range forbidden {
			if r == f {
				runes[i] = '_'
				break
			}
		}
	}
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}
