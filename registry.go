package gridsync

import (
	"sort"
	"strings"
	"sync"
)

// SheetRegistry owns every sheet of the process and is the single source of
// truth for cell values and versions. Sheets are created lazily by
// GetOrCreateSheet and live until the registry is dropped.
type SheetRegistry struct {
	opts *Options

	mu     sync.RWMutex
	sheets map[string]*Sheet
}

// NewSheetRegistry creates an empty registry.
func NewSheetRegistry(opts ...Option) *SheetRegistry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	o.normalize()
	return &SheetRegistry{
		opts:   o,
		sheets: make(map[string]*Sheet),
	}
}

// GetOrCreateSheet returns the sheet with id, creating an empty one on first use.
func (r *SheetRegistry) GetOrCreateSheet(id string) *Sheet {
	r.mu.RLock()
	s, ok := r.sheets[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sheets[id]; ok {
		return s
	}
	s = newSheet(id, r.opts.defaultRows, r.opts.defaultColumns)
	r.sheets[id] = s
	return s
}

// SheetIDs lists the ids of every sheet created so far.
func (r *SheetRegistry) SheetIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sheets))
	for id := range r.sheets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Read returns the cell at ref, or an empty text cell at version 0 when it
// has never been written. Read never fails.
func (r *SheetRegistry) Read(sheetID, ref string) Cell {
	s := r.GetOrCreateSheet(sheetID)
	cr, err := ParseCellRef(ref)
	if err != nil {
		return emptyCell(ref)
	}
	if c, ok := s.Cell(cr); ok {
		return c
	}
	return emptyCell(ref)
}

// Dimensions returns the bounds of the sheet.
func (r *SheetRegistry) Dimensions(sheetID string) Dimensions {
	return r.GetOrCreateSheet(sheetID).Dimensions()
}

// WriteResult is the outcome of a successful write.
type WriteResult struct {
	Previous   Cell   // cell state before the write
	Cell       Cell   // cell state after the write
	Recomputed []Cell // formula cells whose value changed as a consequence
}

// Write stores raw or, when formula is non-empty, the result of evaluating
// formula at ref. Text that parses as a number is stored as a number.
// A rejected write leaves the cell untouched.
func (r *SheetRegistry) Write(sheetID, ref string, raw Value, formula string) (Cell, error) {
	res, err := r.write(sheetID, ref, raw, formula)
	if err != nil {
		return Cell{}, err
	}
	return res.Cell, nil
}

func (r *SheetRegistry) write(sheetID, ref string, raw Value, formula string) (WriteResult, error) {
	cr, err := ParseCellRef(ref)
	if err != nil {
		return WriteResult{}, err
	}
	s := r.GetOrCreateSheet(sheetID)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, next, err := r.applyLocked(s, cr, raw, formula)
	if err != nil {
		return WriteResult{}, err
	}
	res := WriteResult{Previous: prev, Cell: next}
	if r.opts.recalculate {
		res.Recomputed = r.recalculateFrom(s, cr)
	}
	return res, nil
}

// applyLocked computes and stores the next state of one cell. Callers hold s.mu.
func (r *SheetRegistry) applyLocked(s *Sheet, ref CellRef, raw Value, formula string) (prev, next Cell, err error) {
	prev, ok := s.cells[ref]
	if !ok {
		prev = emptyCell(ref.String())
	}
	next = Cell{Ref: ref.String(), Version: prev.Version + 1}

	if formula != "" {
		v, err := r.opts.evaluator.Evaluate(lockedView{sheet: s, skip: &ref}, formula)
		if err != nil {
			return Cell{}, Cell{}, err
		}
		next.Type = CellFormula
		next.Formula = formula
		next.Value = Number(v)
	} else {
		next.Value = coerce(raw)
		next.Type = typeOf(next.Value)
	}

	s.cells[ref] = next
	return prev, next, nil
}

// coerce turns numeric text into a number and keeps everything else as is.
func coerce(raw Value) Value {
	if text, ok := raw.AsText(); ok {
		if f, ok := parseNumber(text); ok {
			return Number(f)
		}
	}
	return raw
}

// SheetChange describes the effect of a structural operation on a sheet.
type SheetChange struct {
	Applied    bool       // false when the request was out of range and ignored
	Dimensions Dimensions // bounds after the operation
	Changed    []Cell     // cells whose content changed; removed cells appear empty
}

// AddRow grows the sheet by one row, up to the row limit.
func (r *SheetRegistry) AddRow(sheetID string) SheetChange {
	s := r.GetOrCreateSheet(sheetID)
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := s.rows < r.opts.maxRows
	if applied {
		s.rows++
	}
	return SheetChange{Applied: applied, Dimensions: Dimensions{Rows: s.rows, Columns: s.columns}}
}

// AddColumn grows the sheet by one column, up to the column limit.
func (r *SheetRegistry) AddColumn(sheetID string) SheetChange {
	s := r.GetOrCreateSheet(sheetID)
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := s.columns < r.opts.maxColumns
	if applied {
		s.columns++
	}
	return SheetChange{Applied: applied, Dimensions: Dimensions{Rows: s.rows, Columns: s.columns}}
}

// DeleteRow removes every cell in the 1-based row rowNum and shrinks the row
// count by one. Rows outside 1..rows, or the last remaining row, are ignored.
func (r *SheetRegistry) DeleteRow(sheetID string, rowNum int) SheetChange {
	s := r.GetOrCreateSheet(sheetID)
	s.mu.Lock()
	defer s.mu.Unlock()

	change := SheetChange{Dimensions: Dimensions{Rows: s.rows, Columns: s.columns}}
	if rowNum < 1 || rowNum > s.rows || s.rows <= 1 {
		return change
	}
	change.Changed = r.purgeLocked(s, func(ref CellRef) bool { return ref.Row == rowNum-1 })
	s.rows--
	change.Applied = true
	change.Dimensions.Rows = s.rows
	return change
}

// DeleteColumn removes every cell in column col ("A".."Z") and shrinks the
// column count by one. Columns outside the sheet, or the last remaining
// column, are ignored.
func (r *SheetRegistry) DeleteColumn(sheetID, col string) SheetChange {
	s := r.GetOrCreateSheet(sheetID)
	s.mu.Lock()
	defer s.mu.Unlock()

	change := SheetChange{Dimensions: Dimensions{Rows: s.rows, Columns: s.columns}}
	idx, ok := columnIndex(col)
	if !ok || idx >= s.columns || s.columns <= 1 {
		return change
	}
	change.Changed = r.purgeLocked(s, func(ref CellRef) bool { return ref.Col == idx })
	s.columns--
	change.Applied = true
	change.Dimensions.Columns = s.columns
	return change
}

// purgeLocked deletes the cells matching drop and returns them as empty
// cells, followed by any formula results that changed. Callers hold s.mu.
func (r *SheetRegistry) purgeLocked(s *Sheet, drop func(CellRef) bool) []Cell {
	var changed []Cell
	for _, ref := range s.sortedRefs(func(Cell) bool { return true }) {
		if drop(ref) {
			delete(s.cells, ref)
			changed = append(changed, emptyCell(ref.String()))
		}
	}
	if len(changed) > 0 && r.opts.recalculate {
		changed = append(changed, r.recalculateAll(s)...)
	}
	return changed
}

// columnIndex parses a single upper-case column letter.
func columnIndex(col string) (int, bool) {
	if len(col) != 1 || col != strings.ToUpper(col) {
		return 0, false
	}
	idx, err := NameToCol(col)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// SortColumn reorders the values of column col over rows 1..rows. Values
// keep to the fixed row slots: numbers come first, then text, each in the
// requested direction, and empty slots always sort last and are cleared.
// Every slot whose content changes is bumped by one version.
func (r *SheetRegistry) SortColumn(sheetID, col string, ascending bool) SheetChange {
	s := r.GetOrCreateSheet(sheetID)
	s.mu.Lock()
	defer s.mu.Unlock()

	change := SheetChange{Dimensions: Dimensions{Rows: s.rows, Columns: s.columns}}
	idx, ok := columnIndex(col)
	if !ok {
		return change
	}

	values := make([]Value, s.rows)
	for row := 0; row < s.rows; row++ {
		if c, ok := s.cells[NewCellRef(row, idx)]; ok {
			values[row] = c.Value
		}
	}
	sort.SliceStable(values, func(i, j int) bool {
		return sortsBefore(values[i], values[j], ascending)
	})

	for row, v := range values {
		ref := NewCellRef(row, idx)
		cur, exists := s.cells[ref]
		switch {
		case v.IsNull():
			if exists {
				delete(s.cells, ref)
				change.Changed = append(change.Changed, emptyCell(ref.String()))
			}
		case exists && !cur.IsFormula() && cur.Value.Equal(v):
		default:
			next := Cell{Ref: ref.String(), Value: v, Type: typeOf(v), Version: cur.Version + 1}
			s.cells[ref] = next
			change.Changed = append(change.Changed, next)
		}
	}
	if len(change.Changed) > 0 && r.opts.recalculate {
		change.Changed = append(change.Changed, r.recalculateAll(s)...)
	}
	change.Applied = true
	return change
}

// sortsBefore orders a before b: nulls last in both directions, numbers
// before text, and each kind by value in the given direction.
func sortsBefore(a, b Value, ascending bool) bool {
	if a.rank() != b.rank() {
		return a.rank() < b.rank()
	}
	if ascending {
		return a.Compare(b) < 0
	}
	return a.Compare(b) > 0
}
