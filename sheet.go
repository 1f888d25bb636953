package gridsync

import (
	"sort"
	"sync"
)

// Dimensions are the row and column bounds of a sheet.
type Dimensions struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// Sheet is a collection of cells keyed by reference plus its grid bounds.
// All mutation goes through SheetRegistry, which holds mu for the whole
// of each write so versions advance by exactly one per write.
type Sheet struct {
	id string

	mu      sync.RWMutex
	cells   map[CellRef]Cell
	rows    int
	columns int
}

func newSheet(id string, rows, columns int) *Sheet {
	return &Sheet{
		id:      id,
		cells:   make(map[CellRef]Cell),
		rows:    rows,
		columns: columns,
	}
}

// ID returns the sheet identifier.
func (s *Sheet) ID() string { return s.id }

// Dimensions returns the current row and column bounds.
func (s *Sheet) Dimensions() Dimensions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Dimensions{Rows: s.rows, Columns: s.columns}
}

// Cell returns the stored cell at ref, if any.
func (s *Sheet) Cell(ref CellRef) (Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[ref]
	return c, ok
}

// Len returns the number of stored cells.
func (s *Sheet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}

// Cells returns a snapshot of every stored cell in column-major order.
func (s *Sheet) Cells() []Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := s.sortedRefs(func(Cell) bool { return true })
	out := make([]Cell, 0, len(refs))
	for _, ref := range refs {
		out = append(out, s.cells[ref])
	}
	return out
}

// sortedRefs lists the references of cells matching keep. Callers hold mu.
func (s *Sheet) sortedRefs(keep func(Cell) bool) []CellRef {
	refs := make([]CellRef, 0, len(s.cells))
	for ref, c := range s.cells {
		if keep(c) {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].less(refs[j]) })
	return refs
}

// lockedView reads a sheet whose mu is already held by the caller.
// skip hides one reference, so a formula never reads its own cell.
type lockedView struct {
	sheet *Sheet
	skip  *CellRef
}

func (v lockedView) Cell(ref CellRef) (Cell, bool) {
	if v.skip != nil && *v.skip == ref {
		return Cell{}, false
	}
	c, ok := v.sheet.cells[ref]
	return c, ok
}
