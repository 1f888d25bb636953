package gridsync

// Formula cells never feed SUM or AVERAGE (those read number-typed cells
// only) and always count as present for COUNT, so re-evaluating the direct
// readers of a changed cell is enough: a recomputed result cannot change
// any other formula.

// recalculateFrom re-evaluates formula cells whose range covers ref and
// returns the ones whose value changed. Callers hold s.mu.
func (r *SheetRegistry) recalculateFrom(s *Sheet, ref CellRef) []Cell {
	var changed []Cell
	for _, dep := range s.sortedRefs(Cell.IsFormula) {
		if dep == ref {
			continue
		}
		f, err := r.opts.evaluator.Parse(s.cells[dep].Formula)
		if err != nil || !f.Range.Contains(ref) {
			continue
		}
		if c, ok := r.reevaluateLocked(s, dep, f); ok {
			changed = append(changed, c)
		}
	}
	return changed
}

// recalculateAll re-evaluates every formula cell of s. Callers hold s.mu.
func (r *SheetRegistry) recalculateAll(s *Sheet) []Cell {
	var changed []Cell
	for _, ref := range s.sortedRefs(Cell.IsFormula) {
		f, err := r.opts.evaluator.Parse(s.cells[ref].Formula)
		if err != nil {
			continue
		}
		if c, ok := r.reevaluateLocked(s, ref, f); ok {
			changed = append(changed, c)
		}
	}
	return changed
}

// reevaluateLocked stores a new result for the formula cell at ref when it
// differs from the current one, as a write that bumps the version.
func (r *SheetRegistry) reevaluateLocked(s *Sheet, ref CellRef, f Formula) (Cell, bool) {
	cur := s.cells[ref]
	v, err := r.opts.evaluator.run(f, collect(lockedView{sheet: s, skip: &ref}, f.Range))
	if err != nil || cur.Value.Equal(Number(v)) {
		return Cell{}, false
	}
	cur.Value = Number(v)
	cur.Version++
	s.cells[ref] = cur
	return cur, true
}
