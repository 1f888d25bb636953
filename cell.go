package gridsync

// CellType represents the type of data in a cell.
type CellType int

const (
	CellText CellType = iota
	CellNumber
	CellDate
	CellFormula
)

// String returns the wire name of the CellType.
func (ct CellType) String() string {
	switch ct {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	case CellFormula:
		return "formula"
	default:
		return "unknown"
	}
}

// MarshalText encodes the CellType by name.
func (ct CellType) MarshalText() ([]byte, error) {
	return []byte(ct.String()), nil
}

// Cell is the stored state of one cell reference.
//
// A formula cell keeps its defining expression in Formula and the last
// computed result in Value. Every other type has an empty Formula.
type Cell struct {
	Ref     string   // reference such as "B12"
	Value   Value    // scalar payload
	Formula string   // formula source text, formula cells only
	Type    CellType // value type
	Version int      // bumped by one on every successful write
}

// emptyCell is what a read of a never-written reference returns.
func emptyCell(ref string) Cell {
	return Cell{Ref: ref, Type: CellText}
}

// IsFormula returns true if this cell holds a formula.
func (c Cell) IsFormula() bool {
	return c.Type == CellFormula
}

// typeOf returns the cell type a plain value is stored under.
func typeOf(v Value) CellType {
	if v.Kind() == KindNumber {
		return CellNumber
	}
	return CellText
}
