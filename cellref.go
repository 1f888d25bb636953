package gridsync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxColumns is the widest grid a single-letter reference can address.
const MaxColumns = 26

// MaxRefRow is the highest row number a reference can name.
const MaxRefRow = 99

// MaxRows is the tallest a sheet may grow through row insertion.
const MaxRows = 1000

// cellRefPattern matches one column letter and a row number 1..99 without a leading zero.
var cellRefPattern = regexp.MustCompile(`^[A-Z][1-9][0-9]?$`)

// CellRef addresses a single cell within a sheet.
type CellRef struct {
	Row int // 0-based row index
	Col int // 0-based column index
}

// NewCellRef creates a CellRef from 0-based row and column indexes.
func NewCellRef(row, col int) CellRef {
	return CellRef{Row: row, Col: col}
}

// ValidateReference reports whether ref is a well-formed cell reference such as "B12".
func ValidateReference(ref string) bool {
	return cellRefPattern.MatchString(ref)
}

// ParseCellRef parses a reference like "A1" into col=0, row=0.
func ParseCellRef(s string) (CellRef, error) {
	if !ValidateReference(s) {
		return CellRef{}, &ReferenceError{Ref: s}
	}
	row, _ := strconv.Atoi(s[1:])
	return CellRef{Row: row - 1, Col: int(s[0] - 'A')}, nil
}

// String formats the CellRef as "A1".
func (c CellRef) String() string {
	return ColToName(c.Col) + strconv.Itoa(c.Row+1)
}

// less orders references column-major, matching how ranges are walked.
func (c CellRef) less(o CellRef) bool {
	if c.Col != o.Col {
		return c.Col < o.Col
	}
	return c.Row < o.Row
}

// ColToName converts a 0-based column index to a column name.
// 0→"A", 25→"Z", 26→"AA"
func ColToName(col int) string {
	result := ""
	col++
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// NameToCol converts a column name to a 0-based column index.
// "A"→0, "Z"→25, "AA"→26
func NameToCol(name string) (int, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return 0, fmt.Errorf("empty column name")
	}
	col := 0
	for _, ch := range name {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column name: %q", name)
		}
		col = col*26 + int(ch-'A') + 1
	}
	return col - 1, nil
}

// rangePattern matches "A1:A5"; both ends use the cell reference grammar.
var rangePattern = regexp.MustCompile(`^([A-Z])([1-9][0-9]?):([A-Z])([1-9][0-9]?)$`)

// ColumnRange is an inclusive run of rows within one column.
type ColumnRange struct {
	Col   int // 0-based column index
	First int // 0-based first row
	Last  int // 0-based last row, First <= Last
}

// ParseColumnRange parses "A1:A5". The endpoints may be given in either
// order; ranges spanning two columns are rejected.
func ParseColumnRange(s string) (ColumnRange, error) {
	m := rangePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ColumnRange{}, &FormulaError{Formula: s, Reason: "invalid range"}
	}
	if m[1] != m[3] {
		return ColumnRange{}, &FormulaError{Formula: s, Reason: "only single column ranges supported"}
	}
	start, _ := strconv.Atoi(m[2])
	end, _ := strconv.Atoi(m[4])
	if start > end {
		start, end = end, start
	}
	return ColumnRange{Col: int(m[1][0] - 'A'), First: start - 1, Last: end - 1}, nil
}

// Contains returns true if ref lies within the range.
func (r ColumnRange) Contains(ref CellRef) bool {
	return ref.Col == r.Col && ref.Row >= r.First && ref.Row <= r.Last
}

// Refs lists every cell of the range from First to Last.
func (r ColumnRange) Refs() []CellRef {
	refs := make([]CellRef, 0, r.Last-r.First+1)
	for row := r.First; row <= r.Last; row++ {
		refs = append(refs, NewCellRef(row, r.Col))
	}
	return refs
}

// String formats the range as "A1:A5".
func (r ColumnRange) String() string {
	return NewCellRef(r.First, r.Col).String() + ":" + NewCellRef(r.Last, r.Col).String()
}
