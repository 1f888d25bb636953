package gridsync

import (
	"errors"
	"fmt"
)

// ErrInvalidReference indicates a cell reference outside the A1..Z99 grammar.
var ErrInvalidReference = errors.New("invalid cell reference")

// ErrFormula indicates a formula that could not be parsed or evaluated.
var ErrFormula = errors.New("formula error")

// ErrImport indicates an import payload that could not be loaded into a sheet.
var ErrImport = errors.New("import failed")

// ReferenceError reports a rejected cell reference.
type ReferenceError struct {
	Ref string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("invalid cell reference: %q", e.Ref)
}

func (e *ReferenceError) Unwrap() error {
	return ErrInvalidReference
}

// FormulaError reports why a formula was rejected.
type FormulaError struct {
	Formula string
	Reason  string
}

func (e *FormulaError) Error() string {
	if e.Formula == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Formula)
}

func (e *FormulaError) Unwrap() error {
	return ErrFormula
}

func importError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrImport, fmt.Sprintf(format, a...))
}
