package gridsync

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// CellSource provides read access to the cells a formula ranges over.
type CellSource interface {
	Cell(ref CellRef) (Cell, bool)
}

// Formula is a parsed FUNC(range) expression.
type Formula struct {
	Func  string      // upper-cased function name
	Range ColumnRange // cells the function reads
}

// formulaPattern matches FUNC(args) once the text is trimmed and upper-cased.
var formulaPattern = regexp.MustCompile(`^([A-Z]+)\((.*)\)$`)

// aggregates maps each supported function to the expression it runs over a rangeEnv.
var aggregates = map[string]string{
	"SUM":     `sum(Numbers)`,
	"AVERAGE": `len(Numbers) == 0 ? 0.0 : sum(Numbers) / len(Numbers)`,
	"COUNT":   `Present`,
}

// rangeEnv is what an aggregate program sees: the numeric payloads of
// number-typed cells and the count of non-null cells.
type rangeEnv struct {
	Numbers []float64
	Present int
}

// FormulaEvaluator evaluates SUM, AVERAGE and COUNT over single-column ranges.
type FormulaEvaluator struct {
	programs map[string]*vm.Program
}

// NewFormulaEvaluator compiles the aggregate programs.
func NewFormulaEvaluator() *FormulaEvaluator {
	programs := make(map[string]*vm.Program, len(aggregates))
	for name, src := range aggregates {
		program, err := expr.Compile(src, expr.Env(rangeEnv{}))
		if err != nil {
			panic(fmt.Sprintf("compile aggregate %s: %v", name, err))
		}
		programs[name] = program
	}
	return &FormulaEvaluator{programs: programs}
}

// Parse splits formula text into its function and range. Names are
// case-insensitive and a leading "=" is allowed.
func (e *FormulaEvaluator) Parse(formula string) (Formula, error) {
	text := strings.ToUpper(strings.TrimSpace(formula))
	text = strings.TrimSpace(strings.TrimPrefix(text, "="))

	m := formulaPattern.FindStringSubmatch(text)
	if m == nil {
		return Formula{}, &FormulaError{Formula: formula, Reason: "unsupported formula"}
	}
	if _, ok := e.programs[m[1]]; !ok {
		return Formula{}, &FormulaError{Formula: formula, Reason: "unsupported formula"}
	}
	rng, err := ParseColumnRange(m[2])
	if err != nil {
		return Formula{}, err
	}
	return Formula{Func: m[1], Range: rng}, nil
}

// Evaluate computes formula over the cells of src.
func (e *FormulaEvaluator) Evaluate(src CellSource, formula string) (float64, error) {
	f, err := e.Parse(formula)
	if err != nil {
		return 0, err
	}
	return e.run(f, collect(src, f.Range))
}

func (e *FormulaEvaluator) run(f Formula, env rangeEnv) (float64, error) {
	out, err := expr.Run(e.programs[f.Func], env)
	if err != nil {
		return 0, &FormulaError{Formula: f.Func + "(" + f.Range.String() + ")", Reason: err.Error()}
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, &FormulaError{Formula: f.Func, Reason: fmt.Sprintf("aggregate returned %T", out)}
	}
}

// collect gathers the inputs of an aggregate from the cells in rng.
func collect(src CellSource, rng ColumnRange) rangeEnv {
	env := rangeEnv{Numbers: make([]float64, 0, rng.Last-rng.First+1)}
	for _, ref := range rng.Refs() {
		cell, ok := src.Cell(ref)
		if !ok || cell.Value.IsNull() {
			continue
		}
		env.Present++
		if cell.Type != CellNumber {
			continue
		}
		if n, ok := cell.Value.AsNumber(); ok {
			env.Numbers = append(env.Numbers, n)
		}
	}
	return env
}
