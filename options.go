package gridsync

// Options holds configuration for a SheetRegistry.
type Options struct {
	defaultRows    int
	defaultColumns int
	maxRows        int
	maxColumns     int
	recalculate    bool
	evaluator      *FormulaEvaluator
}

func defaultOptions() *Options {
	return &Options{
		defaultRows:    100,
		defaultColumns: 25,
		maxRows:        MaxRows,
		maxColumns:     MaxColumns,
	}
}

// Option configures a SheetRegistry.
type Option func(*Options)

// WithDefaultSize sets the bounds of newly created sheets (default: 100 rows, 25 columns).
func WithDefaultSize(rows, columns int) Option {
	return func(o *Options) {
		o.defaultRows = rows
		o.defaultColumns = columns
	}
}

// WithLimits sets the largest row and column counts a sheet may grow to
// (default: 1000 rows, 26 columns). Rows are capped at 1000 and columns at 26.
func WithLimits(maxRows, maxColumns int) Option {
	return func(o *Options) {
		o.maxRows = maxRows
		o.maxColumns = maxColumns
	}
}

// WithRecalculation re-evaluates formula cells that read from a written cell (default: false).
func WithRecalculation(enabled bool) Option {
	return func(o *Options) { o.recalculate = enabled }
}

// WithEvaluator sets the formula evaluator.
func WithEvaluator(ev *FormulaEvaluator) Option {
	return func(o *Options) { o.evaluator = ev }
}

// normalize clamps the options into a usable grid.
func (o *Options) normalize() {
	if o.maxColumns < 1 || o.maxColumns > MaxColumns {
		o.maxColumns = MaxColumns
	}
	o.maxRows = clamp(o.maxRows, 1, MaxRows)
	o.defaultRows = clamp(o.defaultRows, 1, o.maxRows)
	o.defaultColumns = clamp(o.defaultColumns, 1, o.maxColumns)
	if o.evaluator == nil {
		o.evaluator = NewFormulaEvaluator()
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
