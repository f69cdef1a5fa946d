package fibers

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//////
// Const, vars, types.
//////

// ErrBadMatrix wraps every feature-matrix construction failure: dimension
// mismatches, reserved-name collisions, missing event or duration values.
// These are fatal and reported before any generation begins.
var ErrBadMatrix = errors.New("malformed feature matrix")

// Matrix is an immutable instances-by-columns numeric table plus the two
// reserved survival columns: the event indicator (0/1) and the time-to-event
// duration. It backs both the original feature matrix and every derived
// bin-feature matrix.
//
// Matrices are value snapshots: every derived matrix (covariate strip,
// zero-variance removal, bin aggregation) is a fresh construction, never an
// in-place edit of a shared table.
type Matrix struct {
	// names is the ordered list of data column names (features or bins).
	names []string

	// index maps column name to its position in names.
	index map[string]int

	// data holds the column values, rows x len(names). Nil when the matrix
	// carries no data columns.
	data *mat.Dense

	// labelName and durationName are the reserved column names.
	labelName, durationName string

	// events holds the 0/1 event indicators and durations the
	// time-to-event values, one per instance.
	events, durations []float64
}

//////
// Factory.
//////

// NewMatrix builds a feature matrix from column names, row-major data, and
// the two reserved survival columns. All inputs are copied.
//
// Parameters:
// - names: Data column names, one per matrix column
// - data: Row-major values, len(events) rows by len(names) columns
// - labelName, durationName: Reserved column names (must differ)
// - events: 0/1 event indicators, one per instance
// - durations: Time-to-event values, one per instance
//
// Returns:
// - *Matrix: The constructed matrix
// - error: ErrBadMatrix-wrapped when the inputs violate the data contract
func NewMatrix(names []string, data []float64, labelName, durationName string, events, durations []float64) (*Matrix, error) {
	if labelName == durationName {
		return nil, fmt.Errorf("%w: label and duration share the name %q", ErrBadMatrix, labelName)
	}

	if len(events) != len(durations) {
		return nil, fmt.Errorf("%w: %d events but %d durations", ErrBadMatrix, len(events), len(durations))
	}

	rows := len(events)
	if rows == 0 {
		return nil, fmt.Errorf("%w: no instances", ErrBadMatrix)
	}

	if len(data) != rows*len(names) {
		return nil, fmt.Errorf("%w: %d values cannot fill %d rows x %d columns", ErrBadMatrix, len(data), rows, len(names))
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		if name == labelName || name == durationName {
			return nil, fmt.Errorf("%w: column %q collides with a reserved name", ErrBadMatrix, name)
		}

		if _, ok := index[name]; ok {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrBadMatrix, name)
		}

		index[name] = i
	}

	for i := 0; i < rows; i++ {
		if math.IsNaN(events[i]) || math.IsNaN(durations[i]) {
			return nil, fmt.Errorf("%w: instance %d has a missing label or duration", ErrBadMatrix, i)
		}
	}

	m := &Matrix{
		names:        append([]string(nil), names...),
		index:        index,
		labelName:    labelName,
		durationName: durationName,
		events:       append([]float64(nil), events...),
		durations:    append([]float64(nil), durations...),
	}

	if len(names) > 0 && rows > 0 {
		m.data = mat.NewDense(rows, len(names), append([]float64(nil), data...))
	}

	return m, nil
}

//////
// Methods.
//////

// Rows returns the instance count.
func (m *Matrix) Rows() int {
	return len(m.events)
}

// ColumnNames returns a copy of the ordered data column names.
func (m *Matrix) ColumnNames() []string {
	return append([]string(nil), m.names...)
}

// LabelName returns the reserved event-indicator column name.
func (m *Matrix) LabelName() string {
	return m.labelName
}

// DurationName returns the reserved duration column name.
func (m *Matrix) DurationName() string {
	return m.durationName
}

// Events returns a copy of the per-instance 0/1 event indicators.
func (m *Matrix) Events() []float64 {
	return append([]float64(nil), m.events...)
}

// Durations returns a copy of the per-instance time-to-event values.
func (m *Matrix) Durations() []float64 {
	return append([]float64(nil), m.durations...)
}

// Column returns a copy of the named data column.
func (m *Matrix) Column(name string) ([]float64, error) {
	j, ok := m.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: no column %q", ErrBadMatrix, name)
	}

	col := make([]float64, m.Rows())
	mat.Col(col, j, m.data)

	return col, nil
}

// column is the internal accessor for columns the engine guarantees exist.
func (m *Matrix) column(name string) []float64 {
	col, err := m.Column(name)
	if err != nil {
		panic(err)
	}

	return col
}

// withColumns builds a fresh matrix holding the given named columns and the
// reserved columns carried through unchanged.
func (m *Matrix) withColumns(names []string, columns [][]float64) *Matrix {
	out := &Matrix{
		names:        append([]string(nil), names...),
		index:        make(map[string]int, len(names)),
		labelName:    m.labelName,
		durationName: m.durationName,
		events:       append([]float64(nil), m.events...),
		durations:    append([]float64(nil), m.durations...),
	}

	for i, name := range names {
		out.index[name] = i
	}

	if len(names) > 0 && m.Rows() > 0 {
		out.data = mat.NewDense(m.Rows(), len(names), nil)
		for j, col := range columns {
			out.data.SetCol(j, col)
		}
	}

	return out
}

// dropColumns builds a fresh matrix without the named columns. Unknown
// names are ignored.
func (m *Matrix) dropColumns(drop []string) *Matrix {
	kept := make([]string, 0, len(m.names))
	columns := make([][]float64, 0, len(m.names))

	for _, name := range m.names {
		if containsString(drop, name) {
			continue
		}

		kept = append(kept, name)
		columns = append(columns, m.column(name))
	}

	return m.withColumns(kept, columns)
}

// selectColumns builds an instances-by-len(names) dense design block from
// the named columns, in the given order.
func (m *Matrix) selectColumns(names []string) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, nil
	}

	design := mat.NewDense(m.Rows(), len(names), nil)
	for j, name := range names {
		col, err := m.Column(name)
		if err != nil {
			return nil, err
		}

		design.SetCol(j, col)
	}

	return design, nil
}

// removeZeroVariance builds a fresh matrix without monomorphic columns and
// reports which features were dropped, in column order.
func (m *Matrix) removeZeroVariance() (*Matrix, []string) {
	kept := make([]string, 0, len(m.names))
	columns := make([][]float64, 0, len(m.names))
	dropped := []string{}

	for _, name := range m.names {
		col := m.column(name)

		if stat.Variance(col, nil) == 0 {
			dropped = append(dropped, name)
			continue
		}

		kept = append(kept, name)
		columns = append(columns, col)
	}

	return m.withColumns(kept, columns), dropped
}

//////
// Aggregation.
//////

// aggregateBins projects the per-feature matrix into a per-bin matrix: one
// column per bin holding the per-instance sum of the bin's member feature
// values (all zeros for an empty bin), with the reserved columns carried
// through unchanged. Pure: neither the matrix nor the bins are modified.
func (m *Matrix) aggregateBins(bins []*Bin) *Matrix {
	names := make([]string, len(bins))
	columns := make([][]float64, len(bins))

	for i, bin := range bins {
		sum := make([]float64, m.Rows())
		for _, feature := range bin.features {
			floats.Add(sum, m.column(feature))
		}

		names[i] = bin.Name()
		columns[i] = sum
	}

	return m.withColumns(names, columns)
}
