package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrUnknownColumn   = errors.New("unknown column name")
	ErrIndexMismatch   = errors.New("time index does not match")
	ErrNoColumns       = errors.New("panel has no columns")
)

// Panel stores named value columns sharing one monthly time index. Column
// order is fixed at insertion. Once built a panel is treated as a shared
// read-only input; callers must not modify returned slices.
type Panel struct {
	T     []time.Time
	names []string
	cols  map[string][]float64
}

// NewPanel returns an empty Panel over the given monthly time index.
func NewPanel(t []time.Time) (*Panel, error) {
	if len(t) == 0 {
		return nil, ErrNoObservations
	}
	if err := validateMonthly(t); err != nil {
		return nil, err
	}
	tSeries := make([]time.Time, len(t))
	copy(tSeries, t)
	return &Panel{
		T:    tSeries,
		cols: make(map[string][]float64),
	}, nil
}

// AddColumn appends a named column. The column length must match the time
// index.
func (p *Panel) AddColumn(name string, vals []float64) error {
	if _, exists := p.cols[name]; exists {
		return fmt.Errorf("column %q, %w", name, ErrDuplicateColumn)
	}
	if len(vals) != len(p.T) {
		return fmt.Errorf(
			"column %q has length of %d, but time index has a length of %d, %w",
			name, len(vals), len(p.T), ErrLenMismatch,
		)
	}
	col := make([]float64, len(vals))
	copy(col, vals)
	p.names = append(p.names, name)
	p.cols[name] = col
	return nil
}

func (p *Panel) Len() int {
	return len(p.T)
}

func (p *Panel) NumColumns() int {
	return len(p.names)
}

// Names returns the column names in insertion order.
func (p *Panel) Names() []string {
	names := make([]string, len(p.names))
	copy(names, p.names)
	return names
}

// Column returns the values for a named column.
func (p *Panel) Column(name string) ([]float64, bool) {
	col, exists := p.cols[name]
	return col, exists
}

// Row returns the i-th observation across all columns in column order.
func (p *Panel) Row(i int) []float64 {
	row := make([]float64, len(p.names))
	for j, name := range p.names {
		row[j] = p.cols[name][i]
	}
	return row
}

// Rows returns all observations as row vectors in column order.
func (p *Panel) Rows() [][]float64 {
	rows := make([][]float64, len(p.T))
	for i := range p.T {
		rows[i] = p.Row(i)
	}
	return rows
}

// Select returns a copy restricted to the named columns, preserving the
// requested order.
func (p *Panel) Select(names []string) (*Panel, error) {
	if len(names) == 0 {
		return nil, ErrNoColumns
	}
	out, err := NewPanel(p.T)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		col, exists := p.cols[name]
		if !exists {
			return nil, fmt.Errorf("column %q, %w", name, ErrUnknownColumn)
		}
		if err := out.AddColumn(name, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Prefix returns a copy of the first n observations across all columns.
func (p *Panel) Prefix(n int) *Panel {
	if n > len(p.T) {
		n = len(p.T)
	}
	out := &Panel{
		T:    make([]time.Time, n),
		cols: make(map[string][]float64, len(p.names)),
	}
	copy(out.T, p.T[:n])
	out.names = make([]string, len(p.names))
	copy(out.names, p.names)
	for _, name := range p.names {
		col := make([]float64, n)
		copy(col, p.cols[name][:n])
		out.cols[name] = col
	}
	return out
}

// Before returns a copy of all observations strictly before cutoff.
func (p *Panel) Before(cutoff time.Time) *Panel {
	n := 0
	for n < len(p.T) && p.T[n].Before(cutoff) {
		n++
	}
	return p.Prefix(n)
}

// Align drops leading rows where any panel column is NaN, trimming the
// target series to the same rows. Lagged features leave NaN heads which must
// be dropped, never imputed. The panel and target must share a time index.
func (p *Panel) Align(target *Series) (*Panel, *Series, error) {
	if len(p.names) == 0 {
		return nil, nil, ErrNoColumns
	}
	if len(p.T) != len(target.T) {
		return nil, nil, fmt.Errorf(
			"panel has length of %d, but target has a length of %d, %w",
			len(p.T), len(target.T), ErrIndexMismatch,
		)
	}
	for i := range p.T {
		if !p.T[i].Equal(target.T[i]) {
			return nil, nil, fmt.Errorf("at index %d, %w", i, ErrIndexMismatch)
		}
	}

	start := 0
	for ; start < len(p.T); start++ {
		if !p.rowHasNaN(start) {
			break
		}
	}
	if start == len(p.T) {
		return nil, nil, ErrNoObservations
	}

	out, err := NewPanel(p.T[start:])
	if err != nil {
		return nil, nil, err
	}
	for _, name := range p.names {
		if err := out.AddColumn(name, p.cols[name][start:]); err != nil {
			return nil, nil, err
		}
	}
	trimmed, err := New(target.T[start:], target.Y[start:])
	if err != nil {
		return nil, nil, err
	}
	return out, trimmed, nil
}

func (p *Panel) rowHasNaN(i int) bool {
	for _, name := range p.names {
		if math.IsNaN(p.cols[name][i]) {
			return true
		}
	}
	return false
}
