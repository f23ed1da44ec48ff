package feature

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cropforge/cropcast/timeseries"
)

var (
	ErrInvalidLag         = errors.New("lag depth must be positive")
	ErrDuplicateLag       = errors.New("duplicate lag depth")
	ErrInvalidInteraction = errors.New("interaction references an empty column name")
)

// Options configure feature generation. Every raw column receives one lagged
// copy per requested depth, and every interaction pair receives a product
// column plus the same lagged copies. Interaction pairs may reference raw
// columns or lagged raw columns by name.
type Options struct {
	Lags         []int       `json:"lags"`
	Interactions [][2]string `json:"interactions"`
}

// NewDefaultOptions returns a default set of feature generation options.
func NewDefaultOptions() *Options {
	return &Options{
		Lags: []int{1, 2, 3},
	}
}

// Validate runs basic validation on feature options normalizing lag order.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}

	seen := make(map[int]struct{}, len(o.Lags))
	for _, lag := range o.Lags {
		if lag < 1 {
			return nil, fmt.Errorf("lag of %d, %w", lag, ErrInvalidLag)
		}
		if _, exists := seen[lag]; exists {
			return nil, fmt.Errorf("lag of %d, %w", lag, ErrDuplicateLag)
		}
		seen[lag] = struct{}{}
	}
	sort.Ints(o.Lags)

	for _, pair := range o.Interactions {
		if pair[0] == "" || pair[1] == "" {
			return nil, ErrInvalidInteraction
		}
	}
	return o, nil
}

// layout is the resolved column plan for one raw panel: ordered labels, a
// name index, and how far back each column reaches into history.
type layout struct {
	labels []Feature
	byName map[string]Feature
	reach  map[string]int
}

func (o *Options) layout(rawNames []string) (*layout, error) {
	lay := &layout{
		byName: make(map[string]Feature),
		reach:  make(map[string]int),
	}

	add := func(f Feature, reach int) {
		lay.labels = append(lay.labels, f)
		lay.byName[f.String()] = f
		lay.reach[f.String()] = reach
	}

	for _, name := range rawNames {
		add(NewRaw(name), 0)
		for _, lag := range o.Lags {
			add(NewLag(name, lag), lag)
		}
	}

	for _, pair := range o.Interactions {
		reachA, exists := lay.reach[pair[0]]
		if !exists {
			return nil, fmt.Errorf("interaction references %q, %w", pair[0], ErrUnknownColumn)
		}
		reachB, exists := lay.reach[pair[1]]
		if !exists {
			return nil, fmt.Errorf("interaction references %q, %w", pair[1], ErrUnknownColumn)
		}

		inter := NewInteraction(pair[0], pair[1])
		interReach := reachA
		if reachB > interReach {
			interReach = reachB
		}
		add(inter, interReach)
		for _, lag := range o.Lags {
			add(NewLag(inter.String(), lag), interReach+lag)
		}
	}
	return lay, nil
}

func (l *layout) maxReach() int {
	max := 0
	for _, reach := range l.reach {
		if reach > max {
			max = reach
		}
	}
	return max
}

// Builder generates lag and interaction features from a raw panel. Building
// is pure: the same panel and options always produce identical columns in
// identical order.
type Builder struct {
	opt *Options
}

// NewBuilder initializes a feature Builder ready to transform raw panels.
func NewBuilder(opt *Options) (*Builder, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &Builder{
		opt: opt,
	}, nil
}

// Build transforms a raw panel into the full feature panel. Lagged columns
// carry NaN for their first k rows which downstream alignment drops, never
// imputes.
func (b *Builder) Build(raw *timeseries.Panel) (*timeseries.Panel, *Labels, error) {
	lay, err := b.opt.layout(raw.Names())
	if err != nil {
		return nil, nil, err
	}
	if maxReach := lay.maxReach(); maxReach >= raw.Len() {
		return nil, nil, fmt.Errorf(
			"deepest lag reaches %d periods back with only %d observations, %w",
			maxReach, raw.Len(), ErrInsufficientHistory,
		)
	}

	out, err := timeseries.NewPanel(raw.T)
	if err != nil {
		return nil, nil, err
	}

	cols := make(map[string][]float64, len(lay.labels))
	for _, label := range lay.labels {
		var col []float64
		switch f := label.(type) {
		case *Raw:
			src, exists := raw.Column(f.Name)
			if !exists {
				return nil, nil, fmt.Errorf("column %q, %w", f.Name, ErrUnknownColumn)
			}
			col = make([]float64, len(src))
			copy(col, src)
		case *Lag:
			col = shift(cols[f.Name], f.Lag)
		case *Interaction:
			col = product(cols[f.A], cols[f.B])
		}
		cols[label.String()] = col
		if err := out.AddColumn(label.String(), col); err != nil {
			return nil, nil, err
		}
	}
	return out, NewLabels(lay.labels), nil
}

// Labels returns the column plan for a raw panel without materializing any
// data.
func (b *Builder) Labels(rawNames []string) (*Labels, error) {
	lay, err := b.opt.layout(rawNames)
	if err != nil {
		return nil, err
	}
	return NewLabels(lay.labels), nil
}

func shift(src []float64, k int) []float64 {
	out := make([]float64, len(src))
	for i := 0; i < len(src); i++ {
		if i < k {
			out[i] = math.NaN()
			continue
		}
		out[i] = src[i-k]
	}
	return out
}

func product(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}
