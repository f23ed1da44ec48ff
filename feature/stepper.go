package feature

import (
	"errors"
	"fmt"

	"github.com/cropforge/cropcast/timeseries"
)

var ErrMissingRawValue = errors.New("missing raw value for column")

// Stepper regenerates feature vectors one future step at a time. Lag inputs
// are read from values synthesized at earlier steps, falling back to real
// history for lags reaching before the first step. A Stepper serves exactly
// one forward simulation; instances share no state.
type Stepper struct {
	lay      *layout
	rawNames []string
	hist     map[string][]float64
	synth    map[string][]float64
}

// NewStepper seeds a Stepper with the trailing window of raw history needed
// by the deepest lag in the plan.
func NewStepper(raw *timeseries.Panel, opt *Options) (*Stepper, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	lay, err := opt.layout(raw.Names())
	if err != nil {
		return nil, err
	}
	maxReach := lay.maxReach()
	if maxReach > raw.Len() {
		return nil, fmt.Errorf(
			"deepest lag reaches %d periods back with only %d observations, %w",
			maxReach, raw.Len(), ErrInsufficientHistory,
		)
	}

	rawNames := raw.Names()
	hist := make(map[string][]float64, len(rawNames))
	start := raw.Len() - maxReach
	for _, name := range rawNames {
		src, _ := raw.Column(name)
		col := make([]float64, maxReach)
		copy(col, src[start:])
		hist[name] = col
	}

	return &Stepper{
		lay:      lay,
		rawNames: rawNames,
		hist:     hist,
		synth:    make(map[string][]float64, len(rawNames)),
	}, nil
}

// Labels returns the feature columns emitted per step in vector order.
func (s *Stepper) Labels() *Labels {
	return NewLabels(s.lay.labels)
}

// Steps returns the number of synthesized steps so far.
func (s *Stepper) Steps() int {
	if len(s.rawNames) == 0 {
		return 0
	}
	return len(s.synth[s.rawNames[0]])
}

// Step appends one synthesized step of raw values and returns that step's
// full feature vector in label order.
func (s *Stepper) Step(raw map[string]float64) ([]float64, error) {
	for _, name := range s.rawNames {
		val, exists := raw[name]
		if !exists {
			return nil, fmt.Errorf("column %q, %w", name, ErrMissingRawValue)
		}
		s.synth[name] = append(s.synth[name], val)
	}

	t := s.Steps() - 1
	vec := make([]float64, len(s.lay.labels))
	for i, label := range s.lay.labels {
		val, err := s.value(label, t)
		if err != nil {
			return nil, err
		}
		vec[i] = val
	}
	return vec, nil
}

// value evaluates a feature column at step t, where step 0 is the first
// synthesized step and negative steps index into trailing history.
func (s *Stepper) value(label Feature, t int) (float64, error) {
	switch f := label.(type) {
	case *Raw:
		return s.rawAt(f.Name, t)
	case *Lag:
		base, exists := s.lay.byName[f.Name]
		if !exists {
			return 0, fmt.Errorf("column %q, %w", f.Name, ErrUnknownColumn)
		}
		return s.value(base, t-f.Lag)
	case *Interaction:
		a, exists := s.lay.byName[f.A]
		if !exists {
			return 0, fmt.Errorf("column %q, %w", f.A, ErrUnknownColumn)
		}
		b, exists := s.lay.byName[f.B]
		if !exists {
			return 0, fmt.Errorf("column %q, %w", f.B, ErrUnknownColumn)
		}
		valA, err := s.value(a, t)
		if err != nil {
			return 0, err
		}
		valB, err := s.value(b, t)
		if err != nil {
			return 0, err
		}
		return valA * valB, nil
	}
	return 0, fmt.Errorf("column %q, %w", label.String(), ErrUnknownFeatureType)
}

func (s *Stepper) rawAt(name string, t int) (float64, error) {
	if t >= 0 {
		syn := s.synth[name]
		if t >= len(syn) {
			return 0, fmt.Errorf("column %q at step %d not yet synthesized, %w", name, t, ErrMissingRawValue)
		}
		return syn[t], nil
	}

	hist := s.hist[name]
	idx := len(hist) + t
	if idx < 0 {
		return 0, fmt.Errorf("column %q reaches %d periods before history, %w", name, -idx, ErrInsufficientHistory)
	}
	return hist[idx], nil
}
