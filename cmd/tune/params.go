package main

import (
	"github.com/pthm-cable/flock/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // column name in tune_log.csv
	Path    string  // config path
	Min     float64 // lower bound
	Max     float64 // upper bound
	Default float64
}

// ParamVector holds the set of tunable flocking parameters.
// The ranges, speeds and edge stay fixed so runs remain comparable.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters, with
// defaults taken from base.
func NewParamVector(base config.FlockingConfig) *ParamVector {
	pv := &ParamVector{
		Specs: []ParamSpec{
			{Name: "centering_factor", Path: "flocking.centering_factor", Min: 0.0001, Max: 0.005},
			{Name: "matching_factor", Path: "flocking.matching_factor", Min: 0.005, Max: 0.2},
			{Name: "avoid_factor", Path: "flocking.avoid_factor", Min: 0.01, Max: 0.2},
			{Name: "turn_factor", Path: "flocking.turn_factor", Min: 0.05, Max: 0.5},
		},
	}
	defaults := pv.ExtractFromConfig(base)
	for i := range pv.Specs {
		pv.Specs[i].Default = defaults[i]
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values, clamped into range.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return pv.Clamp(v)
}

// Normalize converts raw parameter values to the [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes parameter values into cfg.Flocking.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	cfg.Flocking.CenteringFactor = clamped[0]
	cfg.Flocking.MatchingFactor = clamped[1]
	cfg.Flocking.AvoidFactor = clamped[2]
	cfg.Flocking.TurnFactor = clamped[3]
}

// ExtractFromConfig reads the current parameter values from a flocking config.
func (pv *ParamVector) ExtractFromConfig(f config.FlockingConfig) []float64 {
	return []float64{
		f.CenteringFactor,
		f.MatchingFactor,
		f.AvoidFactor,
		f.TurnFactor,
	}
}
