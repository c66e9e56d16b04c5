// Package main tunes the motion parameters with CMA-ES until the controller
// hits a set of feel targets.
package main

import (
	"github.com/pthm-cable/inkstride/config"
)

// ParamSpec is one tunable motion parameter and its search range.
type ParamSpec struct {
	Name     string
	Path     string // config key, for reports
	Min, Max float64
	Default  float64

	field func(*config.Config) *float64
}

func (s ParamSpec) clamp(v float64) float64 { return min(max(v, s.Min), s.Max) }

// ParamVector maps between config values and the unit cube the optimizer
// searches.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector returns the tuned motion parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{Specs: []ParamSpec{
		{Name: "base_speed", Path: "motion.base_speed", Min: 2, Max: 12, Default: 6,
			field: func(c *config.Config) *float64 { return &c.Motion.BaseSpeed }},
		{Name: "max_accel", Path: "motion.max_accel", Min: 10, Max: 120, Default: 40,
			field: func(c *config.Config) *float64 { return &c.Motion.MaxAccel }},
		{Name: "braking_force", Path: "motion.braking_force", Min: 2, Max: 60, Default: 20,
			field: func(c *config.Config) *float64 { return &c.Motion.BrakingForce }},
		{Name: "jump_impulse", Path: "motion.jump_impulse", Min: 2, Max: 12, Default: 6.5,
			field: func(c *config.Config) *float64 { return &c.Motion.JumpImpulse }},
	}}
}

// Dim is the search dimension.
func (pv *ParamVector) Dim() int { return len(pv.Specs) }

// DefaultVector returns the default raw values.
func (pv *ParamVector) DefaultVector() []float64 {
	return pv.each(func(_ int, s ParamSpec) float64 { return s.Default })
}

// Normalize maps raw values into [0,1] per parameter range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	return pv.each(func(i int, s ParamSpec) float64 { return (raw[i] - s.Min) / (s.Max - s.Min) })
}

// Denormalize maps unit-cube values back to raw values. The result may lie
// outside the ranges; ApplyToConfig clamps.
func (pv *ParamVector) Denormalize(unit []float64) []float64 {
	return pv.each(func(i int, s ParamSpec) float64 { return s.Min + unit[i]*(s.Max-s.Min) })
}

// Clamp limits raw values to their ranges.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	return pv.each(func(i int, s ParamSpec) float64 { return s.clamp(v[i]) })
}

// ApplyToConfig writes clamped raw values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, raw []float64) {
	for i, s := range pv.Specs {
		*s.field(cfg) = s.clamp(raw[i])
	}
}

// ExtractFromConfig reads the raw values out of cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return pv.each(func(_ int, s ParamSpec) float64 { return *s.field(cfg) })
}

func (pv *ParamVector) each(f func(int, ParamSpec) float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		out[i] = f(i, s)
	}
	return out
}
