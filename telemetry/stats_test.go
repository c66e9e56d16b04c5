package telemetry

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeSpeedStats(t *testing.T) {
	// unsorted on purpose
	values := []float64{1.0, 0.1, 0.9, 0.2, 0.8, 0.3, 0.7, 0.4, 0.6, 0.5}
	d := ComputeSpeedStats(values)

	if !scalar.EqualWithinAbs(d.Mean, 0.55, 1e-9) {
		t.Errorf("mean = %v, want 0.55", d.Mean)
	}
	if !scalar.EqualWithinAbs(d.Std, math.Sqrt(0.0825), 1e-9) {
		t.Errorf("std = %v, want %v", d.Std, math.Sqrt(0.0825))
	}
	if !scalar.EqualWithinAbs(d.P10, 0.19, 1e-9) {
		t.Errorf("p10 = %v, want 0.19", d.P10)
	}
	if !scalar.EqualWithinAbs(d.P50, 0.55, 1e-9) {
		t.Errorf("p50 = %v, want 0.55", d.P50)
	}
	if !scalar.EqualWithinAbs(d.P90, 0.91, 1e-9) {
		t.Errorf("p90 = %v, want 0.91", d.P90)
	}
	if values[0] != 1.0 {
		t.Error("input slice was reordered")
	}
}

func TestComputeSpeedStatsEmpty(t *testing.T) {
	if d := ComputeSpeedStats(nil); d != (Distribution{}) {
		t.Errorf("empty input = %+v, want zeros", d)
	}
}
