package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	Agents int `csv:"agents"`

	// Surface probes during window
	ProbesIssued int     `csv:"probes_issued"`
	Accepted     int     `csv:"accepted"`
	Stale        int     `csv:"stale"`
	Orphaned     int     `csv:"orphaned"`
	TimedOut     int     `csv:"timed_out"`
	SampleErrors int     `csv:"sample_errors"`
	Transparent  int     `csv:"transparent"` // probes with no paint in reach
	AcceptRate   float64 `csv:"accept_rate"`

	// Locomotion (agent-ticks per mode)
	ModeChanges       int `csv:"mode_changes"`
	WalkingTicks      int `csv:"walking_ticks"`
	SwimmingTicks     int `csv:"swimming_ticks"`
	WallSwimmingTicks int `csv:"wall_swimming_ticks"`
	HostileTicks      int `csv:"hostile_ticks"`

	// Speed as a fraction of the current cap, sampled every agent-tick
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Distribution summarizes a sample of values.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// ComputeSpeedStats summarizes speed fractions. Empty input yields zeros.
func ComputeSpeedStats(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	return Distribution{
		Mean: mean,
		Std:  std,
		P10:  Percentile(sorted, 0.10),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("agents", s.Agents),
		slog.Int("probes_issued", s.ProbesIssued),
		slog.Int("accepted", s.Accepted),
		slog.Int("stale", s.Stale),
		slog.Int("orphaned", s.Orphaned),
		slog.Int("timed_out", s.TimedOut),
		slog.Int("sample_errors", s.SampleErrors),
		slog.Int("transparent", s.Transparent),
		slog.Float64("accept_rate", s.AcceptRate),
		slog.Int("mode_changes", s.ModeChanges),
		slog.Int("walking_ticks", s.WalkingTicks),
		slog.Int("swimming_ticks", s.SwimmingTicks),
		slog.Int("wall_swimming_ticks", s.WallSwimmingTicks),
		slog.Int("hostile_ticks", s.HostileTicks),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
