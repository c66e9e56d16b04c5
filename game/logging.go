package game

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/telemetry"
)

// logPerfStats logs per-system timing under the registry's display names.
func (g *Game) logPerfStats(stats telemetry.PerfStats) {
	attrs := []any{
		"tick", g.tick,
		"avg_tick_us", stats.AvgTickDuration.Microseconds(),
		"p99_tick_us", stats.P99TickDuration.Microseconds(),
		"ticks_per_sec", int(stats.TicksPerSecond),
	}
	for _, info := range g.registry.All() {
		avg, ok := stats.PhaseAvg[info.ID]
		if !ok {
			continue
		}
		attrs = append(attrs, info.Name, avg.Round(time.Microsecond).String())
	}
	slog.Info("perf", attrs...)
}

// logWorldState logs how many agents are in each locomotion mode.
func (g *Game) logWorldState() {
	counts := make([]int, components.LocomotionModeCount())
	var grounded int
	for _, s := range g.Agents() {
		counts[s.Mode]++
		if s.Grounded {
			grounded++
		}
	}

	attrs := []any{"tick", g.tick, "agents", len(g.agents), "grounded", grounded, "in_flight", g.sampler.InFlight()}
	for i, name := range components.LocomotionModeNames() {
		attrs = append(attrs, name, counts[i])
	}
	if g.readback != nil {
		rs := g.readback.Stats()
		attrs = append(attrs, "delivered", rs.Delivered, "dropped", rs.Dropped, "cancelled", rs.Cancelled)
	}
	slog.Info("world", attrs...)
}
