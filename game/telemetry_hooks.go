package game

import (
	"log/slog"

	"github.com/pthm-cable/inkstride/telemetry"
)

// recordTelemetry records per-tick mode occupancy and, every trace_every
// ticks, a trace row per agent.
func (g *Game) recordTelemetry() {
	query := g.agentFilter.Query()
	for query.Next() {
		_, _, _, loc, _ := query.Get()
		g.collector.RecordMode(loc.Mode)
	}

	every := int64(g.cfg.Telemetry.TraceEvery)
	if g.outputManager == nil || every <= 0 || g.tick%every != 0 {
		return
	}
	agents := g.Agents()
	rows := make([]telemetry.AgentRecord, len(agents))
	for i, s := range agents {
		rows[i] = s.Record(g.tick)
	}
	if err := g.outputManager.WriteTrace(rows); err != nil {
		slog.Error("failed to write trace", "error", err)
	}
}

// flushTelemetry checks if the stats window should be flushed.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	stats, events := g.collector.Flush(g.tick, len(g.agents), g.sampler.Counters)
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		g.logPerfStats(perfStats)
		g.logWorldState()
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
		if err := g.outputManager.WriteEvents(events); err != nil {
			slog.Error("failed to write events", "error", err)
		}
	}
}

// Snapshot builds a snapshot of the current state.
func (g *Game) Snapshot() *telemetry.Snapshot {
	agents := g.Agents()
	snapshot := &telemetry.Snapshot{
		Version:    telemetry.SnapshotVersion,
		Tick:       g.tick,
		SimTimeSec: float64(g.tick) * g.cfg.Physics.DT,
		Agents:     make([]telemetry.AgentRecord, len(agents)),
		Sampler:    g.sampler.Counters,
		InFlight:   g.sampler.InFlight(),
	}
	for i, s := range agents {
		snapshot.Agents[i] = s.Record(g.tick)
	}
	return snapshot
}

// saveSnapshot writes the current snapshot to the snapshot directory.
func (g *Game) saveSnapshot() {
	path, err := telemetry.SaveSnapshot(g.Snapshot(), g.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "tick", g.tick)
}
