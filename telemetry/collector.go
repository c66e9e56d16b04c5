package telemetry

import (
	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/systems"
)

// Collector accumulates events within time windows and produces WindowStats.
// It implements systems.Notifier.
type Collector struct {
	windowDurationTicks int64
	dt                  float64

	windowStartTick int64

	// Event counters for current window
	modeChanges int
	modeTicks   [4]int
	speeds      []float64
	events      []Event

	// Sampler counters are cumulative; the collector reports per-window deltas.
	lastSampler systems.SamplerCounters
}

var _ systems.Notifier = (*Collector)(nil)

// NewCollector creates a new stats collector.
// windowTicks is the window length in ticks, dt the tick length.
func NewCollector(windowTicks int, dt float64) *Collector {
	return &Collector{
		windowDurationTicks: int64(max(windowTicks, 1)),
		dt:                  dt,
	}
}

// ModeChanged records a locomotion transition.
func (c *Collector) ModeChanged(agentID uint32, from, to components.LocomotionMode, tick int64) {
	c.modeChanges++
	c.events = append(c.events, NewModeChangedEvent(tick, agentID, from, to))
}

// SpeedChanged records one agent's speed fraction for this tick.
func (c *Collector) SpeedChanged(_ uint32, fraction float64, _ int64) {
	c.speeds = append(c.speeds, fraction)
}

// RecordMode records that one agent spent a tick in mode.
func (c *Collector) RecordMode(mode components.LocomotionMode) {
	if int(mode) < len(c.modeTicks) {
		c.modeTicks[mode]++
	}
}

// RecordEvent appends a lifecycle event.
func (c *Collector) RecordEvent(e Event) {
	c.events = append(c.events, e)
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// sampler holds the sampler's cumulative counters; agents is the live agent count.
// The events recorded during the window are returned alongside.
func (c *Collector) Flush(currentTick int64, agents int, sampler systems.SamplerCounters) (WindowStats, []Event) {
	d := diffCounters(sampler, c.lastSampler)

	var acceptRate float64
	if d.Issued > 0 {
		acceptRate = float64(d.Accepted) / float64(d.Issued)
	}
	speed := ComputeSpeedStats(c.speeds)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Agents: agents,

		ProbesIssued: d.Issued,
		Accepted:     d.Accepted,
		Stale:        d.Stale,
		Orphaned:     d.Orphaned,
		TimedOut:     d.TimedOut,
		SampleErrors: d.Errors,
		Transparent:  d.Transparent,
		AcceptRate:   acceptRate,

		ModeChanges:       c.modeChanges,
		WalkingTicks:      c.modeTicks[components.ModeWalking],
		SwimmingTicks:     c.modeTicks[components.ModeSwimming],
		WallSwimmingTicks: c.modeTicks[components.ModeWallSwimming],
		HostileTicks:      c.modeTicks[components.ModeHostileSurface],

		SpeedMean: speed.Mean,
		SpeedStd:  speed.Std,
		SpeedP10:  speed.P10,
		SpeedP50:  speed.P50,
		SpeedP90:  speed.P90,
	}
	events := c.events

	// Reset for next window
	c.windowStartTick = currentTick
	c.lastSampler = sampler
	c.modeChanges = 0
	c.modeTicks = [4]int{}
	c.speeds = c.speeds[:0]
	c.events = nil

	return stats, events
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}

func diffCounters(now, prev systems.SamplerCounters) systems.SamplerCounters {
	return systems.SamplerCounters{
		Issued:      now.Issued - prev.Issued,
		Accepted:    now.Accepted - prev.Accepted,
		Stale:       now.Stale - prev.Stale,
		Orphaned:    now.Orphaned - prev.Orphaned,
		TimedOut:    now.TimedOut - prev.TimedOut,
		Errors:      now.Errors - prev.Errors,
		Transparent: now.Transparent - prev.Transparent,
	}
}
