package telemetry

import (
	"log/slog"
	"slices"
	"time"
)

// Phase IDs of the controller tick, in run order.
const (
	PhaseDrain     = "drain"
	PhaseSampler   = "sampler"
	PhaseMotion    = "motion"
	PhaseCollision = "collision"
	PhaseNotify    = "notify"
	PhaseTelemetry = "telemetry"
)

// Phases lists the tick phases in run order. The perf.csv columns follow it.
var Phases = []string{PhaseDrain, PhaseSampler, PhaseMotion, PhaseCollision, PhaseNotify, PhaseTelemetry}

// PerfCollector keeps per-tick and per-phase wall times in ring buffers.
// Phase names map to a column index on first use, so the hot path never
// allocates after warm-up.
type PerfCollector struct {
	window int
	next   int
	count  int

	ticks  []time.Duration   // ring of tick durations
	phases [][]time.Duration // phases[col] is a ring parallel to ticks
	names  []string
	column map[string]int

	tickStart  time.Time
	phaseStart time.Time
	current    int // column of the running phase, -1 when none

	lastFrame time.Time
	frameDur  time.Duration
}

// NewPerfCollector creates a collector averaging over the last window ticks.
// The known tick phases are registered up front.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	p := &PerfCollector{
		window:  window,
		ticks:   make([]time.Duration, window),
		column:  make(map[string]int),
		current: -1,
	}
	for _, name := range Phases {
		p.columnOf(name)
	}
	return p
}

func (p *PerfCollector) columnOf(name string) int {
	if col, ok := p.column[name]; ok {
		return col
	}
	col := len(p.names)
	p.column[name] = col
	p.names = append(p.names, name)
	p.phases = append(p.phases, make([]time.Duration, p.window))
	return col
}

// StartTick begins timing a tick and clears the phase slots it will write.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.current = -1
	for _, ring := range p.phases {
		ring[p.next] = 0
	}
}

// StartPhase closes the running phase, if any, and starts timing name.
func (p *PerfCollector) StartPhase(name string) {
	now := time.Now()
	p.closePhase(now)
	p.current = p.columnOf(name)
	p.phaseStart = now
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.current < 0 {
		return
	}
	p.phases[p.current][p.next] += now.Sub(p.phaseStart)
	p.current = -1
}

// EndTick closes the last phase and commits the tick to the window.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.ticks[p.next] = now.Sub(p.tickStart)
	p.next = (p.next + 1) % p.window
	p.count = min(p.count+1, p.window)
}

// RecordFrame marks a frame boundary. Frames run on the readback cadence,
// independent of ticks.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrame.IsZero() {
		p.frameDur = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats summarizes the current window.
type PerfStats struct {
	AvgTickDuration time.Duration
	P50TickDuration time.Duration
	P99TickDuration time.Duration
	MaxTickDuration time.Duration

	// Keyed by phase ID.
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64 // share of the average tick

	TicksPerSecond float64

	FrameDuration time.Duration
	FPS           float64
}

// Stats aggregates the window. Maps are non-nil even before the first tick.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{
		PhaseAvg:      make(map[string]time.Duration, len(p.names)),
		PhasePct:      make(map[string]float64, len(p.names)),
		FrameDuration: p.frameDur,
	}
	if p.frameDur > 0 {
		s.FPS = float64(time.Second) / float64(p.frameDur)
	}
	if p.count == 0 {
		return s
	}

	// The first count slots are filled whether or not the ring has wrapped.
	window := p.ticks[:p.count]
	sorted := make([]float64, len(window))
	var total time.Duration
	for i, d := range window {
		total += d
		sorted[i] = float64(d)
	}
	slices.Sort(sorted)

	n := time.Duration(p.count)
	s.AvgTickDuration = total / n
	s.P50TickDuration = time.Duration(Percentile(sorted, 0.50))
	s.P99TickDuration = time.Duration(Percentile(sorted, 0.99))
	s.MaxTickDuration = time.Duration(sorted[len(sorted)-1])
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}

	for col, name := range p.names {
		var sum time.Duration
		for _, d := range p.phases[col][:p.count] {
			sum += d
		}
		if sum == 0 {
			continue
		}
		avg := sum / n
		s.PhaseAvg[name] = avg
		if s.AvgTickDuration > 0 {
			s.PhasePct[name] = float64(avg) / float64(s.AvgTickDuration) * 100
		}
	}
	return s
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("p99_tick_us", s.P99TickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd    int64   `csv:"window_end"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	P50TickUS    int64   `csv:"p50_tick_us"`
	P99TickUS    int64   `csv:"p99_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	FPS          float64 `csv:"fps"`
	DrainPct     float64 `csv:"drain_pct"`
	SamplerPct   float64 `csv:"sampler_pct"`
	MotionPct    float64 `csv:"motion_pct"`
	CollisionPct float64 `csv:"collision_pct"`
	NotifyPct    float64 `csv:"notify_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into a perf.csv row for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgTickUS:    s.AvgTickDuration.Microseconds(),
		P50TickUS:    s.P50TickDuration.Microseconds(),
		P99TickUS:    s.P99TickDuration.Microseconds(),
		MaxTickUS:    s.MaxTickDuration.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		FPS:          s.FPS,
		DrainPct:     s.PhasePct[PhaseDrain],
		SamplerPct:   s.PhasePct[PhaseSampler],
		MotionPct:    s.PhasePct[PhaseMotion],
		CollisionPct: s.PhasePct[PhaseCollision],
		NotifyPct:    s.PhasePct[PhaseNotify],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
