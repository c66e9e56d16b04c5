package systems

import (
	"image/color"
	"log/slog"
	"sync"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/config"
	"github.com/pthm-cable/inkstride/scene"
)

// CancelFunc cancels an outstanding sample request. Safe to call more than once.
type CancelFunc = func()

// ColorService reads paint colors asynchronously. onComplete may run on any
// goroutine, any number of frames later, or never. *scene.Readback implements it.
type ColorService interface {
	RequestSample(surface scene.SurfaceHandle, uv r2.Vec, onComplete func(color.RGBA, error)) CancelFunc
}

// SampleResult is a completed sample waiting in the mailbox.
type SampleResult struct {
	Entity ecs.Entity
	Token  uint64
	Color  color.RGBA
	Err    error
}

// SamplerCounters counts probe outcomes. Reset by the caller.
type SamplerCounters struct {
	Issued      int // async requests issued
	Accepted    int // results applied
	Stale       int // token superseded, probe abandoned, or polling paused
	Orphaned    int // agent no longer alive
	TimedOut    int // abandoned by the watchdog
	Errors      int // results carrying an error
	Transparent int // probes that found no paint and resolved immediately
}

// SurfaceSampler runs the per-agent probe loop: locate a paintable surface,
// request its color, and collect completions in a mailbox that is drained at
// the start of the next tick.
type SurfaceSampler struct {
	world  WorldQuery
	colors ColorService

	forwardProbe float64
	downProbe    float64
	interval     int64
	timeout      int64

	mu      sync.Mutex
	mailbox []SampleResult

	nextToken uint64
	inflight  map[ecs.Entity]CancelFunc

	Counters SamplerCounters
}

// NewSurfaceSampler creates a sampler with the configured probe parameters.
func NewSurfaceSampler(world WorldQuery, colors ColorService, cfg *config.Config) *SurfaceSampler {
	return &SurfaceSampler{
		world:        world,
		colors:       colors,
		forwardProbe: cfg.Sampler.ForwardProbe,
		downProbe:    cfg.Sampler.DownProbe,
		interval:     int64(cfg.Sampler.PollIntervalTicks),
		timeout:      int64(cfg.Sampler.TimeoutTicks),
		inflight:     make(map[ecs.Entity]CancelFunc),
	}
}

// Locate casts the forward probe, then the downward probe, and returns the
// first paintable hit. The forward probe is skipped on hostile ink.
func (s *SurfaceSampler) Locate(tr components.Transform, mode components.LocomotionMode) (scene.RayHit, components.ProbeTarget) {
	if mode != components.ModeHostileSurface {
		if hit, ok := s.world.Raycast(tr.Position, tr.Forward(), s.forwardProbe); ok && hit.Paintable() {
			return hit, components.ProbeForward
		}
	}
	if hit, ok := s.world.Raycast(tr.Position, r3.Vec{Y: -1}, s.downProbe); ok && hit.Paintable() {
		return hit, components.ProbeDown
	}
	return scene.RayHit{}, components.ProbeNone
}

// Poll issues a probe for e if one is due. When no paintable surface is in
// reach it returns a transparent result to apply right away.
func (s *SurfaceSampler) Poll(tick int64, e ecs.Entity, tr *components.Transform, loc *components.Locomotion, probe *components.Probe) (SampleResult, bool) {
	if probe.Paused || probe.Pending || tick < probe.NextTick {
		return SampleResult{}, false
	}
	return s.Request(tick, e, tr, loc, probe)
}

// Request issues a probe for e now, superseding any outstanding one.
func (s *SurfaceSampler) Request(tick int64, e ecs.Entity, tr *components.Transform, loc *components.Locomotion, probe *components.Probe) (SampleResult, bool) {
	hit, target := s.Locate(*tr, loc.Mode)
	s.cancel(e)
	s.nextToken++
	token := s.nextToken
	probe.Token = token
	probe.Target = target
	probe.IssuedTick = tick

	if target == components.ProbeNone {
		probe.Pending = false
		probe.Normal = r3.Vec{}
		probe.NextTick = tick + s.interval
		s.Counters.Transparent++
		return SampleResult{Entity: e, Token: token}, true
	}

	probe.Pending = true
	probe.Normal = hit.Normal
	s.inflight[e] = s.colors.RequestSample(hit.Surface, hit.UV, func(c color.RGBA, err error) {
		s.post(SampleResult{Entity: e, Token: token, Color: c, Err: err})
	})
	s.Counters.Issued++
	return SampleResult{}, false
}

// post is the completion callback body. It only touches the mailbox.
func (s *SurfaceSampler) post(r SampleResult) {
	s.mu.Lock()
	s.mailbox = append(s.mailbox, r)
	s.mu.Unlock()
}

// Drain removes and returns every completed result in arrival order.
func (s *SurfaceSampler) Drain() []SampleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.mailbox
	s.mailbox = nil
	return out
}

// Accept validates a drained result against the agent's probe state and, if
// it is current, closes the probe and schedules the next one.
func (s *SurfaceSampler) Accept(tick int64, r SampleResult, probe *components.Probe) bool {
	if probe.Paused || !probe.Pending || probe.Token != r.Token {
		s.Counters.Stale++
		slog.Debug("stale sample dropped", "entity", r.Entity, "token", r.Token, "current", probe.Token)
		return false
	}
	probe.Pending = false
	probe.NextTick = tick + s.interval
	delete(s.inflight, r.Entity)
	s.Counters.Accepted++
	if r.Err != nil {
		s.Counters.Errors++
		slog.Warn("surface sample failed", "entity", r.Entity, "token", r.Token, "error", r.Err)
	}
	return true
}

// Orphan records a result whose agent no longer exists.
func (s *SurfaceSampler) Orphan(r SampleResult) {
	s.Counters.Orphaned++
	delete(s.inflight, r.Entity)
	slog.Debug("orphaned sample dropped", "entity", r.Entity, "token", r.Token)
}

// Watchdog abandons a probe that has been pending for timeout ticks and makes
// the next poll due immediately. A zero timeout disables it.
func (s *SurfaceSampler) Watchdog(tick int64, e ecs.Entity, probe *components.Probe) bool {
	if s.timeout <= 0 || !probe.Pending || tick-probe.IssuedTick < s.timeout {
		return false
	}
	s.cancel(e)
	probe.Pending = false
	probe.NextTick = tick
	s.Counters.TimedOut++
	slog.Debug("surface probe timed out", "entity", e, "token", probe.Token, "issued", probe.IssuedTick)
	return true
}

// Pause stops the polling loop of e and cancels its in-flight request.
func (s *SurfaceSampler) Pause(e ecs.Entity, probe *components.Probe) {
	s.cancel(e)
	probe.Pending = false
	probe.Paused = true
}

// Resume restarts the polling loop of e with a probe due at tick.
func (s *SurfaceSampler) Resume(tick int64, probe *components.Probe) {
	probe.Paused = false
	probe.NextTick = tick
}

// Forget cancels any request for an agent that is being removed.
func (s *SurfaceSampler) Forget(e ecs.Entity) {
	s.cancel(e)
}

// InFlight returns the number of outstanding requests.
func (s *SurfaceSampler) InFlight() int {
	return len(s.inflight)
}

func (s *SurfaceSampler) cancel(e ecs.Entity) {
	if cancel, ok := s.inflight[e]; ok {
		cancel()
		delete(s.inflight, e)
	}
}
