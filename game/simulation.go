package game

import (
	"fmt"
	"image/color"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/systems"
	"github.com/pthm-cable/inkstride/telemetry"
)

// tickPhase is one bound entry of the tick schedule.
type tickPhase struct {
	id  string
	run func()
}

// bindSchedule resolves the registry's phases to the methods that run them.
func (g *Game) bindSchedule() error {
	if err := g.registry.Validate(); err != nil {
		return err
	}
	runners := map[string]func(){
		telemetry.PhaseDrain:     g.drainSamples,
		telemetry.PhaseSampler:   g.pollSurfaces,
		telemetry.PhaseMotion:    func() { g.motion.Update(g.world) },
		telemetry.PhaseCollision: func() { g.collision.Update(g.world) },
		telemetry.PhaseNotify:    func() { g.locomotion.NotifySpeeds(g.world, g.tick) },
		telemetry.PhaseTelemetry: func() {
			g.recordTelemetry()
			g.tick++
			g.flushTelemetry()
		},
	}
	g.schedule = g.schedule[:0]
	for _, info := range g.registry.All() {
		run, ok := runners[info.ID]
		if !ok {
			return fmt.Errorf("no runner for phase %q", info.ID)
		}
		g.schedule = append(g.schedule, tickPhase{id: info.ID, run: run})
	}
	return nil
}

// Step runs one fixed physics tick. Locomotion modes change only in the
// sampling phases, before any integration.
func (g *Game) Step() {
	g.runScripts()

	g.perfCollector.StartTick()
	for _, p := range g.schedule {
		g.perfCollector.StartPhase(p.id)
		p.run()
	}
	g.perfCollector.EndTick()
}

// Frame runs the frame cadence: completed readbacks are delivered to the
// sampler mailbox. It may run any number of times between ticks.
func (g *Game) Frame() {
	g.perfCollector.RecordFrame()
	if g.readback != nil && !g.asyncPump {
		g.readback.Pump()
	}
}

// Advance runs one frame and as many fixed ticks as frameDt covers, up to
// physics.max_ticks_per_frame. It returns the number of ticks run.
func (g *Game) Advance(frameDt float64) int {
	g.Frame()

	dt := g.cfg.Physics.DT
	if frameDt > 0 {
		g.accumulator += frameDt
	}
	n := 0
	for g.accumulator >= dt && n < g.cfg.Physics.MaxTicksPerFrame {
		g.Step()
		g.accumulator -= dt
		n++
	}
	// Drop the backlog rather than spiral.
	if g.accumulator >= dt {
		g.accumulator = math.Mod(g.accumulator, dt)
	}
	return n
}

// drainSamples applies every completed sample that is still current.
func (g *Game) drainSamples() {
	for _, r := range g.sampler.Drain() {
		if !g.world.Alive(r.Entity) {
			g.sampler.Orphan(r)
			continue
		}
		probe := g.probeMap.Get(r.Entity)
		if !g.sampler.Accept(g.tick, r, probe) {
			continue
		}
		c := r.Color
		if r.Err != nil {
			c = color.RGBA{}
		}
		g.applySample(r.Entity, c, probe.Normal)
	}
}

// pollSurfaces runs the watchdog and issues due probes. Probes that find no
// paint resolve immediately as transparent.
func (g *Game) pollSurfaces() {
	query := g.agentFilter.Query()
	for query.Next() {
		e := query.Entity()
		agent, tr, contact, loc, probe := query.Get()

		g.sampler.Watchdog(g.tick, e, probe)
		res, immediate := g.sampler.Poll(g.tick, e, tr, loc, probe)
		if !immediate {
			continue
		}
		reading := systems.SurfaceReading{
			Color:       res.Color,
			Transformed: loc.Transformed,
			Grounded:    contact.Grounded,
		}
		g.locomotion.Apply(agent.ID, g.tick, reading, loc, contact)
	}
}

func (g *Game) applySample(e ecs.Entity, c color.RGBA, normal r3.Vec) {
	agent := g.agentMap.Get(e)
	loc := g.locMap.Get(e)
	contact := g.contactMap.Get(e)

	reading := systems.SurfaceReading{
		Color:       c,
		Normal:      normal,
		Transformed: loc.Transformed,
		Grounded:    contact.Grounded,
	}
	g.locomotion.Apply(agent.ID, g.tick, reading, loc, contact)
}
