package game

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/telemetry"
)

// SpawnSpec describes a new agent.
type SpawnSpec struct {
	Name     string
	Position r3.Vec  // capsule center
	Yaw      float64 // radians; 0 faces +Z
}

// Spawn creates an agent at rest in Walking mode with its first probe due
// on the next tick.
func (g *Game) Spawn(spec SpawnSpec) (uint32, error) {
	p := spec.Position
	for _, v := range []float64{p.X, p.Y, p.Z, spec.Yaw} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("spawn %q: non-finite transform", spec.Name)
		}
	}

	id := g.nextID
	g.nextID++

	agent := components.Agent{ID: id}
	tr := components.Transform{Position: spec.Position, Yaw: spec.Yaw}
	mot := components.Motion{}
	contact := components.Contact{}
	loc := components.Locomotion{
		Mode:     components.ModeWalking,
		MaxSpeed: g.cfg.Motion.BaseSpeed,
	}
	probe := components.Probe{NextTick: g.tick}
	capsule := components.CapsuleFromConfig(g.cfg)

	g.agents[id] = g.agentMapper.NewEntity(&agent, &tr, &mot, &contact, &loc, &probe, &capsule)
	if spec.Name != "" {
		g.names[id] = spec.Name
	}
	g.collector.RecordEvent(telemetry.NewSpawnEvent(g.tick, id))

	slog.Debug("agent spawned", "agent", id, "name", spec.Name, "position", spec.Position)
	return id, nil
}

// Despawn stops the agent's polling loop, cancels its in-flight sample, and
// removes it. Later callbacks for it are dropped as orphans.
func (g *Game) Despawn(id uint32) error {
	e, ok := g.agents[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}

	g.sampler.Forget(e)
	g.world.RemoveEntity(e)
	delete(g.agents, id)
	delete(g.names, id)
	delete(g.scripts, id)
	g.collector.RecordEvent(telemetry.NewDespawnEvent(g.tick, id))

	slog.Debug("agent despawned", "agent", id)
	return nil
}

// AgentCount returns the number of live agents.
func (g *Game) AgentCount() int {
	return len(g.agents)
}

// spawnFromConfig creates the agents listed in the scene config.
func (g *Game) spawnFromConfig() error {
	for _, ac := range g.cfg.Scene.Agents {
		id, err := g.Spawn(SpawnSpec{
			Name:     ac.Name,
			Position: r3.Vec{X: ac.Position[0], Y: ac.Position[1], Z: ac.Position[2]},
			Yaw:      ac.YawDeg * math.Pi / 180,
		})
		if err != nil {
			return err
		}
		if len(ac.Script) > 0 {
			g.scripts[id] = NewScript(ac.Script)
		}
	}
	return nil
}
