package game

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/telemetry"
)

// AgentState is a value snapshot of one agent.
type AgentState struct {
	ID   uint32
	Name string

	Position r3.Vec
	Yaw      float64

	Horizontal r2.Vec
	Vertical   float64

	Grounded     bool
	GroundNormal r3.Vec

	Mode        components.LocomotionMode
	Transformed bool
	MaxSpeed    float64
	LastSample  color.RGBA

	ProbePending bool
	ProbeToken   uint64
	ProbePaused  bool
}

// Agent returns the state of one agent.
func (g *Game) Agent(id uint32) (AgentState, error) {
	e, err := g.entity(id)
	if err != nil {
		return AgentState{}, err
	}
	return g.state(e), nil
}

// Agents returns the state of every live agent ordered by ID.
func (g *Game) Agents() []AgentState {
	out := make([]AgentState, 0, len(g.agents))
	for _, e := range g.agents {
		out = append(out, g.state(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Game) state(e ecs.Entity) AgentState {
	agent, tr, mot, contact, loc, probe, _ := g.agentMapper.Get(e)
	return AgentState{
		ID:           agent.ID,
		Name:         g.names[agent.ID],
		Position:     tr.Position,
		Yaw:          tr.Yaw,
		Horizontal:   mot.Horizontal,
		Vertical:     mot.Vertical,
		Grounded:     contact.Grounded,
		GroundNormal: contact.GroundNormal,
		Mode:         loc.Mode,
		Transformed:  loc.Transformed,
		MaxSpeed:     loc.MaxSpeed,
		LastSample:   loc.LastSample,
		ProbePending: probe.Pending,
		ProbeToken:   probe.Token,
		ProbePaused:  probe.Paused,
	}
}

// Speed returns |horizontal velocity|.
func (s AgentState) Speed() float64 {
	return r2.Norm(s.Horizontal)
}

// Record flattens the state for snapshots and traces.
func (s AgentState) Record(tick int64) telemetry.AgentRecord {
	c := s.LastSample
	return telemetry.AgentRecord{
		Tick:         tick,
		ID:           s.ID,
		Name:         s.Name,
		X:            s.Position.X,
		Y:            s.Position.Y,
		Z:            s.Position.Z,
		Yaw:          s.Yaw,
		VelX:         s.Horizontal.X,
		VelZ:         s.Horizontal.Y,
		VelY:         s.Vertical,
		Speed:        s.Speed(),
		MaxSpeed:     s.MaxSpeed,
		Grounded:     s.Grounded,
		NormalX:      s.GroundNormal.X,
		NormalY:      s.GroundNormal.Y,
		NormalZ:      s.GroundNormal.Z,
		Mode:         s.Mode.String(),
		Transformed:  s.Transformed,
		Sample:       fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A),
		ProbePending: s.ProbePending,
		ProbeToken:   s.ProbeToken,
		ProbePaused:  s.ProbePaused,
	}
}
