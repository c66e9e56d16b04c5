// Package systems contains ECS systems for the controller core.
package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/config"
)

// MotionParams holds the per-tick integration parameters of one agent.
type MotionParams struct {
	MaxSpeed         float64
	MaxAccel         float64
	BrakingForce     float64
	Gravity          float64
	GravityScale     float64
	TerminalVelocity float64
	JumpImpulse      float64

	// Climb is set while wall swimming. Input pushing against WallNormal
	// becomes upward acceleration.
	Climb      bool
	WallNormal r3.Vec
}

// MotionParamsFor returns the parameters for an agent in its current mode.
func MotionParamsFor(cfg *config.Config, loc *components.Locomotion) MotionParams {
	p := MotionParams{
		MaxSpeed:         loc.MaxSpeed,
		MaxAccel:         cfg.Motion.MaxAccel,
		BrakingForce:     cfg.Motion.BrakingForce,
		Gravity:          cfg.Physics.Gravity,
		GravityScale:     cfg.Physics.GravityScale,
		TerminalVelocity: cfg.Physics.TerminalVelocity,
		JumpImpulse:      cfg.Motion.JumpImpulse,
	}
	if loc.Mode == components.ModeWallSwimming {
		p.Climb = true
		p.WallNormal = loc.ProbeNormal
		p.GravityScale = cfg.Locomotion.WallGravityScale
	}
	return p
}

// Integrate advances the velocities of m by one tick and returns the
// displacement to hand to the collision resolver. The accumulated input
// force and queued jump are consumed.
func Integrate(m *components.Motion, contact components.Contact, p MotionParams, dt float64) r3.Vec {
	input := flatten(m.InputForce)
	m.InputForce = r3.Vec{}
	jump := m.JumpQueued
	m.JumpQueued = false

	// Input against the wall turns into climbing.
	climb := 0.0
	if p.Climb {
		if wn := safeUnit2(flatten(p.WallNormal)); wn != (r2.Vec{}) {
			if into := -r2.Dot(input, wn); into > 0 {
				climb = math.Min(into, p.MaxAccel)
				input = r2.Add(input, r2.Scale(into, wn))
			}
		}
	}

	prev := m.Horizontal
	heading := safeUnit2(prev)
	force := input
	if heading != (r2.Vec{}) {
		force = r2.Sub(force, r2.Scale(p.BrakingForce, heading))
	}
	accel := clampMagnitude2(force, p.MaxAccel)
	h := r2.Add(prev, r2.Scale(dt, accel))

	// Braking stops at zero, it never reverses.
	if heading != (r2.Vec{}) && r2.Dot(input, heading) >= 0 {
		if along := r2.Dot(h, heading); along < 0 {
			h = r2.Sub(h, r2.Scale(along, heading))
		}
	}
	m.Horizontal = clampMagnitude2(h, p.MaxSpeed)
	if r2.Norm(m.Horizontal) < epsilon {
		m.Horizontal = r2.Vec{}
	}

	switch {
	case p.Climb:
		v := m.Vertical - p.Gravity*p.GravityScale*dt
		if climb > 0 {
			v += climb * dt
		} else if v > 0 {
			v = math.Max(0, v-p.BrakingForce*dt)
		}
		if contact.Grounded && v < 0 {
			v = 0
		}
		if jump {
			v = p.JumpImpulse
		}
		m.Vertical = clampFloat(v, -p.MaxSpeed, p.MaxSpeed)
	case contact.Grounded:
		m.Vertical = 0
		if jump {
			m.Vertical = p.JumpImpulse
		}
	default:
		m.Vertical -= p.Gravity * p.GravityScale * dt
	}
	m.Vertical = clampFloat(m.Vertical, -p.TerminalVelocity, p.TerminalVelocity)

	delta := lift(r2.Scale(dt, m.Horizontal))
	if contact.Grounded && m.Vertical <= 0 && contact.GroundNormal != (r3.Vec{}) {
		delta = projectOnPlanePreserving(delta, contact.GroundNormal)
	}
	delta.Y += m.Vertical * dt
	return delta
}

// MotionSystem integrates every agent and turns its facing toward its velocity.
type MotionSystem struct {
	filter ecs.Filter4[components.Transform, components.Motion, components.Contact, components.Locomotion]
	cfg    *config.Config
}

// NewMotionSystem creates a new motion system.
func NewMotionSystem(w *ecs.World, cfg *config.Config) *MotionSystem {
	return &MotionSystem{
		filter: *ecs.NewFilter4[components.Transform, components.Motion, components.Contact, components.Locomotion](w),
		cfg:    cfg,
	}
}

// Update runs the motion system.
func (s *MotionSystem) Update(w *ecs.World) {
	dt := s.cfg.Physics.DT
	query := s.filter.Query()
	for query.Next() {
		tr, mot, contact, loc := query.Get()

		mot.Delta = Integrate(mot, *contact, MotionParamsFor(s.cfg, loc), dt)

		if r2.Norm(mot.Horizontal) > 0.05 {
			tr.Yaw = yawOf(mot.Horizontal)
		}
	}
}
