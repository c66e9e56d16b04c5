// Package components defines ECS components for the controller core.
package components

import (
	"image/color"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// LocomotionMode is the surface-dependent movement mode of an agent.
type LocomotionMode uint8

const (
	ModeWalking        LocomotionMode = iota // Default; base speed cap
	ModeSwimming                             // Transformed form in friendly ink
	ModeWallSwimming                         // Transformed form climbing a friendly wall
	ModeHostileSurface                       // Slowed by hostile ink
)

// Agent holds the identity of a controlled agent.
type Agent struct {
	ID uint32
}

// Motion holds the integrator state of an agent.
// Horizontal and vertical velocity are kept apart so speed clamping never
// renormalizes gravity or jump velocity.
type Motion struct {
	Horizontal r2.Vec // X = world X, Y = world Z
	Vertical   float64
	InputForce r3.Vec // Accumulated by input, consumed and zeroed every tick
	JumpQueued bool
	Delta      r3.Vec // Displacement produced by the integrator this tick
}

// Contact holds the ground contact derived by the collision resolver.
// GroundNormal is non-zero iff Grounded.
type Contact struct {
	Grounded     bool
	GroundNormal r3.Vec
}

// SetGround marks the agent grounded on a surface with the given unit normal.
func (c *Contact) SetGround(normal r3.Vec) {
	c.Grounded = true
	c.GroundNormal = normal
}

// ClearGround marks the agent airborne.
func (c *Contact) ClearGround() {
	c.Grounded = false
	c.GroundNormal = r3.Vec{}
}

// Locomotion holds the state owned by the locomotion state machine.
type Locomotion struct {
	Mode          LocomotionMode
	Transformed   bool    // Alternate body shape active
	TransformHeld bool    // Transform input currently held
	MaxSpeed      float64 // Current horizontal speed cap
	ProbeNormal   r3.Vec  // Surface normal of the probe behind the current mode
	LastSample    color.RGBA
}

// ProbeTarget says which ray located the sampled surface.
type ProbeTarget uint8

const (
	ProbeNone ProbeTarget = iota
	ProbeForward
	ProbeDown
)

// Probe tracks the surface sampling loop of an agent.
// At most one request is outstanding; Token identifies it.
type Probe struct {
	Token      uint64 // Most recently issued token; 0 = none issued
	Pending    bool   // Token is in flight
	Paused     bool   // Polling loop stopped
	Target     ProbeTarget
	Normal     r3.Vec // Surface normal of the in-flight probe hit
	IssuedTick int64
	NextTick   int64 // Tick at which the next probe is due
}
