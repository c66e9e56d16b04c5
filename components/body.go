package components

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/config"
)

// Capsule is the collision volume of an agent, upright along Y.
type Capsule struct {
	Radius float64
	Height float64 // total height including both hemispheres
}

// CapsuleFromConfig returns the configured agent capsule.
func CapsuleFromConfig(cfg *config.Config) Capsule {
	return Capsule{
		Radius: cfg.Collision.CapsuleRadius,
		Height: cfg.Collision.CapsuleHeight,
	}
}

// HalfSegment returns the distance from the center to each hemisphere center.
func (c Capsule) HalfSegment() float64 {
	h := c.Height/2 - c.Radius
	if h < 0 {
		return 0
	}
	return h
}

// Segment returns the world endpoints of the capsule's inner segment
// when centered at pos.
func (c Capsule) Segment(pos r3.Vec) (bottom, top r3.Vec) {
	h := c.HalfSegment()
	return r3.Vec{X: pos.X, Y: pos.Y - h, Z: pos.Z}, r3.Vec{X: pos.X, Y: pos.Y + h, Z: pos.Z}
}

// Inflate returns the capsule grown by d on every side.
func (c Capsule) Inflate(d float64) Capsule {
	return Capsule{Radius: c.Radius + d, Height: c.Height + 2*d}
}
