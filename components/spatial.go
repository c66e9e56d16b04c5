package components

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Up is the world up axis.
var Up = r3.Vec{Y: 1}

// Transform holds an agent's world position and facing.
type Transform struct {
	Position r3.Vec  // Capsule center
	Yaw      float64 // radians; 0 faces +Z
}

// Forward returns the horizontal unit facing vector.
func (t Transform) Forward() r3.Vec {
	return r3.Vec{X: math.Sin(t.Yaw), Z: math.Cos(t.Yaw)}
}
