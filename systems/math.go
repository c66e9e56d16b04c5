package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
)

// epsilon below which a vector is treated as zero length.
const epsilon = 1e-9

// boundaryBandDeg keeps classification stable near the walkable threshold.
// Angles within this band below the threshold are walls, as is the threshold itself.
const boundaryBandDeg = 1e-3

// Clamp functions for common value ranges

// clampFloat clamps a value between min and max.
func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clampMagnitude2 scales v down so that |v| <= maxLen.
func clampMagnitude2(v r2.Vec, maxLen float64) r2.Vec {
	n := r2.Norm(v)
	if n <= maxLen || n < epsilon {
		return v
	}
	return r2.Scale(maxLen/n, v)
}

// Safe normalization

// safeUnit2 returns the unit vector of v, or zero for a degenerate v.
func safeUnit2(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n < epsilon {
		return r2.Vec{}
	}
	return r2.Scale(1/n, v)
}

// safeUnit3 returns the unit vector of v, or zero for a degenerate v.
func safeUnit3(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < epsilon {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}

// Plane helpers

// flatten drops the vertical component of v, returning it in the horizontal plane.
func flatten(v r3.Vec) r2.Vec {
	return r2.Vec{X: v.X, Y: v.Z}
}

// lift turns a horizontal vector back into world space.
func lift(v r2.Vec) r3.Vec {
	return r3.Vec{X: v.X, Z: v.Y}
}

// projectOnPlanePreserving projects v onto the plane with unit normal n and
// rescales the result to |v|. Returns v unchanged if the projection degenerates.
func projectOnPlanePreserving(v, n r3.Vec) r3.Vec {
	mag := r3.Norm(v)
	if mag < epsilon {
		return v
	}
	p := r3.Sub(v, r3.Scale(r3.Dot(v, n), n))
	u := safeUnit3(p)
	if u == (r3.Vec{}) {
		return v
	}
	return r3.Scale(mag, u)
}

// Angles

// AngleFromUpDeg returns the angle in degrees between dir and world up.
// A degenerate dir returns 90 (neither ground nor ceiling).
func AngleFromUpDeg(dir r3.Vec) float64 {
	u := safeUnit3(dir)
	if u == (r3.Vec{}) {
		return 90
	}
	c := clampFloat(r3.Dot(u, components.Up), -1, 1)
	return math.Acos(c) * 180 / math.Pi
}

// IsWalkable reports whether a surface normal counts as ground for the threshold.
// The threshold itself and a small band below it count as walls.
func IsWalkable(normal r3.Vec, walkableDeg float64) bool {
	if r3.Norm(normal) < epsilon {
		return false
	}
	return AngleFromUpDeg(normal) < walkableDeg-boundaryBandDeg
}

// yawOf returns the yaw angle facing along a horizontal direction.
func yawOf(dir r2.Vec) float64 {
	return math.Atan2(dir.X, dir.Y)
}
