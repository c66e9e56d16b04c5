package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
)

const eps = 1e-9

// Box is an oriented box collider.
type Box struct {
	ID      ColliderID
	Name    string
	Center  r3.Vec
	Half    r3.Vec
	Axes    [3]r3.Vec // orthonormal local X, Y, Z axes in world space
	Surface SurfaceHandle
}

// NewBox creates a box from center, half extents and Euler rotation in degrees.
// The rotation is applied as Y * X * Z.
func NewBox(center, half, rotationDeg r3.Vec) *Box {
	b := &Box{Center: center, Half: half}
	basis := [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	rx := rotationDeg.X * math.Pi / 180
	ry := rotationDeg.Y * math.Pi / 180
	rz := rotationDeg.Z * math.Pi / 180
	for i, e := range basis {
		b.Axes[i] = rotY(rotX(rotZ(e, rz), rx), ry)
	}
	return b
}

func rotX(v r3.Vec, a float64) r3.Vec {
	s, c := math.Sincos(a)
	return r3.Vec{X: v.X, Y: v.Y*c - v.Z*s, Z: v.Y*s + v.Z*c}
}

func rotY(v r3.Vec, a float64) r3.Vec {
	s, c := math.Sincos(a)
	return r3.Vec{X: v.X*c + v.Z*s, Y: v.Y, Z: -v.X*s + v.Z*c}
}

func rotZ(v r3.Vec, a float64) r3.Vec {
	s, c := math.Sincos(a)
	return r3.Vec{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c, Z: v.Z}
}

func comp(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func withComp(v r3.Vec, i int, f float64) r3.Vec {
	switch i {
	case 0:
		v.X = f
	case 1:
		v.Y = f
	default:
		v.Z = f
	}
	return v
}

// toLocal converts a world point into box space.
func (b *Box) toLocal(p r3.Vec) r3.Vec {
	return b.toLocalDir(r3.Sub(p, b.Center))
}

// toLocalDir converts a world direction into box space.
func (b *Box) toLocalDir(d r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(d, b.Axes[0]), Y: r3.Dot(d, b.Axes[1]), Z: r3.Dot(d, b.Axes[2])}
}

// toWorldDir converts a box-space direction into world space.
func (b *Box) toWorldDir(d r3.Vec) r3.Vec {
	w := r3.Scale(d.X, b.Axes[0])
	w = r3.Add(w, r3.Scale(d.Y, b.Axes[1]))
	return r3.Add(w, r3.Scale(d.Z, b.Axes[2]))
}

// clampLocal returns the point of the box closest to a box-space point.
func (b *Box) clampLocal(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: math.Max(-b.Half.X, math.Min(b.Half.X, p.X)),
		Y: math.Max(-b.Half.Y, math.Min(b.Half.Y, p.Y)),
		Z: math.Max(-b.Half.Z, math.Min(b.Half.Z, p.Z)),
	}
}

// closestToSegment finds the closest pair between the box-space segment a-c
// and the box by alternating projection. Both sets are convex, so this converges.
func (b *Box) closestToSegment(a, c r3.Vec) (onSeg, onBox r3.Vec) {
	d := r3.Sub(c, a)
	dd := r3.Dot(d, d)
	t := 0.5
	if dd < eps {
		t = 0
	}
	for i := 0; i < 24 && dd >= eps; i++ {
		p := r3.Add(a, r3.Scale(t, d))
		q := b.clampLocal(p)
		nt := math.Max(0, math.Min(1, r3.Dot(r3.Sub(q, a), d)/dd))
		if math.Abs(nt-t) < 1e-12 {
			break
		}
		t = nt
	}
	onSeg = r3.Add(a, r3.Scale(t, d))
	return onSeg, b.clampLocal(onSeg)
}

// Penetration computes how far a capsule centered at center overlaps the box.
// The returned direction is the world-space unit vector that separates the
// capsule from the box; depth is the distance to move along it.
func (b *Box) Penetration(capsule components.Capsule, center r3.Vec) (Penetration, bool) {
	bottom, top := capsule.Segment(center)
	a, c := b.toLocal(bottom), b.toLocal(top)
	p, q := b.closestToSegment(a, c)

	diff := r3.Sub(p, q)
	dist := r3.Norm(diff)
	if dist >= capsule.Radius {
		return Penetration{}, false
	}
	if dist > eps {
		return Penetration{
			Direction: b.toWorldDir(r3.Scale(1/dist, diff)),
			Depth:     capsule.Radius - dist,
		}, true
	}

	// Segment passes through the box: push out along the face axis needing the
	// least travel. Y is tried first so resting contacts prefer vertical push.
	best := math.Inf(1)
	var dir r3.Vec
	for _, i := range [3]int{1, 0, 2} {
		lo := math.Min(comp(a, i), comp(c, i))
		hi := math.Max(comp(a, i), comp(c, i))
		h := comp(b.Half, i)
		if up := h - lo + capsule.Radius; up < best {
			best = up
			dir = withComp(r3.Vec{}, i, 1)
		}
		if down := h + hi + capsule.Radius; down < best {
			best = down
			dir = withComp(r3.Vec{}, i, -1)
		}
	}
	return Penetration{Direction: b.toWorldDir(dir), Depth: best}, true
}

// Raycast intersects a ray with the box using the slab method.
// Rays starting inside the box do not hit it.
func (b *Box) Raycast(origin, dir r3.Vec, maxDist float64) (RayHit, bool) {
	o := b.toLocal(origin)
	d := b.toLocalDir(dir)

	tmin, tmax := 0.0, maxDist
	axis, sign := -1, 0.0
	for i := 0; i < 3; i++ {
		oi, di, h := comp(o, i), comp(d, i), comp(b.Half, i)
		if math.Abs(di) < eps {
			if oi < -h || oi > h {
				return RayHit{}, false
			}
			continue
		}
		t1 := (-h - oi) / di
		t2 := (h - oi) / di
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1
		}
		if t1 > tmin {
			tmin = t1
			axis, sign = i, s
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return RayHit{}, false
		}
	}
	if axis < 0 {
		return RayHit{}, false
	}

	local := r3.Add(o, r3.Scale(tmin, d))
	return RayHit{
		Point:    r3.Add(origin, r3.Scale(tmin, dir)),
		Normal:   b.toWorldDir(withComp(r3.Vec{}, axis, sign)),
		Distance: tmin,
		Collider: b.ID,
		Surface:  b.Surface,
		UV:       b.faceUV(local, axis),
	}, true
}

// faceUV maps a box-space point on the face perpendicular to axis into [0,1]^2.
// Every face of a box shares one paint layer.
func (b *Box) faceUV(local r3.Vec, axis int) r2.Vec {
	var ui, vi int
	switch axis {
	case 0:
		ui, vi = 2, 1
	case 1:
		ui, vi = 0, 2
	default:
		ui, vi = 0, 1
	}
	u := (comp(local, ui) + comp(b.Half, ui)) / (2 * comp(b.Half, ui))
	v := (comp(local, vi) + comp(b.Half, vi)) / (2 * comp(b.Half, vi))
	return r2.Vec{X: math.Max(0, math.Min(1, u)), Y: math.Max(0, math.Min(1, v))}
}
