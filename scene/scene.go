// Package scene provides the static world the controller moves through:
// oriented box colliders, their paint layers, and the color readback service.
package scene

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/config"
)

// ColliderID identifies a collider. IDs start at 1 in insertion order.
type ColliderID uint32

// SurfaceHandle identifies a paintable surface. Zero means not paintable.
type SurfaceHandle uint32

// ErrUnknownSurface is returned when a sample names a surface without a paint layer.
var ErrUnknownSurface = errors.New("unknown surface")

// RayHit describes a raycast or sweep hit.
type RayHit struct {
	Point    r3.Vec
	Normal   r3.Vec
	Distance float64
	Collider ColliderID
	Surface  SurfaceHandle
	UV       r2.Vec
}

// Paintable reports whether the hit surface carries a paint layer.
func (h RayHit) Paintable() bool {
	return h.Surface != 0
}

// Penetration is the minimal translation separating a capsule from a collider.
type Penetration struct {
	Direction r3.Vec // unit, pointing away from the collider
	Depth     float64
}

// Scene holds the colliders and paint layers of a level.
type Scene struct {
	boxes  []*Box
	layers map[SurfaceHandle]*PaintLayer
	grid   *colliderGrid
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		layers: make(map[SurfaceHandle]*PaintLayer),
		grid:   newColliderGrid(gridCellSize),
	}
}

// FromConfig builds a scene from its YAML description.
func FromConfig(cfg config.SceneConfig) (*Scene, error) {
	s := New()
	for i, cc := range cfg.Colliders {
		for k := 0; k < 3; k++ {
			if cc.HalfExtents[k] <= 0 {
				return nil, fmt.Errorf("collider %d (%s): half extents must be positive", i, cc.Name)
			}
		}
		var layer *PaintLayer
		if cc.Paint != nil {
			var err error
			layer, err = PaintFromConfig(*cc.Paint)
			if err != nil {
				return nil, fmt.Errorf("collider %d (%s): %w", i, cc.Name, err)
			}
		}
		b := NewBox(vec3(cc.Center), vec3(cc.HalfExtents), vec3(cc.RotationDeg))
		b.Name = cc.Name
		s.Add(b, layer)
	}
	return s, nil
}

func vec3(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}

// Add inserts a collider, assigning its ID. A non-nil layer makes it paintable.
func (s *Scene) Add(b *Box, layer *PaintLayer) ColliderID {
	b.ID = ColliderID(len(s.boxes) + 1)
	b.Surface = 0
	if layer != nil {
		b.Surface = SurfaceHandle(b.ID)
		s.layers[b.Surface] = layer
	}
	s.boxes = append(s.boxes, b)
	lo, hi := b.Bounds()
	s.grid.Insert(b.ID, lo, hi)
	return b.ID
}

// Boxes returns the colliders in ID order.
func (s *Scene) Boxes() []*Box {
	return s.boxes
}

// Box returns the collider with the given ID, or nil.
func (s *Scene) Box(id ColliderID) *Box {
	if id == 0 || int(id) > len(s.boxes) {
		return nil
	}
	return s.boxes[id-1]
}

// Layer returns the paint layer of a surface.
func (s *Scene) Layer(h SurfaceHandle) (*PaintLayer, error) {
	l, ok := s.layers[h]
	if !ok {
		return nil, fmt.Errorf("surface %d: %w", h, ErrUnknownSurface)
	}
	return l, nil
}

// Raycast returns the nearest hit along dir within maxDist.
// Ties are broken by the lower collider ID.
func (s *Scene) Raycast(origin, dir r3.Vec, maxDist float64) (RayHit, bool) {
	n := r3.Norm(dir)
	if n < eps || maxDist <= 0 {
		return RayHit{}, false
	}
	dir = r3.Scale(1/n, dir)

	lo, hi := sweepBounds(origin, r3.Add(origin, r3.Scale(maxDist, dir)), eps)

	var best RayHit
	found := false
	for _, id := range s.grid.QueryInto(nil, lo, hi) {
		hit, ok := s.Box(id).Raycast(origin, dir, maxDist)
		if !ok {
			continue
		}
		if !found || hit.Distance < best.Distance {
			best = hit
			found = true
		}
	}
	return best, found
}

// CapsuleCastAll sweeps a capsule from center along dir for maxDist and
// returns every collider it touches, ordered by distance then collider ID.
// Colliders already overlapping at the start are reported at distance 0.
func (s *Scene) CapsuleCastAll(capsule components.Capsule, center, dir r3.Vec, maxDist float64) []RayHit {
	n := r3.Norm(dir)
	if n < eps || maxDist < 0 {
		maxDist = 0
		dir = r3.Vec{}
	} else {
		dir = r3.Scale(1/n, dir)
	}

	step := math.Max(capsule.Radius*0.25, 1e-3)
	steps := int(math.Ceil(maxDist / step))

	lo, hi := sweepBounds(center, r3.Add(center, r3.Scale(maxDist, dir)), capsule.Radius+capsule.Height/2)

	var hits []RayHit
	for _, id := range s.grid.QueryInto(nil, lo, hi) {
		b := s.Box(id)
		for k := 0; k <= steps; k++ {
			d := math.Min(float64(k)*step, maxDist)
			p := r3.Add(center, r3.Scale(d, dir))
			pen, ok := b.Penetration(capsule, p)
			if !ok {
				continue
			}
			hits = append(hits, RayHit{
				Point:    p,
				Normal:   pen.Direction,
				Distance: d,
				Collider: b.ID,
				Surface:  b.Surface,
			})
			break
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Collider < hits[j].Collider
	})
	return hits
}

// ComputePenetration returns the overlap of a capsule centered at center with one collider.
func (s *Scene) ComputePenetration(capsule components.Capsule, center r3.Vec, id ColliderID) (Penetration, bool) {
	b := s.Box(id)
	if b == nil {
		return Penetration{}, false
	}
	return b.Penetration(capsule, center)
}
