package scene

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// gridCellSize is the edge length of a broadphase cell in meters.
const gridCellSize = 4.0

type cellKey struct {
	col, row int
}

// colliderGrid buckets colliders by the XZ cells their bounds cover, so
// queries only test colliders near the query region.
type colliderGrid struct {
	cellSize float64
	cells    map[cellKey][]ColliderID
}

func newColliderGrid(cellSize float64) *colliderGrid {
	return &colliderGrid{cellSize: cellSize, cells: make(map[cellKey][]ColliderID)}
}

// Insert adds a collider covering the XZ bounds [lo, hi].
func (g *colliderGrid) Insert(id ColliderID, lo, hi r3.Vec) {
	c0, r0 := g.cell(lo)
	c1, r1 := g.cell(hi)
	for col := c0; col <= c1; col++ {
		for row := r0; row <= r1; row++ {
			k := cellKey{col, row}
			g.cells[k] = append(g.cells[k], id)
		}
	}
}

// QueryInto appends the IDs of colliders whose cells overlap [lo, hi] to
// dst, ascending and without duplicates.
func (g *colliderGrid) QueryInto(dst []ColliderID, lo, hi r3.Vec) []ColliderID {
	dst = dst[:0]
	c0, r0 := g.cell(lo)
	c1, r1 := g.cell(hi)
	for col := c0; col <= c1; col++ {
		for row := r0; row <= r1; row++ {
			dst = append(dst, g.cells[cellKey{col, row}]...)
		}
	}
	slices.Sort(dst)
	return slices.Compact(dst)
}

func (g *colliderGrid) cell(p r3.Vec) (col, row int) {
	return int(math.Floor(p.X / g.cellSize)), int(math.Floor(p.Z / g.cellSize))
}

// Bounds returns the world axis-aligned bounds of the box.
func (b *Box) Bounds() (lo, hi r3.Vec) {
	var ext r3.Vec
	for k, axis := range b.Axes {
		h := comp(b.Half, k)
		ext.X += math.Abs(axis.X) * h
		ext.Y += math.Abs(axis.Y) * h
		ext.Z += math.Abs(axis.Z) * h
	}
	return r3.Sub(b.Center, ext), r3.Add(b.Center, ext)
}

// sweepBounds returns the bounds of the segment from a to b grown by pad.
func sweepBounds(a, b r3.Vec, pad float64) (lo, hi r3.Vec) {
	p := r3.Vec{X: pad, Y: pad, Z: pad}
	lo = r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
	hi = r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
	return r3.Sub(lo, p), r3.Add(hi, p)
}
