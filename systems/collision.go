package systems

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/config"
	"github.com/pthm-cable/inkstride/scene"
)

// WorldQuery answers geometric questions about the static world.
// *scene.Scene implements it.
type WorldQuery interface {
	Raycast(origin, dir r3.Vec, maxDist float64) (scene.RayHit, bool)
	CapsuleCastAll(capsule components.Capsule, center, dir r3.Vec, maxDist float64) []scene.RayHit
	ComputePenetration(capsule components.Capsule, center r3.Vec, collider scene.ColliderID) (scene.Penetration, bool)
}

// Resolution is the outcome of resolving one tick of movement.
type Resolution struct {
	Position     r3.Vec
	Grounded     bool
	GroundNormal r3.Vec // zero unless Grounded
	Horizontal   r2.Vec // horizontal velocity with into-wall components removed
	HitCeiling   bool
	Contacts     int
}

// Resolver moves a capsule through the world, correcting penetration and
// classifying contacts as ground or wall.
type Resolver struct {
	World       WorldQuery
	WalkableDeg float64
	Skin        float64 // contact offset kept between capsule and world
	MaxStep     float64 // longest sub-move, as a fraction of the capsule radius
}

// NewResolver creates a resolver with the configured collision parameters.
func NewResolver(world WorldQuery, cfg *config.Config) *Resolver {
	return &Resolver{
		World:       world,
		WalkableDeg: cfg.Collision.WalkableSlopeDeg,
		Skin:        cfg.Collision.Skin,
		MaxStep:     cfg.Collision.MaxStep,
	}
}

// Resolve applies delta to a capsule centered at pos.
//
// The move is split into sub-moves no longer than MaxStep radii. For each
// sub-move every collider touched by the sweep is collected, the position
// advances, and each collider in sweep order is asked for its penetration
// against the already corrected capsule. Ground contacts set the ground
// normal (the last one processed wins); other contacts strip the into-wall
// part of horizontal. No contacts at all leaves the capsule airborne.
func (r *Resolver) Resolve(pos r3.Vec, capsule components.Capsule, delta r3.Vec, horizontal r2.Vec) Resolution {
	res := Resolution{Position: pos, Horizontal: horizontal}
	probe := capsule.Inflate(r.Skin)

	steps := 1
	if limit := r.MaxStep * capsule.Radius; limit > 0 {
		if n := int(math.Ceil(r3.Norm(delta) / limit)); n > 1 {
			steps = n
		}
	}
	sub := r3.Scale(1/float64(steps), delta)
	dir := safeUnit3(sub)
	length := r3.Norm(sub)

	for i := 0; i < steps; i++ {
		hits := r.World.CapsuleCastAll(probe, res.Position, dir, length)
		res.Position = r3.Add(res.Position, sub)

		for _, hit := range hits {
			pen, ok := r.World.ComputePenetration(probe, res.Position, hit.Collider)
			if !ok {
				continue
			}
			n := safeUnit3(pen.Direction)
			if n == (r3.Vec{}) {
				continue
			}
			res.Contacts++
			if correction := pen.Depth - r.Skin; correction > 0 {
				res.Position = r3.Add(res.Position, r3.Scale(correction, n))
			}
			r.classify(&res, n)
		}
	}

	if res.Contacts == 0 {
		res.Grounded = false
		res.GroundNormal = r3.Vec{}
	}
	return res
}

func (r *Resolver) classify(res *Resolution, n r3.Vec) {
	if IsWalkable(n, r.WalkableDeg) {
		res.Grounded = true
		res.GroundNormal = n
		return
	}
	if n.Y < -epsilon {
		res.HitCeiling = true
	}
	wall := safeUnit2(flatten(n))
	if wall == (r2.Vec{}) {
		return
	}
	if into := r2.Dot(res.Horizontal, wall); into < 0 {
		res.Horizontal = r2.Sub(res.Horizontal, r2.Scale(into, wall))
	}
}

// CollisionSystem resolves the integrator's displacement for every agent.
type CollisionSystem struct {
	filter   ecs.Filter4[components.Transform, components.Motion, components.Contact, components.Capsule]
	resolver *Resolver
}

// NewCollisionSystem creates a new collision system.
func NewCollisionSystem(w *ecs.World, resolver *Resolver) *CollisionSystem {
	return &CollisionSystem{
		filter:   *ecs.NewFilter4[components.Transform, components.Motion, components.Contact, components.Capsule](w),
		resolver: resolver,
	}
}

// Update runs the collision system.
func (s *CollisionSystem) Update(w *ecs.World) {
	query := s.filter.Query()
	for query.Next() {
		tr, mot, contact, capsule := query.Get()

		res := s.resolver.Resolve(tr.Position, *capsule, mot.Delta, mot.Horizontal)
		mot.Delta = r3.Vec{}
		tr.Position = res.Position
		mot.Horizontal = res.Horizontal
		if res.HitCeiling && mot.Vertical > 0 {
			mot.Vertical = 0
		}

		if res.Grounded {
			// landing stops the fall on the same tick
			if mot.Vertical < 0 {
				mot.Vertical = 0
			}
			contact.SetGround(res.GroundNormal)
		} else {
			contact.ClearGround()
		}
	}
}
