package systems

import (
	"math"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/scene"
)

var testCapsule = components.Capsule{Radius: 0.4, Height: 1.8}

// scriptedContact is a collider that always reports the same penetration.
type scriptedContact struct {
	id    scene.ColliderID
	dir   r3.Vec
	depth float64
}

// fakeWorld reports every scripted contact on every sweep, in order.
type fakeWorld struct {
	contacts []scriptedContact
	casts    int
	ray      func(origin, dir r3.Vec, maxDist float64) (scene.RayHit, bool)
}

func (w *fakeWorld) Raycast(origin, dir r3.Vec, maxDist float64) (scene.RayHit, bool) {
	if w.ray == nil {
		return scene.RayHit{}, false
	}
	return w.ray(origin, dir, maxDist)
}

func (w *fakeWorld) CapsuleCastAll(_ components.Capsule, center, _ r3.Vec, _ float64) []scene.RayHit {
	w.casts++
	hits := make([]scene.RayHit, len(w.contacts))
	for i, c := range w.contacts {
		hits[i] = scene.RayHit{Point: center, Normal: c.dir, Collider: c.id}
	}
	return hits
}

func (w *fakeWorld) ComputePenetration(_ components.Capsule, _ r3.Vec, id scene.ColliderID) (scene.Penetration, bool) {
	for _, c := range w.contacts {
		if c.id == id {
			return scene.Penetration{Direction: c.dir, Depth: c.depth}, true
		}
	}
	return scene.Penetration{}, false
}

func vecNear(a, b r3.Vec, eps float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, eps) &&
		scalar.EqualWithinAbs(a.Y, b.Y, eps) &&
		scalar.EqualWithinAbs(a.Z, b.Z, eps)
}

func normalAtDeg(deg float64) r3.Vec {
	rad := deg * math.Pi / 180
	return r3.Vec{X: math.Sin(rad), Y: math.Cos(rad)}
}

func testResolver(w WorldQuery) *Resolver {
	return &Resolver{World: w, WalkableDeg: 45, Skin: 0.02, MaxStep: 0.5}
}

func TestResolve_WalkableAndWall(t *testing.T) {
	ground := normalAtDeg(10)
	w := &fakeWorld{contacts: []scriptedContact{
		{id: 1, dir: ground, depth: 0.02},
		{id: 2, dir: r3.Vec{Z: -1}, depth: 0.05},
	}}

	res := testResolver(w).Resolve(r3.Vec{}, testCapsule, r3.Vec{}, r2.Vec{X: 1, Y: 2})

	if !res.Grounded {
		t.Fatal("expected grounded")
	}
	if !vecNear(res.GroundNormal, ground, 1e-12) {
		t.Errorf("ground normal = %v, want %v", res.GroundNormal, ground)
	}
	if !scalar.EqualWithinAbs(res.Horizontal.X, 1, 1e-12) || !scalar.EqualWithinAbs(res.Horizontal.Y, 0, 1e-12) {
		t.Errorf("horizontal = %v, want (1, 0)", res.Horizontal)
	}
	if !scalar.EqualWithinAbs(res.Position.Z, -0.03, 1e-12) {
		t.Errorf("position.Z = %f, want -0.03 (depth minus skin)", res.Position.Z)
	}
	if res.Contacts != 2 {
		t.Errorf("contacts = %d, want 2", res.Contacts)
	}
}

func TestResolve_WallKeepsTangentialMotion(t *testing.T) {
	w := &fakeWorld{contacts: []scriptedContact{{id: 1, dir: r3.Vec{X: 1}, depth: 0.02}}}

	tests := []struct {
		name string
		in   r2.Vec
		want r2.Vec
	}{
		{"into wall", r2.Vec{X: -3, Y: 4}, r2.Vec{X: 0, Y: 4}},
		{"away from wall", r2.Vec{X: 3, Y: 4}, r2.Vec{X: 3, Y: 4}},
		{"along wall", r2.Vec{Y: 5}, r2.Vec{Y: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testResolver(w).Resolve(r3.Vec{}, testCapsule, r3.Vec{}, tt.in)
			if res.Horizontal != tt.want {
				t.Errorf("horizontal = %v, want %v", res.Horizontal, tt.want)
			}
			if res.Grounded {
				t.Error("wall contact should not ground")
			}
		})
	}
}

func TestResolve_LastGroundContactWins(t *testing.T) {
	first, second := normalAtDeg(5), normalAtDeg(20)
	w := &fakeWorld{contacts: []scriptedContact{
		{id: 1, dir: first, depth: 0.02},
		{id: 2, dir: second, depth: 0.02},
	}}

	res := testResolver(w).Resolve(r3.Vec{}, testCapsule, r3.Vec{}, r2.Vec{})
	if !vecNear(res.GroundNormal, second, 1e-12) {
		t.Errorf("ground normal = %v, want last contact %v", res.GroundNormal, second)
	}
}

func TestResolve_NoContactsIsAirborne(t *testing.T) {
	w := &fakeWorld{}
	res := testResolver(w).Resolve(r3.Vec{Y: 3}, testCapsule, r3.Vec{Y: -0.1}, r2.Vec{X: 1})

	if res.Grounded || res.GroundNormal != (r3.Vec{}) {
		t.Errorf("grounded = %v normal = %v, want airborne", res.Grounded, res.GroundNormal)
	}
	if !scalar.EqualWithinAbs(res.Position.Y, 2.9, 1e-12) {
		t.Errorf("position.Y = %f, want 2.9", res.Position.Y)
	}
	if res.Horizontal != (r2.Vec{X: 1}) {
		t.Errorf("horizontal = %v, want unchanged", res.Horizontal)
	}
}

func TestResolve_Ceiling(t *testing.T) {
	w := &fakeWorld{contacts: []scriptedContact{{id: 1, dir: r3.Vec{Y: -1}, depth: 0.1}}}
	res := testResolver(w).Resolve(r3.Vec{}, testCapsule, r3.Vec{Y: 0.05}, r2.Vec{})

	if !res.HitCeiling {
		t.Error("expected ceiling hit")
	}
	if res.Grounded {
		t.Error("ceiling should not ground")
	}
}

func TestResolve_DegenerateCorrectionIgnored(t *testing.T) {
	w := &fakeWorld{contacts: []scriptedContact{{id: 1, dir: r3.Vec{}, depth: 1}}}
	res := testResolver(w).Resolve(r3.Vec{}, testCapsule, r3.Vec{}, r2.Vec{X: 1})

	if res.Contacts != 0 || res.Position != (r3.Vec{}) || res.Grounded {
		t.Errorf("resolution = %+v, want untouched airborne", res)
	}
}

func TestResolve_SubSteps(t *testing.T) {
	w := &fakeWorld{}
	// limit = 0.5 * 0.4 = 0.2 per sub-move
	testResolver(w).Resolve(r3.Vec{}, testCapsule, r3.Vec{X: 1}, r2.Vec{})
	if w.casts != 5 {
		t.Errorf("sweeps = %d, want 5", w.casts)
	}

	w.casts = 0
	testResolver(w).Resolve(r3.Vec{}, testCapsule, r3.Vec{}, r2.Vec{})
	if w.casts != 1 {
		t.Errorf("sweeps for zero move = %d, want 1", w.casts)
	}
}

// ---------- against real geometry ----------

func floorAndWall() *scene.Scene {
	s := scene.New()
	s.Add(scene.NewBox(r3.Vec{Y: -0.5}, r3.Vec{X: 20, Y: 0.5, Z: 20}, r3.Vec{}), nil)
	s.Add(scene.NewBox(r3.Vec{Y: 2, Z: 3}, r3.Vec{X: 5, Y: 2, Z: 0.5}, r3.Vec{}), nil)
	return s
}

func TestResolve_RestingOnFloorStaysGrounded(t *testing.T) {
	r := testResolver(floorAndWall())
	pos := r3.Vec{Y: 0.9}

	for i := 0; i < 30; i++ {
		res := r.Resolve(pos, testCapsule, r3.Vec{}, r2.Vec{})
		if !res.Grounded {
			t.Fatalf("tick %d: not grounded at %v", i, res.Position)
		}
		if !scalar.EqualWithinAbs(res.GroundNormal.Y, 1, 1e-9) {
			t.Fatalf("tick %d: ground normal = %v, want up", i, res.GroundNormal)
		}
		if !vecNear(res.Position, pos, 1e-9) {
			t.Fatalf("tick %d: resting capsule moved to %v", i, res.Position)
		}
		pos = res.Position
	}
}

func TestResolve_LandsOnFloor(t *testing.T) {
	r := testResolver(floorAndWall())
	res := r.Resolve(r3.Vec{Y: 1.2}, testCapsule, r3.Vec{Y: -1}, r2.Vec{})

	if !res.Grounded {
		t.Fatal("expected landing")
	}
	if !scalar.EqualWithinAbs(res.Position.Y, 0.9, 1e-6) {
		t.Errorf("position.Y = %f, want 0.9", res.Position.Y)
	}
}

func TestCollisionSystem_LandingStopsFall(t *testing.T) {
	tests := []struct {
		name         string
		start        r3.Vec
		delta        r3.Vec
		vertical     float64
		wantGrounded bool
		wantVertical float64
	}{
		{"falling onto floor", r3.Vec{Y: 0.95}, r3.Vec{Y: -0.1}, -5.5, true, 0},
		{"falling in open air", r3.Vec{Y: 5}, r3.Vec{Y: -0.1}, -5.5, false, -5.5},
		{"jump tick on floor", r3.Vec{Y: 0.9}, r3.Vec{}, 3, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ecs.NewWorld()
			mapper := ecs.NewMap4[components.Transform, components.Motion, components.Contact, components.Capsule](w)
			capsule := testCapsule
			e := mapper.NewEntity(
				&components.Transform{Position: tt.start},
				&components.Motion{Vertical: tt.vertical, Delta: tt.delta},
				&components.Contact{},
				&capsule,
			)

			NewCollisionSystem(w, testResolver(floorAndWall())).Update(w)

			_, mot, contact, _ := mapper.Get(e)
			if contact.Grounded != tt.wantGrounded {
				t.Fatalf("grounded = %v, want %v", contact.Grounded, tt.wantGrounded)
			}
			if mot.Vertical != tt.wantVertical {
				t.Errorf("vertical = %f, want %f", mot.Vertical, tt.wantVertical)
			}
		})
	}
}

func TestResolve_StopsAtWall(t *testing.T) {
	r := testResolver(floorAndWall())
	pos := r3.Vec{Y: 0.9, Z: 1.5}
	horizontal := r2.Vec{Y: 6}

	for i := 0; i < 60; i++ {
		res := r.Resolve(pos, testCapsule, r3.Vec{Z: 0.1}, horizontal)
		pos, horizontal = res.Position, res.Horizontal
	}
	// wall face at z=2.5, capsule radius 0.4
	if pos.Z > 2.1+1e-6 {
		t.Errorf("position.Z = %f, want <= 2.1", pos.Z)
	}
	if horizontal.Y > 1e-9 {
		t.Errorf("horizontal into wall = %f, want 0", horizontal.Y)
	}
}
