package scene

import (
	"context"
	"errors"
	"image/color"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/config"
)

const tol = 1e-9

var testCapsule = components.Capsule{Radius: 0.4, Height: 1.8}

func vecNear(a, b r3.Vec, eps float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, eps) &&
		scalar.EqualWithinAbs(a.Y, b.Y, eps) &&
		scalar.EqualWithinAbs(a.Z, b.Z, eps)
}

// floorScene returns a 40x1x40 floor whose top face is at y=0.
func floorScene() (*Scene, ColliderID) {
	s := New()
	id := s.Add(NewBox(r3.Vec{Y: -0.5}, r3.Vec{X: 20, Y: 0.5, Z: 20}, r3.Vec{}), SolidPaint(8, 8, color.RGBA{R: 255, A: 255}))
	return s, id
}

// ---------- raycast ----------

func TestRaycast_HitsFloorFromAbove(t *testing.T) {
	s, id := floorScene()

	hit, ok := s.Raycast(r3.Vec{Y: 1}, r3.Vec{Y: -1}, 5)
	if !ok {
		t.Fatal("expected hit")
	}
	if hit.Collider != id {
		t.Errorf("collider = %d, want %d", hit.Collider, id)
	}
	if !scalar.EqualWithinAbs(hit.Distance, 1, tol) {
		t.Errorf("distance = %f, want 1", hit.Distance)
	}
	if !vecNear(hit.Normal, r3.Vec{Y: 1}, tol) {
		t.Errorf("normal = %v, want up", hit.Normal)
	}
	if !hit.Paintable() {
		t.Error("floor should be paintable")
	}
	if !scalar.EqualWithinAbs(hit.UV.X, 0.5, tol) || !scalar.EqualWithinAbs(hit.UV.Y, 0.5, tol) {
		t.Errorf("uv = %v, want (0.5, 0.5)", hit.UV)
	}
}

func TestRaycast_Misses(t *testing.T) {
	s, _ := floorScene()

	tests := []struct {
		name    string
		origin  r3.Vec
		dir     r3.Vec
		maxDist float64
	}{
		{"too short", r3.Vec{Y: 1}, r3.Vec{Y: -1}, 0.5},
		{"pointing away", r3.Vec{Y: 1}, r3.Vec{Y: 1}, 10},
		{"starts inside", r3.Vec{Y: -0.25}, r3.Vec{Y: -1}, 10},
		{"degenerate direction", r3.Vec{Y: 1}, r3.Vec{}, 10},
		{"parallel outside", r3.Vec{Y: 1}, r3.Vec{X: 1}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hit, ok := s.Raycast(tt.origin, tt.dir, tt.maxDist); ok {
				t.Errorf("unexpected hit %+v", hit)
			}
		})
	}
}

func TestRaycast_RotatedBoxNormal(t *testing.T) {
	s := New()
	s.Add(NewBox(r3.Vec{}, r3.Vec{X: 3, Y: 0.25, Z: 2}, r3.Vec{Z: 15}), nil)

	hit, ok := s.Raycast(r3.Vec{Y: 5}, r3.Vec{Y: -1}, 10)
	if !ok {
		t.Fatal("expected hit")
	}
	rad := 15 * math.Pi / 180
	want := r3.Vec{X: -math.Sin(rad), Y: math.Cos(rad)}
	if !vecNear(hit.Normal, want, 1e-9) {
		t.Errorf("normal = %v, want %v", hit.Normal, want)
	}
	if hit.Paintable() {
		t.Error("box without layer should not be paintable")
	}
}

func TestRaycast_NearestWins(t *testing.T) {
	s, floor := floorScene()
	plat := s.Add(NewBox(r3.Vec{Y: 1}, r3.Vec{X: 1, Y: 0.1, Z: 1}, r3.Vec{}), nil)

	hit, ok := s.Raycast(r3.Vec{Y: 3}, r3.Vec{Y: -1}, 10)
	if !ok || hit.Collider != plat {
		t.Errorf("collider = %d, want platform %d", hit.Collider, plat)
	}
	hit, ok = s.Raycast(r3.Vec{X: 5, Y: 3}, r3.Vec{Y: -1}, 10)
	if !ok || hit.Collider != floor {
		t.Errorf("collider = %d, want floor %d", hit.Collider, floor)
	}
}

// ---------- penetration ----------

func TestComputePenetration(t *testing.T) {
	s, floor := floorScene()
	wall := s.Add(NewBox(r3.Vec{Y: 2, Z: 5}, r3.Vec{X: 2, Y: 2, Z: 0.5}, r3.Vec{}), nil)

	tests := []struct {
		name      string
		center    r3.Vec
		collider  ColliderID
		wantHit   bool
		wantDir   r3.Vec
		wantDepth float64
	}{
		{"shallow floor", r3.Vec{Y: 0.85}, floor, true, r3.Vec{Y: 1}, 0.05},
		{"above floor", r3.Vec{Y: 0.95}, floor, false, r3.Vec{}, 0},
		{"segment through floor", r3.Vec{}, floor, true, r3.Vec{Y: 1}, 0.9},
		{"side of wall", r3.Vec{Y: 2, Z: 4.2}, wall, true, r3.Vec{Z: -1}, 0.1},
		{"clear of wall", r3.Vec{Y: 2, Z: 3}, wall, false, r3.Vec{}, 0},
		{"unknown collider", r3.Vec{}, 99, false, r3.Vec{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pen, ok := s.ComputePenetration(testCapsule, tt.center, tt.collider)
			if ok != tt.wantHit {
				t.Fatalf("hit = %v, want %v", ok, tt.wantHit)
			}
			if !ok {
				return
			}
			if !vecNear(pen.Direction, tt.wantDir, 1e-9) {
				t.Errorf("direction = %v, want %v", pen.Direction, tt.wantDir)
			}
			if !scalar.EqualWithinAbs(pen.Depth, tt.wantDepth, 1e-9) {
				t.Errorf("depth = %f, want %f", pen.Depth, tt.wantDepth)
			}
		})
	}
}

func TestComputePenetration_CorrectionSeparates(t *testing.T) {
	s, floor := floorScene()
	center := r3.Vec{}
	pen, ok := s.ComputePenetration(testCapsule, center, floor)
	if !ok {
		t.Fatal("expected penetration")
	}
	center = r3.Add(center, r3.Scale(pen.Depth, pen.Direction))
	if pen, ok := s.ComputePenetration(testCapsule, center, floor); ok && pen.Depth > 1e-9 {
		t.Errorf("still penetrating by %g after correction at %v", pen.Depth, center)
	}
}

// ---------- capsule cast ----------

func TestCapsuleCastAll_OrderedByDistance(t *testing.T) {
	s, floor := floorScene()
	wall := s.Add(NewBox(r3.Vec{Y: 2, Z: 3}, r3.Vec{X: 5, Y: 2, Z: 0.5}, r3.Vec{}), nil)

	hits := s.CapsuleCastAll(testCapsule, r3.Vec{Y: 0.85}, r3.Vec{Z: 1}, 3)
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].Collider != floor || hits[0].Distance != 0 {
		t.Errorf("first hit = %d at %f, want floor at 0", hits[0].Collider, hits[0].Distance)
	}
	if hits[1].Collider != wall {
		t.Errorf("second hit = %d, want wall", hits[1].Collider)
	}
	if hits[1].Distance < 2.0 || hits[1].Distance > 2.3 {
		t.Errorf("wall distance = %f, want ~2.1", hits[1].Distance)
	}
}

func TestCapsuleCastAll_TiesByColliderID(t *testing.T) {
	s := New()
	a := s.Add(NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}), nil)
	b := s.Add(NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}), nil)

	hits := s.CapsuleCastAll(testCapsule, r3.Vec{}, r3.Vec{}, 0)
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].Collider != a || hits[1].Collider != b {
		t.Errorf("order = %d, %d, want %d, %d", hits[0].Collider, hits[1].Collider, a, b)
	}
}

func TestCapsuleCastAll_NothingInReach(t *testing.T) {
	s, _ := floorScene()
	if hits := s.CapsuleCastAll(testCapsule, r3.Vec{Y: 5}, r3.Vec{X: 1}, 2); len(hits) != 0 {
		t.Errorf("hits = %v, want none", hits)
	}
}

// ---------- broadphase ----------

func TestBox_Bounds(t *testing.T) {
	b := NewBox(r3.Vec{X: 1}, r3.Vec{X: 2, Y: 1, Z: 0.5}, r3.Vec{Y: 90})
	lo, hi := b.Bounds()
	if !vecNear(lo, r3.Vec{X: 0.5, Y: -1, Z: -2}, 1e-9) || !vecNear(hi, r3.Vec{X: 1.5, Y: 1, Z: 2}, 1e-9) {
		t.Errorf("bounds = %v..%v", lo, hi)
	}
}

func TestColliderGrid_Query(t *testing.T) {
	g := newColliderGrid(4)
	g.Insert(1, r3.Vec{X: -20, Z: -20}, r3.Vec{X: 20, Z: 20})
	g.Insert(2, r3.Vec{X: 1, Z: 1}, r3.Vec{X: 2, Z: 2})
	g.Insert(3, r3.Vec{X: 50, Z: 50}, r3.Vec{X: 51, Z: 51})

	got := g.QueryInto(nil, r3.Vec{X: -1, Z: -1}, r3.Vec{X: 5, Z: 5})
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("query = %v, want [1 2]", got)
	}
	if got := g.QueryInto(nil, r3.Vec{X: 100, Z: 100}, r3.Vec{X: 101, Z: 101}); len(got) != 0 {
		t.Errorf("empty region = %v", got)
	}
}

func TestRaycast_IgnoresDistantColliders(t *testing.T) {
	s, floor := floorScene()
	s.Add(NewBox(r3.Vec{X: 100, Y: 1}, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}), nil)

	hit, ok := s.Raycast(r3.Vec{X: 100, Y: 5}, r3.Vec{Y: -1}, 10)
	if !ok || hit.Collider == floor {
		t.Errorf("hit = %+v, want the distant box", hit)
	}
	if _, ok := s.Raycast(r3.Vec{X: 60, Y: 5}, r3.Vec{Y: -1}, 10); ok {
		t.Error("ray between colliders should miss")
	}
}

// ---------- config ----------

func TestFromConfig_Defaults(t *testing.T) {
	cfg := config.Default()
	s, err := FromConfig(cfg.Scene)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(s.Boxes()) != len(cfg.Scene.Colliders) {
		t.Fatalf("boxes = %d, want %d", len(s.Boxes()), len(cfg.Scene.Colliders))
	}
	for i, cc := range cfg.Scene.Colliders {
		b := s.Boxes()[i]
		if b.Name != cc.Name {
			t.Errorf("box %d name = %q, want %q", i, b.Name, cc.Name)
		}
		if (b.Surface != 0) != (cc.Paint != nil) {
			t.Errorf("box %s paintable = %v, want %v", b.Name, b.Surface != 0, cc.Paint != nil)
		}
	}
}

func TestFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SceneConfig
	}{
		{"zero extent", config.SceneConfig{Colliders: []config.ColliderConfig{
			{Name: "flat", HalfExtents: [3]float64{1, 0, 1}},
		}}},
		{"bad paint kind", config.SceneConfig{Colliders: []config.ColliderConfig{
			{Name: "odd", HalfExtents: [3]float64{1, 1, 1}, Paint: &config.PaintConfig{Kind: "plaid", Width: 4, Height: 4}},
		}}},
		{"bad paint size", config.SceneConfig{Colliders: []config.ColliderConfig{
			{Name: "tiny", HalfExtents: [3]float64{1, 1, 1}, Paint: &config.PaintConfig{Kind: "solid"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromConfig(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLayer_UnknownSurface(t *testing.T) {
	s := New()
	s.Add(NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}), nil)
	if _, err := s.Layer(1); !errors.Is(err, ErrUnknownSurface) {
		t.Errorf("err = %v, want ErrUnknownSurface", err)
	}
}

// ---------- paint ----------

func TestPaintLayer_Sample(t *testing.T) {
	l := NewPaintLayer(4, 4, color.RGBA{})
	l.Image().SetRGBA(3, 0, color.RGBA{G: 200, A: 255})

	if got := l.Sample(r2.Vec{X: 1, Y: 0}); got.G != 200 {
		t.Errorf("corner sample = %v, want green", got)
	}
	if got := l.Sample(r2.Vec{X: 7, Y: -3}); got.G != 200 {
		t.Errorf("clamped sample = %v, want green", got)
	}
	if got := l.Sample(r2.Vec{}); got.A != 0 {
		t.Errorf("origin sample = %v, want transparent", got)
	}
}

func TestPaintLayer_Splat(t *testing.T) {
	l := NewPaintLayer(32, 32, color.RGBA{})
	l.Splat(r2.Vec{X: 0.5, Y: 0.5}, 0.1, color.RGBA{R: 255, A: 255})

	if got := l.Sample(r2.Vec{X: 0.5, Y: 0.5}); got.R != 255 {
		t.Errorf("center = %v, want red", got)
	}
	if got := l.Sample(r2.Vec{X: 0.05, Y: 0.05}); got.A != 0 {
		t.Errorf("far corner = %v, want transparent", got)
	}
}

func TestPaintFromConfig_Splats(t *testing.T) {
	pc := config.PaintConfig{Kind: "solid", Width: 32, Height: 32, Splats: []config.SplatConfig{
		{UV: [2]float64{0.5, 0.5}, Radius: 0.1, Color: [4]uint8{0, 255, 0, 255}},
	}}
	l, err := PaintFromConfig(pc)
	if err != nil {
		t.Fatalf("PaintFromConfig: %v", err)
	}
	if got := l.Sample(r2.Vec{X: 0.5, Y: 0.5}); got.G != 255 {
		t.Errorf("center = %v, want hostile ink", got)
	}
	if got := l.Sample(r2.Vec{}); got.A != 0 {
		t.Errorf("corner = %v, want transparent", got)
	}

	pc.Splats[0].Radius = 0
	if _, err := PaintFromConfig(pc); err == nil {
		t.Error("zero radius splat should fail")
	}
}

func TestNoisePaint_Deterministic(t *testing.T) {
	p := NoiseParams{Seed: 42, Scale: 0.05, FriendlyCut: 0.55, HostileCut: 0.45, Alpha: 200}
	a := NoisePaint(64, 64, p)
	b := NoisePaint(64, 64, p)

	for i := range a.Image().Pix {
		if a.Image().Pix[i] != b.Image().Pix[i] {
			t.Fatalf("pixel byte %d differs", i)
		}
	}
	friendly, hostile := a.Coverage()
	if friendly <= 0 || hostile <= 0 {
		t.Errorf("coverage = %f friendly, %f hostile, want both present", friendly, hostile)
	}
}

func TestSolidPaint_Coverage(t *testing.T) {
	friendly, hostile := SolidPaint(8, 8, color.RGBA{R: 255, A: 255}).Coverage()
	if friendly != 1 || hostile != 0 {
		t.Errorf("coverage = %f, %f, want 1, 0", friendly, hostile)
	}
}

// ---------- readback ----------

func TestReadback_Latency(t *testing.T) {
	s, _ := floorScene()
	r := NewReadback(s, 2, 0, 1)

	var got []color.RGBA
	r.RequestSample(1, r2.Vec{X: 0.5, Y: 0.5}, func(c color.RGBA, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got = append(got, c)
	})

	if n := r.Pump(); n != 0 || len(got) != 0 {
		t.Fatalf("completed after 1 frame, want 2")
	}
	if n := r.Pump(); n != 1 || len(got) != 1 {
		t.Fatalf("completed = %d, want 1 after 2 frames", len(got))
	}
	if got[0].R != 255 {
		t.Errorf("color = %v, want red", got[0])
	}
	if r.Pending() != 0 {
		t.Errorf("pending = %d, want 0", r.Pending())
	}
}

func TestReadback_Cancel(t *testing.T) {
	s, _ := floorScene()
	r := NewReadback(s, 1, 0, 1)

	called := false
	cancel := r.RequestSample(1, r2.Vec{}, func(color.RGBA, error) { called = true })
	cancel()
	cancel()
	r.Pump()
	r.Pump()

	if called {
		t.Error("cancelled request completed")
	}
	if st := r.Stats(); st.Cancelled != 1 || st.Delivered != 0 {
		t.Errorf("stats = %+v, want 1 cancelled, 0 delivered", st)
	}
}

func TestReadback_DropAll(t *testing.T) {
	s, _ := floorScene()
	r := NewReadback(s, 0, 1, 1)

	called := false
	r.RequestSample(1, r2.Vec{}, func(color.RGBA, error) { called = true })
	for i := 0; i < 5; i++ {
		r.Pump()
	}
	if called {
		t.Error("dropped request completed")
	}
	if st := r.Stats(); st.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", st.Dropped)
	}
}

func TestReadback_UnknownSurface(t *testing.T) {
	s, _ := floorScene()
	r := NewReadback(s, 0, 0, 1)

	var gotErr error
	r.RequestSample(7, r2.Vec{}, func(_ color.RGBA, err error) { gotErr = err })
	r.Pump()
	if !errors.Is(gotErr, ErrUnknownSurface) {
		t.Errorf("err = %v, want ErrUnknownSurface", gotErr)
	}
}

func TestReadback_Run(t *testing.T) {
	s, _ := floorScene()
	r := NewReadback(s, 1, 0, 1)

	done := make(chan color.RGBA, 1)
	r.RequestSample(1, r2.Vec{}, func(c color.RGBA, _ error) { done <- c })

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(stopped)
	}()

	select {
	case c := <-done:
		if c.R != 255 {
			t.Errorf("color = %v, want red", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for readback")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
