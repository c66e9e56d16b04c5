package scene

import (
	"context"
	"image/color"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Readback serves color samples from paint layers with a fixed frame latency,
// like a GPU readback of a render target. Callbacks run on whichever
// goroutine calls Pump.
type Readback struct {
	scene *Scene

	mu       sync.Mutex
	latency  int64
	dropRate float64
	rng      *rand.Rand
	frame    int64
	queue    []*sampleRequest

	delivered int64
	dropped   int64
	cancelled int64
}

type sampleRequest struct {
	surface    SurfaceHandle
	uv         r2.Vec
	due        int64
	onComplete func(color.RGBA, error)
	cancelled  bool
	done       bool
}

// NewReadback creates a readback service over the scene's paint layers.
// dropRate is the probability that a request never completes.
func NewReadback(s *Scene, latencyFrames int, dropRate float64, seed int64) *Readback {
	if latencyFrames < 0 {
		latencyFrames = 0
	}
	return &Readback{
		scene:    s,
		latency:  int64(latencyFrames),
		dropRate: dropRate,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// RequestSample queues a sample of surface at uv. onComplete is called from a
// later Pump unless the request is cancelled or silently dropped.
// The returned func cancels the request; calling it more than once is safe.
func (r *Readback) RequestSample(surface SurfaceHandle, uv r2.Vec, onComplete func(color.RGBA, error)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	req := &sampleRequest{
		surface:    surface,
		uv:         uv,
		due:        r.frame + r.latency,
		onComplete: onComplete,
	}
	if r.dropRate > 0 && r.rng.Float64() < r.dropRate {
		r.dropped++
		slog.Debug("readback request dropped", "surface", surface)
		return func() {}
	}
	r.queue = append(r.queue, req)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if !req.cancelled && !req.done {
			req.cancelled = true
			r.cancelled++
		}
	}
}

// Pump advances one frame and completes every request that has become due.
// It returns the number of callbacks run.
func (r *Readback) Pump() int {
	r.mu.Lock()
	r.frame++
	var due []*sampleRequest
	kept := r.queue[:0]
	for _, req := range r.queue {
		switch {
		case req.cancelled:
		case req.due <= r.frame:
			req.done = true
			due = append(due, req)
		default:
			kept = append(kept, req)
		}
	}
	for i := len(kept); i < len(r.queue); i++ {
		r.queue[i] = nil
	}
	r.queue = kept
	r.delivered += int64(len(due))
	r.mu.Unlock()

	// Callbacks run unlocked so they may issue new requests.
	for _, req := range due {
		layer, err := r.scene.Layer(req.surface)
		if err != nil {
			req.onComplete(color.RGBA{}, err)
			continue
		}
		req.onComplete(layer.Sample(req.uv), nil)
	}
	return len(due)
}

// Run pumps the readback every interval until ctx is done.
func (r *Readback) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("readback loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("readback loop stopped")
			return
		case <-ticker.C:
			r.Pump()
		}
	}
}

// Pending returns the number of queued, uncancelled requests.
func (r *Readback) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.queue {
		if !req.cancelled {
			n++
		}
	}
	return n
}

// ReadbackStats counts readback outcomes since creation.
type ReadbackStats struct {
	Delivered int64
	Dropped   int64
	Cancelled int64
}

// Stats returns the outcome counters.
func (r *Readback) Stats() ReadbackStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReadbackStats{Delivered: r.delivered, Dropped: r.dropped, Cancelled: r.cancelled}
}
