package game

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/inkstride/config"
)

// Segment is a span of ticks with constant scripted input.
type Segment struct {
	Ticks     int
	Move      r3.Vec // horizontal force, applied every tick of the segment
	Jump      bool   // on the first tick
	Transform bool   // held for the whole segment
	Despawn   bool   // on the first tick
}

// Script plays timed input segments for one agent in headless runs.
type Script struct {
	segments []Segment
	index    int
	elapsed  int
}

// NewScript builds a script from config segments. Segments shorter than one
// tick are stretched to one.
func NewScript(cfgs []config.SegmentConfig) *Script {
	s := &Script{segments: make([]Segment, 0, len(cfgs))}
	for _, c := range cfgs {
		ticks := c.Ticks
		if ticks < 1 {
			ticks = 1
		}
		s.segments = append(s.segments, Segment{
			Ticks:     ticks,
			Move:      r3.Vec{X: c.Move[0], Z: c.Move[1]},
			Jump:      c.Jump,
			Transform: c.Transform,
			Despawn:   c.Despawn,
		})
	}
	return s
}

// LoadScript reads a YAML list of segments.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	var cfgs []config.SegmentConfig
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	return NewScript(cfgs), nil
}

// Next returns the segment for the current tick and advances by one tick.
// first is true on the segment's first tick; ok is false once the script has ended.
func (s *Script) Next() (seg Segment, first, ok bool) {
	if s.Done() {
		return Segment{}, false, false
	}
	seg = s.segments[s.index]
	first = s.elapsed == 0
	s.elapsed++
	if s.elapsed >= seg.Ticks {
		s.index++
		s.elapsed = 0
	}
	return seg, first, true
}

// Done reports whether every segment has been played.
func (s *Script) Done() bool {
	return s.index >= len(s.segments)
}

// Duration returns the total script length in ticks.
func (s *Script) Duration() int {
	n := 0
	for _, seg := range s.segments {
		n += seg.Ticks
	}
	return n
}

// SetScript attaches a script to an agent, replacing any previous one.
func (g *Game) SetScript(id uint32, s *Script) error {
	if _, err := g.entity(id); err != nil {
		return err
	}
	g.scripts[id] = s
	return nil
}

// runScripts feeds one tick of scripted input, in agent ID order.
func (g *Game) runScripts() {
	if len(g.scripts) == 0 {
		return
	}
	ids := make([]uint32, 0, len(g.scripts))
	for id := range g.scripts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		seg, first, ok := g.scripts[id].Next()
		if !ok {
			continue
		}
		if err := g.applySegment(id, seg, first); err != nil {
			slog.Warn("script input failed", "agent", id, "error", err)
		}
	}
}

func (g *Game) applySegment(id uint32, seg Segment, first bool) error {
	if first && seg.Despawn {
		return g.Despawn(id)
	}
	e, err := g.entity(id)
	if err != nil {
		return err
	}
	if seg.Transform != g.locMap.Get(e).TransformHeld {
		if seg.Transform {
			g.PressTransform(id)
		} else {
			g.ReleaseTransform(id)
		}
	}
	if seg.Move != (r3.Vec{}) {
		g.AddInput(id, seg.Move)
	}
	if first && seg.Jump {
		g.Jump(id)
	}
	return nil
}
