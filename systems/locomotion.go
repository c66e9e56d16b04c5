package systems

import (
	"image/color"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/config"
)

// Notifier receives locomotion events for HUD, audio, or animation consumers.
type Notifier interface {
	// ModeChanged fires once per actual mode change.
	ModeChanged(agentID uint32, from, to components.LocomotionMode, tick int64)
	// SpeedChanged fires every tick with |horizontal velocity| / speed cap.
	SpeedChanged(agentID uint32, fraction float64, tick int64)
}

// Notifiers fans events out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) ModeChanged(agentID uint32, from, to components.LocomotionMode, tick int64) {
	for _, n := range ns {
		n.ModeChanged(agentID, from, to, tick)
	}
}

func (ns Notifiers) SpeedChanged(agentID uint32, fraction float64, tick int64) {
	for _, n := range ns {
		n.SpeedChanged(agentID, fraction, tick)
	}
}

// SurfaceReading is everything the state machine looks at when a probe completes.
type SurfaceReading struct {
	Color       color.RGBA
	Normal      r3.Vec // normal of the probed surface; zero if nothing was probed
	Transformed bool
	Grounded    bool
}

// LocomotionRules holds the thresholds and speed factors of the state machine.
type LocomotionRules struct {
	WalkableDeg       float64
	AlphaThreshold    float64
	BaseSpeed         float64
	SwimBoost         float64
	HostileSlowFactor float64
}

// RulesFromConfig returns the configured rules.
func RulesFromConfig(cfg *config.Config) LocomotionRules {
	return LocomotionRules{
		WalkableDeg:       cfg.Collision.WalkableSlopeDeg,
		AlphaThreshold:    cfg.Locomotion.AlphaThreshold,
		BaseSpeed:         cfg.Motion.BaseSpeed,
		SwimBoost:         cfg.Locomotion.SwimBoost,
		HostileSlowFactor: cfg.Locomotion.HostileSlowFactor,
	}
}

// coverage returns alpha in [0,1].
func coverage(c color.RGBA) float64 {
	return float64(c.A) / 255
}

// FriendlyDominant reports whether friendly ink (red) beats hostile ink and
// covers more than threshold.
func FriendlyDominant(c color.RGBA, threshold float64) bool {
	return c.R > c.G && coverage(c) > threshold
}

// HostileDominant reports whether hostile ink (green) beats friendly ink and
// covers more than threshold.
func HostileDominant(c color.RGBA, threshold float64) bool {
	return c.G > c.R && coverage(c) > threshold
}

// Decide picks the mode for a reading. Rows are checked in priority order.
func (r LocomotionRules) Decide(in SurfaceReading) components.LocomotionMode {
	friendly := FriendlyDominant(in.Color, r.AlphaThreshold)
	steep := r3.Norm(in.Normal) > epsilon && !IsWalkable(in.Normal, r.WalkableDeg)

	switch {
	case steep && friendly && in.Transformed:
		return components.ModeWallSwimming
	case HostileDominant(in.Color, r.AlphaThreshold):
		return components.ModeHostileSurface
	case friendly && in.Transformed && in.Grounded:
		return components.ModeSwimming
	default:
		return components.ModeWalking
	}
}

// SpeedCap returns the horizontal speed cap of a mode. The cap is set from
// the base speed, never compounded.
func (r LocomotionRules) SpeedCap(mode components.LocomotionMode) float64 {
	switch mode {
	case components.ModeSwimming:
		return r.BaseSpeed * r.SwimBoost
	case components.ModeHostileSurface:
		return r.BaseSpeed * r.HostileSlowFactor
	default:
		return r.BaseSpeed
	}
}

// LocomotionSystem applies completed probes to agents and emits notifications.
type LocomotionSystem struct {
	filter   ecs.Filter3[components.Agent, components.Motion, components.Locomotion]
	rules    LocomotionRules
	notifier Notifier
}

// NewLocomotionSystem creates a new locomotion system. notifier may be nil.
func NewLocomotionSystem(w *ecs.World, rules LocomotionRules, notifier Notifier) *LocomotionSystem {
	if notifier == nil {
		notifier = Notifiers(nil)
	}
	return &LocomotionSystem{
		filter:   *ecs.NewFilter3[components.Agent, components.Motion, components.Locomotion](w),
		rules:    rules,
		notifier: notifier,
	}
}

// Rules returns the rules in use.
func (s *LocomotionSystem) Rules() LocomotionRules {
	return s.rules
}

// Apply runs the state machine for one accepted reading. Entry effects fire
// only when the mode actually changes; the speed cap is reassigned every time.
// It reports whether the mode changed.
func (s *LocomotionSystem) Apply(agentID uint32, tick int64, in SurfaceReading, loc *components.Locomotion, contact *components.Contact) bool {
	// A held transform re-engages as soon as the agent is off hostile ink.
	if loc.TransformHeld {
		in.Transformed = true
	}
	prev := loc.Mode
	mode := s.rules.Decide(in)

	switch {
	case mode == components.ModeHostileSurface:
		loc.Transformed = false
	case loc.TransformHeld:
		loc.Transformed = true
	case prev == components.ModeHostileSurface:
		loc.Transformed = false
	}
	if mode == components.ModeWallSwimming {
		contact.ClearGround()
	}
	loc.MaxSpeed = s.rules.SpeedCap(mode)
	loc.ProbeNormal = in.Normal
	loc.LastSample = in.Color
	loc.Mode = mode

	if mode == prev {
		return false
	}
	s.notifier.ModeChanged(agentID, prev, mode, tick)
	return true
}

// NotifySpeeds reports the speed fraction of every agent.
func (s *LocomotionSystem) NotifySpeeds(w *ecs.World, tick int64) {
	query := s.filter.Query()
	for query.Next() {
		agent, mot, loc := query.Get()
		s.notifier.SpeedChanged(agent.ID, SpeedFraction(mot.Horizontal, loc.MaxSpeed), tick)
	}
}

// SpeedFraction returns |horizontal| / maxSpeed, or 0 for a zero cap.
func SpeedFraction(horizontal r2.Vec, maxSpeed float64) float64 {
	if maxSpeed <= epsilon {
		return 0
	}
	return r2.Norm(horizontal) / maxSpeed
}

// SetTransform handles the transform input. On hostile ink a press is only
// recorded; Apply engages it once the agent leaves.
func SetTransform(loc *components.Locomotion, held bool) {
	loc.TransformHeld = held
	if held && loc.Mode == components.ModeHostileSurface {
		return
	}
	loc.Transformed = held
}
