// Package config provides configuration loading and access for the controller core.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all controller configuration parameters.
type Config struct {
	Physics    PhysicsConfig    `yaml:"physics"`
	Motion     MotionConfig     `yaml:"motion"`
	Collision  CollisionConfig  `yaml:"collision"`
	Sampler    SamplerConfig    `yaml:"sampler"`
	Locomotion LocomotionConfig `yaml:"locomotion"`
	Readback   ReadbackConfig   `yaml:"readback"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Scene      SceneConfig      `yaml:"scene"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds fixed-step integration parameters.
type PhysicsConfig struct {
	DT               float64 `yaml:"dt"`                  // Seconds per physics tick
	Gravity          float64 `yaml:"gravity"`             // Downward acceleration magnitude
	GravityScale     float64 `yaml:"gravity_scale"`       // Multiplier on gravity while airborne
	TerminalVelocity float64 `yaml:"terminal_velocity"`   // Max |vertical velocity|
	MaxTicksPerFrame int     `yaml:"max_ticks_per_frame"` // Accumulator cap per Advance call
}

// MotionConfig holds locomotion feel parameters.
type MotionConfig struct {
	BaseSpeed    float64 `yaml:"base_speed"`    // Walking horizontal speed cap
	MaxAccel     float64 `yaml:"max_accel"`     // Clamp on |input - braking|
	BrakingForce float64 `yaml:"braking_force"` // Constant force opposing motion
	JumpImpulse  float64 `yaml:"jump_impulse"`  // Vertical velocity set on jump
}

// CollisionConfig holds capsule and contact classification parameters.
type CollisionConfig struct {
	CapsuleRadius    float64 `yaml:"capsule_radius"`
	CapsuleHeight    float64 `yaml:"capsule_height"`     // Total height including both caps
	WalkableSlopeDeg float64 `yaml:"walkable_slope_deg"` // Max ground angle from up
	Skin             float64 `yaml:"skin"`               // Contact offset kept between capsule and world
	MaxStep          float64 `yaml:"max_step"`           // Sub-move length as a fraction of radius
}

// SamplerConfig holds surface probe parameters.
type SamplerConfig struct {
	ForwardProbe      float64 `yaml:"forward_probe"`       // Ray length from capsule center along facing
	DownProbe         float64 `yaml:"down_probe"`          // Ray length from capsule center downward
	PollIntervalTicks int     `yaml:"poll_interval_ticks"` // Ticks between an accepted result and the next probe
	TimeoutTicks      int     `yaml:"timeout_ticks"`       // Watchdog; 0 disables
}

// LocomotionConfig holds mode selection parameters.
type LocomotionConfig struct {
	AlphaThreshold    float64 `yaml:"alpha_threshold"`     // Coverage above which ink counts
	SwimBoost         float64 `yaml:"swim_boost"`          // Speed cap multiplier while swimming
	HostileSlowFactor float64 `yaml:"hostile_slow_factor"` // Speed cap multiplier on hostile ink
	WallGravityScale  float64 `yaml:"wall_gravity_scale"`  // Gravity multiplier while wall swimming
}

// ReadbackConfig holds parameters of the built-in color readback service.
type ReadbackConfig struct {
	LatencyFrames int     `yaml:"latency_frames"` // Frames between request and callback
	DropRate      float64 `yaml:"drop_rate"`      // Probability a request never completes
	Seed          int64   `yaml:"seed"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`          // Seconds per stats window
	PerfCollectorWindow int     `yaml:"perf_collector_window"` // Ticks averaged by the perf collector
	TraceEvery          int     `yaml:"trace_every"`           // Ticks between trace rows; 0 disables
}

// SceneConfig describes the world geometry, paint, and agents for a run.
type SceneConfig struct {
	Colliders []ColliderConfig `yaml:"colliders"`
	Agents    []AgentConfig    `yaml:"agents"`
}

// ColliderConfig describes one oriented box collider.
type ColliderConfig struct {
	Name        string       `yaml:"name"`
	Center      [3]float64   `yaml:"center"`
	HalfExtents [3]float64   `yaml:"half_extents"`
	RotationDeg [3]float64   `yaml:"rotation_deg"` // Euler X, Y, Z applied as Y*X*Z
	Paint       *PaintConfig `yaml:"paint,omitempty"`
}

// PaintConfig describes the paint layer of a paintable collider.
type PaintConfig struct {
	Kind        string   `yaml:"kind"` // "solid" or "noise"
	Width       int      `yaml:"width"`
	Height      int      `yaml:"height"`
	Color       [4]uint8 `yaml:"color"`        // solid only
	Seed        int64    `yaml:"seed"`         // noise only
	Scale       float64  `yaml:"scale"`        // noise frequency in texels
	FriendlyCut float64  `yaml:"friendly_cut"` // noise value above which friendly ink is laid
	HostileCut  float64  `yaml:"hostile_cut"`  // noise value below which hostile ink is laid
	Alpha       uint8    `yaml:"alpha"`        // coverage of noise ink
	Base        [4]uint8 `yaml:"base"`         // color of unpainted texels

	Splats []SplatConfig `yaml:"splats"` // discs painted over the layer, in order
}

// SplatConfig is a disc of ink in UV space.
type SplatConfig struct {
	UV     [2]float64 `yaml:"uv"`
	Radius float64    `yaml:"radius"` // in UV units
	Color  [4]uint8   `yaml:"color"`
}

// AgentConfig describes an agent spawn and its input script.
type AgentConfig struct {
	Name     string          `yaml:"name"`
	Position [3]float64      `yaml:"position"`
	YawDeg   float64         `yaml:"yaw_deg"`
	Script   []SegmentConfig `yaml:"script"`
}

// SegmentConfig is one timed segment of scripted input.
type SegmentConfig struct {
	Ticks     int        `yaml:"ticks"`
	Move      [2]float64 `yaml:"move"` // World X, Z force
	Jump      bool       `yaml:"jump"` // Jump on the first tick of the segment
	Transform bool       `yaml:"transform"`
	Despawn   bool       `yaml:"despawn"` // Remove the agent when the segment starts
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	StatsWindowTicks int     // Telemetry.StatsWindow in ticks
	TickRate         float64 // 1 / Physics.DT
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	return cfg, nil
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate rejects values the controller cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Physics.DT <= 0:
		return fmt.Errorf("%w: physics.dt must be positive", ErrInvalid)
	case c.Physics.TerminalVelocity <= 0:
		return fmt.Errorf("%w: physics.terminal_velocity must be positive", ErrInvalid)
	case c.Motion.BaseSpeed <= 0:
		return fmt.Errorf("%w: motion.base_speed must be positive", ErrInvalid)
	case c.Motion.MaxAccel <= 0:
		return fmt.Errorf("%w: motion.max_accel must be positive", ErrInvalid)
	case c.Collision.CapsuleRadius <= 0:
		return fmt.Errorf("%w: collision.capsule_radius must be positive", ErrInvalid)
	case c.Collision.CapsuleHeight < 2*c.Collision.CapsuleRadius:
		return fmt.Errorf("%w: collision.capsule_height must be at least twice the radius", ErrInvalid)
	case c.Collision.WalkableSlopeDeg <= 0 || c.Collision.WalkableSlopeDeg >= 90:
		return fmt.Errorf("%w: collision.walkable_slope_deg must be in (0, 90)", ErrInvalid)
	case c.Collision.MaxStep <= 0:
		return fmt.Errorf("%w: collision.max_step must be positive", ErrInvalid)
	case c.Sampler.PollIntervalTicks < 1:
		return fmt.Errorf("%w: sampler.poll_interval_ticks must be at least 1", ErrInvalid)
	case c.Locomotion.AlphaThreshold < 0 || c.Locomotion.AlphaThreshold >= 1:
		return fmt.Errorf("%w: locomotion.alpha_threshold must be in [0, 1)", ErrInvalid)
	case c.Locomotion.SwimBoost < 0:
		return fmt.Errorf("%w: locomotion.swim_boost must not be negative", ErrInvalid)
	case c.Locomotion.HostileSlowFactor < 0:
		return fmt.Errorf("%w: locomotion.hostile_slow_factor must not be negative", ErrInvalid)
	case c.Readback.DropRate < 0 || c.Readback.DropRate > 1:
		return fmt.Errorf("%w: readback.drop_rate must be in [0, 1]", ErrInvalid)
	}
	return nil
}

// ComputeDerived recalculates Derived. Load calls it; call it again after
// changing physics or telemetry fields by hand.
func (c *Config) ComputeDerived() {
	c.Derived.TickRate = 1 / c.Physics.DT

	c.Derived.StatsWindowTicks = int(math.Round(c.Telemetry.StatsWindow / c.Physics.DT))
	if c.Derived.StatsWindowTicks < 1 {
		c.Derived.StatsWindowTicks = 1
	}

	if c.Physics.MaxTicksPerFrame < 1 {
		c.Physics.MaxTicksPerFrame = 1
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
