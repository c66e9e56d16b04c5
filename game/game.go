// Package game wires the controller systems into a fixed-step loop over an ark world.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/inkstride/components"
	"github.com/pthm-cable/inkstride/config"
	"github.com/pthm-cable/inkstride/scene"
	"github.com/pthm-cable/inkstride/systems"
	"github.com/pthm-cable/inkstride/telemetry"
)

// ErrUnknownAgent is returned for IDs that were never spawned or already despawned.
var ErrUnknownAgent = errors.New("unknown agent")

// Options configures a Game beyond its config.
type Options struct {
	// Scene overrides the scene built from cfg.Scene.
	Scene *scene.Scene
	// Colors overrides the built-in readback. Frame does not pump a custom service.
	Colors systems.ColorService
	// Notifier receives locomotion events in addition to the telemetry collector.
	Notifier systems.Notifier
	// SkipConfigAgents leaves cfg.Scene.Agents unspawned.
	SkipConfigAgents bool

	LogStats      bool
	StatsCallback func(telemetry.WindowStats)
	OutputDir     string
	SnapshotDir   string
}

// Game holds the complete controller state.
type Game struct {
	cfg   *config.Config
	world *ecs.World

	agentMapper *ecs.Map7[
		components.Agent,
		components.Transform,
		components.Motion,
		components.Contact,
		components.Locomotion,
		components.Probe,
		components.Capsule,
	]
	agentFilter *ecs.Filter5[
		components.Agent,
		components.Transform,
		components.Contact,
		components.Locomotion,
		components.Probe,
	]

	// Individual component mappers for lookups
	agentMap   *ecs.Map1[components.Agent]
	trMap      *ecs.Map1[components.Transform]
	motionMap  *ecs.Map1[components.Motion]
	contactMap *ecs.Map1[components.Contact]
	locMap     *ecs.Map1[components.Locomotion]
	probeMap   *ecs.Map1[components.Probe]

	agents  map[uint32]ecs.Entity
	names   map[uint32]string
	scripts map[uint32]*Script
	nextID  uint32

	scene     *scene.Scene
	readback  *scene.Readback
	asyncPump bool

	sampler    *systems.SurfaceSampler
	motion     *systems.MotionSystem
	collision  *systems.CollisionSystem
	locomotion *systems.LocomotionSystem
	registry   *systems.SystemRegistry
	schedule   []tickPhase

	// Telemetry
	collector     *telemetry.Collector
	perfCollector *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	statsCallback func(telemetry.WindowStats)
	logStats      bool
	snapshotDir   string

	tick        int64
	accumulator float64
}

// New creates a game from cfg. Agents listed in cfg.Scene.Agents are spawned
// with their scripts unless opts.SkipConfigAgents is set.
func New(cfg *config.Config, opts Options) (*Game, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Callers may have edited fields since Load.
	cfg.ComputeDerived()

	sc := opts.Scene
	if sc == nil {
		var err error
		if sc, err = scene.FromConfig(cfg.Scene); err != nil {
			return nil, fmt.Errorf("building scene: %w", err)
		}
	}

	world := ecs.NewWorld()
	g := &Game{
		cfg:   cfg,
		world: world,
		agentMapper: ecs.NewMap7[
			components.Agent,
			components.Transform,
			components.Motion,
			components.Contact,
			components.Locomotion,
			components.Probe,
			components.Capsule,
		](world),
		agentFilter: ecs.NewFilter5[
			components.Agent,
			components.Transform,
			components.Contact,
			components.Locomotion,
			components.Probe,
		](world),
		agentMap:   ecs.NewMap1[components.Agent](world),
		trMap:      ecs.NewMap1[components.Transform](world),
		motionMap:  ecs.NewMap1[components.Motion](world),
		contactMap: ecs.NewMap1[components.Contact](world),
		locMap:     ecs.NewMap1[components.Locomotion](world),
		probeMap:   ecs.NewMap1[components.Probe](world),
		agents:     make(map[uint32]ecs.Entity),
		names:      make(map[uint32]string),
		scripts:    make(map[uint32]*Script),
		nextID:     1,
		scene:      sc,
		registry:   systems.NewSystemRegistry(),

		collector:     telemetry.NewCollector(cfg.Derived.StatsWindowTicks, cfg.Physics.DT),
		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		statsCallback: opts.StatsCallback,
		logStats:      opts.LogStats,
		snapshotDir:   opts.SnapshotDir,
	}

	colors := opts.Colors
	if colors == nil {
		g.readback = scene.NewReadback(sc, cfg.Readback.LatencyFrames, cfg.Readback.DropRate, cfg.Readback.Seed)
		colors = g.readback
	}

	notifiers := systems.Notifiers{g.collector}
	if opts.Notifier != nil {
		notifiers = append(notifiers, opts.Notifier)
	}

	g.sampler = systems.NewSurfaceSampler(sc, colors, cfg)
	g.motion = systems.NewMotionSystem(world, cfg)
	g.collision = systems.NewCollisionSystem(world, systems.NewResolver(sc, cfg))
	g.locomotion = systems.NewLocomotionSystem(world, systems.RulesFromConfig(cfg), notifiers)

	if err := g.bindSchedule(); err != nil {
		return nil, err
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	g.outputManager = om
	if err := om.WriteConfig(cfg); err != nil {
		om.Close()
		return nil, err
	}

	if !opts.SkipConfigAgents {
		if err := g.spawnFromConfig(); err != nil {
			om.Close()
			return nil, err
		}
	}

	slog.Debug("game created",
		"colliders", len(sc.Boxes()),
		"agents", len(g.agents),
		"dt", cfg.Physics.DT,
	)
	return g, nil
}

// StartReadback pumps the built-in readback from its own goroutine until ctx
// is done. Frame stops pumping once this is called. No-op with a custom color service.
func (g *Game) StartReadback(ctx context.Context, interval time.Duration) {
	if g.readback == nil {
		return
	}
	g.asyncPump = true
	go g.readback.Run(ctx, interval)
}

// Tick returns the number of completed physics ticks.
func (g *Game) Tick() int64 {
	return g.tick
}

// Config returns the configuration the game runs with.
func (g *Game) Config() *config.Config {
	return g.cfg
}

// Scene returns the world geometry.
func (g *Game) Scene() *scene.Scene {
	return g.scene
}

// Readback returns the built-in color service, or nil if a custom one is used.
func (g *Game) Readback() *scene.Readback {
	return g.readback
}

// SamplerCounters returns the cumulative probe counters.
func (g *Game) SamplerCounters() systems.SamplerCounters {
	return g.sampler.Counters
}

// InFlight returns the number of outstanding surface samples.
func (g *Game) InFlight() int {
	return g.sampler.InFlight()
}

// Close writes the final snapshot, if enabled, and closes output files.
func (g *Game) Close() error {
	if g.snapshotDir != "" {
		g.saveSnapshot()
	}
	return g.outputManager.Close()
}
