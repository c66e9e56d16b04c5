package main

import (
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/config"
	"github.com/pthm-cable/inkstride/game"
	"github.com/pthm-cable/inkstride/scene"
)

// Targets are the feel measurements a parameter set should reproduce.
type Targets struct {
	TopSpeed     float64 `json:"top_speed"`     // m/s under full input
	AccelTime    float64 `json:"accel_time"`    // seconds from rest to 95% of top speed
	StopDistance float64 `json:"stop_distance"` // meters coasted after releasing input at top speed
	JumpHeight   float64 `json:"jump_height"`   // apex above the standing position
}

// Metrics are the measurements taken from one parameter set.
type Metrics Targets

// trialSeconds bounds every trial.
const trialSeconds = 5.0

// FitnessEvaluator runs headless trials and scores them against the targets.
type FitnessEvaluator struct {
	params     *ParamVector
	targets    Targets
	input      float64
	baseConfig *config.Config

	mu          sync.Mutex
	bestFitness float64
	bestMetrics Metrics
	lastMetrics Metrics
}

// NewFitnessEvaluator creates a new evaluator. input is the force held
// during the sprint trial.
func NewFitnessEvaluator(params *ParamVector, targets Targets, input float64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		targets:     targets,
		input:       input,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestMetrics returns the measurements of the best evaluation so far.
func (fe *FitnessEvaluator) BestMetrics() Metrics {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestMetrics
}

// LastMetrics returns the measurements of the most recent evaluation.
func (fe *FitnessEvaluator) LastMetrics() Metrics {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMetrics
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	// Trials are independent games; run them in parallel.
	var m Metrics
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.TopSpeed, m.AccelTime, m.StopDistance = fe.sprintTrial(cfg)
	}()
	go func() {
		defer wg.Done()
		m.JumpHeight = jumpTrial(cfg)
	}()
	wg.Wait()

	fitness := fe.computeFitness(m)

	fe.mu.Lock()
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.bestMetrics = m
	}
	fe.lastMetrics = m
	fe.mu.Unlock()

	return fitness
}

// copyConfig returns a copy of the base config. Only scalar sections are
// changed by ApplyToConfig, so sharing the scene slices is fine.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// computeFitness is the sum of squared relative errors against the targets.
func (fe *FitnessEvaluator) computeFitness(m Metrics) float64 {
	rel := func(got, want float64) float64 {
		if want == 0 {
			return 0
		}
		d := (got - want) / want
		return d * d
	}
	return rel(m.TopSpeed, fe.targets.TopSpeed) +
		rel(m.AccelTime, fe.targets.AccelTime) +
		rel(m.StopDistance, fe.targets.StopDistance) +
		rel(m.JumpHeight, fe.targets.JumpHeight)
}

// trialGame creates a game with one agent standing on an unpainted floor.
func trialGame(cfg *config.Config) (*game.Game, uint32, error) {
	sc := scene.New()
	// a long strip along +X, enough for a full-speed sprint and coast
	sc.Add(scene.NewBox(r3.Vec{X: 50, Y: -0.5}, r3.Vec{X: 80, Y: 0.5, Z: 5}, r3.Vec{}), nil)

	// New refreshes Derived in place and the trials share cfg.
	own := *cfg
	g, err := game.New(&own, game.Options{Scene: sc, SkipConfigAgents: true})
	if err != nil {
		return nil, 0, err
	}
	id, err := g.Spawn(game.SpawnSpec{Name: "trial", Position: r3.Vec{Y: cfg.Collision.CapsuleHeight / 2}})
	if err != nil {
		g.Close()
		return nil, 0, err
	}
	// settle onto the floor
	for range 2 {
		g.Frame()
		g.Step()
	}
	return g, id, nil
}

// sprintTrial holds full input from rest, then releases it and measures the coast.
func (fe *FitnessEvaluator) sprintTrial(cfg *config.Config) (top, accelTime, stopDist float64) {
	g, id, err := trialGame(cfg)
	if err != nil {
		slog.Warn("sprint trial failed", "error", err)
		return 0, trialSeconds, 0
	}
	defer g.Close()

	dt := cfg.Physics.DT
	limit := int(trialSeconds / dt)
	accelTime = trialSeconds

	for i := 0; i < limit; i++ {
		g.AddInput(id, r3.Vec{X: fe.input})
		g.Frame()
		g.Step()
		s, _ := g.Agent(id)
		top = math.Max(top, s.Speed())
		if accelTime == trialSeconds && s.Speed() >= 0.95*s.MaxSpeed {
			accelTime = float64(i+1) * dt
		}
	}

	start, _ := g.Agent(id)
	for i := 0; i < limit; i++ {
		g.Frame()
		g.Step()
		if s, _ := g.Agent(id); s.Speed() == 0 {
			break
		}
	}
	end, _ := g.Agent(id)
	stopDist = end.Position.X - start.Position.X
	return top, accelTime, stopDist
}

// jumpTrial jumps from standing and measures the apex.
func jumpTrial(cfg *config.Config) float64 {
	g, id, err := trialGame(cfg)
	if err != nil {
		slog.Warn("jump trial failed", "error", err)
		return 0
	}
	defer g.Close()

	start, _ := g.Agent(id)
	g.Jump(id)

	apex := start.Position.Y
	limit := int(trialSeconds / cfg.Physics.DT)
	for i := 0; i < limit; i++ {
		g.Frame()
		g.Step()
		s, _ := g.Agent(id)
		apex = math.Max(apex, s.Position.Y)
		if i > 0 && s.Grounded {
			break
		}
	}
	return apex - start.Position.Y
}
