package game

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/inkstride/systems"
)

func (g *Game) entity(id uint32) (ecs.Entity, error) {
	e, ok := g.agents[id]
	if !ok {
		return ecs.Entity{}, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return e, nil
}

// AddInput accumulates a movement force for the next tick. Only the
// horizontal part is used.
func (g *Game) AddInput(id uint32, force r3.Vec) error {
	e, err := g.entity(id)
	if err != nil {
		return err
	}
	mot := g.motionMap.Get(e)
	mot.InputForce = r3.Add(mot.InputForce, force)
	return nil
}

// Jump queues a jump for the next tick. It only takes effect when grounded.
func (g *Game) Jump(id uint32) error {
	e, err := g.entity(id)
	if err != nil {
		return err
	}
	g.motionMap.Get(e).JumpQueued = true
	return nil
}

// PressTransform switches to the transformed form. Ignored on hostile ink.
func (g *Game) PressTransform(id uint32) error {
	return g.setTransform(id, true)
}

// ReleaseTransform switches back to the normal form.
func (g *Game) ReleaseTransform(id uint32) error {
	return g.setTransform(id, false)
}

func (g *Game) setTransform(id uint32, held bool) error {
	e, err := g.entity(id)
	if err != nil {
		return err
	}
	systems.SetTransform(g.locMap.Get(e), held)
	return nil
}

// PausePolling stops the surface probe loop of an agent and cancels its
// in-flight sample. The current mode is kept.
func (g *Game) PausePolling(id uint32) error {
	e, err := g.entity(id)
	if err != nil {
		return err
	}
	g.sampler.Pause(e, g.probeMap.Get(e))
	return nil
}

// ResumePolling restarts the probe loop with a probe due on the next tick.
func (g *Game) ResumePolling(id uint32) error {
	e, err := g.entity(id)
	if err != nil {
		return err
	}
	g.sampler.Resume(g.tick, g.probeMap.Get(e))
	return nil
}
