// Package telemetry provides window stats, perf tracking, trace output, and snapshots.
package telemetry

import "github.com/pthm-cable/inkstride/components"

// EventType identifies telemetry events.
type EventType uint8

const (
	EventModeChanged EventType = iota
	EventSpawn
	EventDespawn
)

// String returns the CSV name of an event type.
func (t EventType) String() string {
	switch t {
	case EventModeChanged:
		return "mode_changed"
	case EventSpawn:
		return "spawn"
	case EventDespawn:
		return "despawn"
	default:
		return "unknown"
	}
}

// Event is a single discrete telemetry event, one row of events.csv.
type Event struct {
	Type  string `csv:"type"`
	Tick  int64  `csv:"tick"`
	Agent uint32 `csv:"agent"`
	From  string `csv:"from"` // mode_changed only
	To    string `csv:"to"`   // mode_changed only
}

// NewModeChangedEvent creates a mode transition event.
func NewModeChangedEvent(tick int64, agentID uint32, from, to components.LocomotionMode) Event {
	return Event{
		Type:  EventModeChanged.String(),
		Tick:  tick,
		Agent: agentID,
		From:  from.String(),
		To:    to.String(),
	}
}

// NewSpawnEvent creates a spawn event.
func NewSpawnEvent(tick int64, agentID uint32) Event {
	return Event{Type: EventSpawn.String(), Tick: tick, Agent: agentID}
}

// NewDespawnEvent creates a despawn event.
func NewDespawnEvent(tick int64, agentID uint32) Event {
	return Event{Type: EventDespawn.String(), Tick: tick, Agent: agentID}
}
