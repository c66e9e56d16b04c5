package systems

import "fmt"

// Phase categories.
const (
	CategorySampling = "sampling"
	CategoryPhysics  = "physics"
	CategoryOutput   = "output"
)

// SystemInfo describes one phase of the fixed tick.
type SystemInfo struct {
	ID          string // perf tracking key
	Name        string // display name in logs
	Description string
	Category    string
	ChangesMode bool // may switch locomotion modes
}

// SystemRegistry is the ordered tick schedule. Game.Step runs the phases in
// registration order and the perf tracker and logs key off the same IDs.
type SystemRegistry struct {
	systems []SystemInfo
	index   map[string]int
}

// NewSystemRegistry creates the default tick schedule.
func NewSystemRegistry() *SystemRegistry {
	reg := &SystemRegistry{index: make(map[string]int)}
	for _, info := range []SystemInfo{
		{ID: "drain", Name: "Drain", Description: "Applies completed surface samples", Category: CategorySampling, ChangesMode: true},
		{ID: "sampler", Name: "Sampler", Description: "Runs the watchdog and issues due probes", Category: CategorySampling, ChangesMode: true},
		{ID: "motion", Name: "Motion", Description: "Integrates input, braking and gravity", Category: CategoryPhysics},
		{ID: "collision", Name: "Collision", Description: "Resolves capsule contacts", Category: CategoryPhysics},
		{ID: "notify", Name: "Notify", Description: "Emits speed notifications", Category: CategoryOutput},
		{ID: "telemetry", Name: "Telemetry", Description: "Records window stats and traces", Category: CategoryOutput},
	} {
		reg.Register(info)
	}
	return reg
}

// Register appends a phase to the schedule. Re-registering an ID replaces
// its info in place.
func (r *SystemRegistry) Register(info SystemInfo) {
	if i, ok := r.index[info.ID]; ok {
		r.systems[i] = info
		return
	}
	r.index[info.ID] = len(r.systems)
	r.systems = append(r.systems, info)
}

// Name returns the display name for a phase ID, or the ID itself.
func (r *SystemRegistry) Name(id string) string {
	if i, ok := r.index[id]; ok {
		return r.systems[i].Name
	}
	return id
}

// All returns the phases in run order.
func (r *SystemRegistry) All() []SystemInfo {
	return r.systems
}

// IDs returns the phase IDs in run order.
func (r *SystemRegistry) IDs() []string {
	ids := make([]string, len(r.systems))
	for i, info := range r.systems {
		ids[i] = info.ID
	}
	return ids
}

// Validate checks that every mode-changing phase runs before the first
// physics phase, so integration always sees the mode of the whole tick.
func (r *SystemRegistry) Validate() error {
	physics := false
	for _, info := range r.systems {
		if info.Category == CategoryPhysics {
			physics = true
		}
		if info.ChangesMode && physics {
			return fmt.Errorf("phase %q changes locomotion modes after integration started", info.ID)
		}
	}
	return nil
}
