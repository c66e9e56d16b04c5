package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/inkstride/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the state of every agent at one tick.
type Snapshot struct {
	Version    int     `json:"version"`
	Tick       int64   `json:"tick"`
	SimTimeSec float64 `json:"sim_time_sec"`

	Agents []AgentRecord `json:"agents"`

	Sampler  systems.SamplerCounters `json:"sampler"`
	InFlight int                     `json:"in_flight"`
}

// AgentRecord is the flat form of one agent's state. It is both a snapshot
// entry and a row of trace.csv.
type AgentRecord struct {
	Tick int64  `json:"-" csv:"tick"`
	ID   uint32 `json:"id" csv:"agent"`
	Name string `json:"name" csv:"name"`

	X   float64 `json:"x" csv:"x"`
	Y   float64 `json:"y" csv:"y"`
	Z   float64 `json:"z" csv:"z"`
	Yaw float64 `json:"yaw" csv:"yaw"`

	VelX     float64 `json:"vel_x" csv:"vel_x"`
	VelZ     float64 `json:"vel_z" csv:"vel_z"`
	VelY     float64 `json:"vel_y" csv:"vel_y"`
	Speed    float64 `json:"speed" csv:"speed"`
	MaxSpeed float64 `json:"max_speed" csv:"max_speed"`

	Grounded bool    `json:"grounded" csv:"grounded"`
	NormalX  float64 `json:"normal_x" csv:"normal_x"`
	NormalY  float64 `json:"normal_y" csv:"normal_y"`
	NormalZ  float64 `json:"normal_z" csv:"normal_z"`

	Mode        string `json:"mode" csv:"mode"`
	Transformed bool   `json:"transformed" csv:"transformed"`
	Sample      string `json:"sample" csv:"sample"` // last accepted color as #rrggbbaa

	ProbePending bool   `json:"probe_pending" csv:"probe_pending"`
	ProbeToken   uint64 `json:"probe_token" csv:"probe_token"`
	ProbePaused  bool   `json:"probe_paused" csv:"probe_paused"`
}

// SaveSnapshot writes a snapshot to dir and returns the path it was saved to.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Tick))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
