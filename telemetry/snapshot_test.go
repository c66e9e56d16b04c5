package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/inkstride/systems"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version:    SnapshotVersion,
		Tick:       1000,
		SimTimeSec: 16.5,
		Agents: []AgentRecord{
			{
				ID:          1,
				Name:        "runner",
				X:           1.5,
				Y:           0.9,
				Z:           -2,
				VelX:        3,
				Speed:       3,
				MaxSpeed:    9.6,
				Grounded:    true,
				NormalY:     1,
				Mode:        "Swimming",
				Transformed: true,
				Sample:      "#ff0000e6",
				ProbeToken:  42,
			},
		},
		Sampler:  systems.SamplerCounters{Issued: 10, Accepted: 9, Stale: 1},
		InFlight: 1,
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Snapshot file not created at %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if loaded.Version != snapshot.Version {
		t.Errorf("Version mismatch: got %d, want %d", loaded.Version, snapshot.Version)
	}
	if loaded.Tick != snapshot.Tick {
		t.Errorf("Tick mismatch: got %d, want %d", loaded.Tick, snapshot.Tick)
	}
	if len(loaded.Agents) != 1 {
		t.Fatalf("Agents count mismatch: got %d, want 1", len(loaded.Agents))
	}
	if loaded.Agents[0] != snapshot.Agents[0] {
		t.Errorf("agent = %+v, want %+v", loaded.Agents[0], snapshot.Agents[0])
	}
	if loaded.Sampler != snapshot.Sampler {
		t.Errorf("sampler = %+v, want %+v", loaded.Sampler, snapshot.Sampler)
	}
}

func TestSnapshotFilename(t *testing.T) {
	tmpDir := t.TempDir()

	path, err := SaveSnapshot(&Snapshot{Version: SnapshotVersion, Tick: 3000}, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	expected := filepath.Join(tmpDir, "snapshot_3000.json")
	if path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}
}

func TestLoadSnapshot_Missing(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
