package voxelize

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/monitoring"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/pointcloud"
)

// Run records one completed voxelization for later inspection. Fields map to
// the voxelization_runs table.
type Run struct {
	RunID      string        // matches run_id TEXT PRIMARY KEY
	Backend    string        // matches backend TEXT NOT NULL
	DeviceName string        // matches device_name TEXT NOT NULL
	NumClouds  int           // matches num_clouds INTEGER NOT NULL
	NumPoints  int           // matches num_points INTEGER NOT NULL
	Raycasting time.Duration // matches raycasting_nanos INTEGER NOT NULL
	Filtering  time.Duration // matches filtering_nanos INTEGER NOT NULL
	StartedAt  time.Time     // matches started_unix_nanos INTEGER NOT NULL
	FinishedAt time.Time     // matches finished_unix_nanos INTEGER NOT NULL
	SnapshotID *int64        // matches snapshot_id INTEGER, nullable reference into grid_snapshots
}

// RunStore persists voxelization run records. Implemented by vgtdb.DB.
type RunStore interface {
	InsertVoxelizationRun(run *Run) error
	GetVoxelizationRun(runID string) (*Run, error)
	ListVoxelizationRuns(limit int) ([]*Run, error)
}

// RecordRun assembles and inserts a run record for a finished voxelization.
// snapshotID links the run to a persisted grid snapshot and may be nil when
// the output grid was not persisted.
func RecordRun(store RunStore, backend BackendKind, deviceName string, clouds []pointcloud.Cloud,
	rt Runtime, startedAt, finishedAt time.Time, snapshotID *int64) (*Run, error) {
	if store == nil {
		return nil, errors.New("nil run store")
	}
	numPoints := 0
	for _, cloud := range clouds {
		numPoints += cloud.Size()
	}
	run := &Run{
		RunID:      uuid.NewString(),
		Backend:    backend.String(),
		DeviceName: deviceName,
		NumClouds:  len(clouds),
		NumPoints:  numPoints,
		Raycasting: rt.RaycastingTime,
		Filtering:  rt.FilteringTime,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		SnapshotID: snapshotID,
	}
	if err := store.InsertVoxelizationRun(run); err != nil {
		return nil, fmt.Errorf("insert voxelization run: %w", err)
	}
	monitoring.Logf("[Voxelizer] Recorded voxelization run: run=%s backend=%s clouds=%d points=%d",
		run.RunID, run.Backend, run.NumClouds, run.NumPoints)
	return run, nil
}
