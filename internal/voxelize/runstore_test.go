package voxelize

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/pointcloud"
)

type mockRunStore struct {
	runs      map[string]*Run
	order     []string
	insertErr error
}

var _ RunStore = (*mockRunStore)(nil)

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: map[string]*Run{}}
}

func (s *mockRunStore) InsertVoxelizationRun(run *Run) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.runs[run.RunID] = run
	s.order = append(s.order, run.RunID)
	return nil
}

func (s *mockRunStore) GetVoxelizationRun(runID string) (*Run, error) {
	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("no voxelization run %q", runID)
	}
	return run, nil
}

func (s *mockRunStore) ListVoxelizationRuns(limit int) ([]*Run, error) {
	var out []*Run
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.runs[s.order[i]])
	}
	return out, nil
}

func TestRecordRun(t *testing.T) {
	t.Parallel()
	store := newMockRunStore()
	sensor := corridorSensor()
	clouds := []pointcloud.Cloud{
		pointcloud.NewCloud(sensor, []r3.Vec{{X: 1}, {X: 2}}),
		pointcloud.NewCloud(sensor, []r3.Vec{{X: 3}}),
	}
	rt := Runtime{RaycastingTime: 3 * time.Millisecond, FilteringTime: time.Millisecond}
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	finished := started.Add(4 * time.Millisecond)
	snapshotID := int64(7)

	run, err := RecordRun(store, CPUBackend, "CPU/goroutines", clouds, rt, started, finished, &snapshotID)
	require.NoError(t, err)

	_, err = uuid.Parse(run.RunID)
	assert.NoError(t, err, "run id should be a uuid")
	assert.Equal(t, "cpu", run.Backend)
	assert.Equal(t, "CPU/goroutines", run.DeviceName)
	assert.Equal(t, 2, run.NumClouds)
	assert.Equal(t, 3, run.NumPoints)
	assert.Equal(t, rt.RaycastingTime, run.Raycasting)
	assert.Equal(t, rt.FilteringTime, run.Filtering)
	assert.Equal(t, started, run.StartedAt)
	assert.Equal(t, finished, run.FinishedAt)
	require.NotNil(t, run.SnapshotID)
	assert.Equal(t, int64(7), *run.SnapshotID)

	got, err := store.GetVoxelizationRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestRecordRunWithoutSnapshot(t *testing.T) {
	t.Parallel()
	store := newMockRunStore()
	run, err := RecordRun(store, SimBackend, "InMemorySim", nil, Runtime{},
		time.Now(), time.Now(), nil)
	require.NoError(t, err)
	assert.Nil(t, run.SnapshotID)
	assert.Zero(t, run.NumClouds)
	assert.Zero(t, run.NumPoints)
	assert.Equal(t, "sim", run.Backend)
}

func TestRecordRunErrors(t *testing.T) {
	t.Parallel()
	_, err := RecordRun(nil, CPUBackend, "CPU/goroutines", nil, Runtime{},
		time.Now(), time.Now(), nil)
	require.ErrorContains(t, err, "nil run store")

	store := newMockRunStore()
	store.insertErr = errDeviceFail
	_, err = RecordRun(store, CPUBackend, "CPU/goroutines", nil, Runtime{},
		time.Now(), time.Now(), nil)
	require.ErrorIs(t, err, errDeviceFail)
	assert.Contains(t, err.Error(), "insert voxelization run")
}

func TestMockRunStoreList(t *testing.T) {
	t.Parallel()
	store := newMockRunStore()
	var ids []string
	for i := 0; i < 3; i++ {
		run, err := RecordRun(store, CPUBackend, "CPU/goroutines", nil, Runtime{},
			time.Now(), time.Now(), nil)
		require.NoError(t, err)
		ids = append(ids, run.RunID)
	}

	runs, err := store.ListVoxelizationRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[1], runs[1].RunID)

	all, err := store.ListVoxelizationRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
