package vgtdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelize"
)

const runColumns = `run_id, backend, device_name, num_clouds, num_points,
	raycasting_nanos, filtering_nanos, started_unix_nanos, finished_unix_nanos, snapshot_id`

func nullInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

// InsertVoxelizationRun stores a run record.
func (db *DB) InsertVoxelizationRun(run *voxelize.Run) error {
	_, err := db.Exec(`
		INSERT INTO voxelization_runs (
			run_id, backend, device_name, num_clouds, num_points,
			raycasting_nanos, filtering_nanos,
			started_unix_nanos, finished_unix_nanos, snapshot_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Backend, run.DeviceName, run.NumClouds, run.NumPoints,
		run.Raycasting.Nanoseconds(), run.Filtering.Nanoseconds(),
		run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(), nullInt64(run.SnapshotID),
	)
	if err != nil {
		return fmt.Errorf("insert voxelization run: %w", err)
	}
	return nil
}

func scanRun(scan func(dest ...interface{}) error) (*voxelize.Run, error) {
	var run voxelize.Run
	var raycastingNanos, filteringNanos, startedNanos, finishedNanos int64
	var snapshotID sql.NullInt64
	err := scan(
		&run.RunID, &run.Backend, &run.DeviceName, &run.NumClouds, &run.NumPoints,
		&raycastingNanos, &filteringNanos, &startedNanos, &finishedNanos, &snapshotID,
	)
	if err != nil {
		return nil, err
	}
	run.Raycasting = time.Duration(raycastingNanos)
	run.Filtering = time.Duration(filteringNanos)
	run.StartedAt = time.Unix(0, startedNanos)
	run.FinishedAt = time.Unix(0, finishedNanos)
	if snapshotID.Valid {
		run.SnapshotID = &snapshotID.Int64
	}
	return &run, nil
}

// GetVoxelizationRun retrieves one run record by id.
func (db *DB) GetVoxelizationRun(runID string) (*voxelize.Run, error) {
	row := db.QueryRow(
		`SELECT `+runColumns+` FROM voxelization_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("voxelization run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get voxelization run: %w", err)
	}
	return run, nil
}

// ListVoxelizationRuns returns run records newest first. limit <= 0 means no
// limit.
func (db *DB) ListVoxelizationRuns(limit int) ([]*voxelize.Run, error) {
	query := `SELECT ` + runColumns + ` FROM voxelization_runs ORDER BY started_unix_nanos DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list voxelization runs: %w", err)
	}
	defer rows.Close()

	var runs []*voxelize.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan voxelization run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list voxelization runs rows: %w", err)
	}
	return runs, nil
}
