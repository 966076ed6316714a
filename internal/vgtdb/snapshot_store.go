package vgtdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/occupancy"
)

const snapshotColumns = `snapshot_id, grid_id, frame, taken_unix_nanos, resolution,
	num_x_cells, num_y_cells, num_z_cells, components_valid, num_components,
	grid_blob, snapshot_reason`

// InsertGridSnapshot stores a snapshot and returns its assigned id. The
// snapshot's SnapshotID field is filled in on success, and a zero
// TakenUnixNanos is replaced with the current time.
func (db *DB) InsertGridSnapshot(snap *occupancy.GridSnapshot) (int64, error) {
	if snap.TakenUnixNanos == 0 {
		snap.TakenUnixNanos = time.Now().UnixNano()
	}

	result, err := db.Exec(`
		INSERT INTO grid_snapshots (
			grid_id, frame, taken_unix_nanos, resolution,
			num_x_cells, num_y_cells, num_z_cells,
			components_valid, num_components, grid_blob, snapshot_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.GridID, snap.Frame, snap.TakenUnixNanos, snap.Resolution,
		snap.NumXCells, snap.NumYCells, snap.NumZCells,
		snap.ComponentsValid, snap.NumComponents, snap.GridBlob, snap.SnapshotReason,
	)
	if err != nil {
		return 0, fmt.Errorf("insert grid snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read snapshot id: %w", err)
	}
	snap.SnapshotID = &id
	return id, nil
}

func scanSnapshot(row *sql.Row) (*occupancy.GridSnapshot, error) {
	var snap occupancy.GridSnapshot
	var id int64
	err := row.Scan(
		&id, &snap.GridID, &snap.Frame, &snap.TakenUnixNanos, &snap.Resolution,
		&snap.NumXCells, &snap.NumYCells, &snap.NumZCells,
		&snap.ComponentsValid, &snap.NumComponents, &snap.GridBlob, &snap.SnapshotReason,
	)
	if err != nil {
		return nil, err
	}
	snap.SnapshotID = &id
	return &snap, nil
}

// GetGridSnapshotByID retrieves one snapshot. A missing snapshot yields a
// nil result and nil error, per the SnapshotStore contract.
func (db *DB) GetGridSnapshotByID(snapshotID int64) (*occupancy.GridSnapshot, error) {
	row := db.QueryRow(
		`SELECT `+snapshotColumns+` FROM grid_snapshots WHERE snapshot_id = ?`, snapshotID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grid snapshot %d: %w", snapshotID, err)
	}
	return snap, nil
}

// GetLatestGridSnapshot retrieves the most recent snapshot for gridID, or
// nil when the grid has never been persisted.
func (db *DB) GetLatestGridSnapshot(gridID string) (*occupancy.GridSnapshot, error) {
	row := db.QueryRow(
		`SELECT `+snapshotColumns+` FROM grid_snapshots
		WHERE grid_id = ?
		ORDER BY taken_unix_nanos DESC, snapshot_id DESC
		LIMIT 1`, gridID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest grid snapshot for %q: %w", gridID, err)
	}
	return snap, nil
}

// ListGridSnapshots returns snapshot metadata for gridID, newest first, with
// the blob column omitted. limit <= 0 means no limit.
func (db *DB) ListGridSnapshots(gridID string, limit int) ([]*occupancy.GridSnapshot, error) {
	query := `
		SELECT snapshot_id, grid_id, frame, taken_unix_nanos, resolution,
		       num_x_cells, num_y_cells, num_z_cells, components_valid,
		       num_components, snapshot_reason
		FROM grid_snapshots
		WHERE grid_id = ?
		ORDER BY taken_unix_nanos DESC, snapshot_id DESC`
	args := []interface{}{gridID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list grid snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*occupancy.GridSnapshot
	for rows.Next() {
		var snap occupancy.GridSnapshot
		var id int64
		err := rows.Scan(
			&id, &snap.GridID, &snap.Frame, &snap.TakenUnixNanos, &snap.Resolution,
			&snap.NumXCells, &snap.NumYCells, &snap.NumZCells,
			&snap.ComponentsValid, &snap.NumComponents, &snap.SnapshotReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan grid snapshot row: %w", err)
		}
		snap.SnapshotID = &id
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list grid snapshots rows: %w", err)
	}
	return snaps, nil
}
