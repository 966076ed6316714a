package occupancy

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"log"
	"time"
)

// GridSnapshot matches the grid_snapshot table structure. It holds a
// compressed serialized grid for persistence.
type GridSnapshot struct {
	SnapshotID      *int64  // set by the database after insert
	GridID          string  // matches grid_id TEXT NOT NULL
	Frame           string  // matches frame TEXT NOT NULL
	TakenUnixNanos  int64   // matches taken_unix_nanos INTEGER NOT NULL
	Resolution      float64 // matches resolution REAL NOT NULL
	NumXCells       int     // matches num_x_cells INTEGER NOT NULL
	NumYCells       int     // matches num_y_cells INTEGER NOT NULL
	NumZCells       int     // matches num_z_cells INTEGER NOT NULL
	ComponentsValid bool    // matches components_valid INTEGER NOT NULL
	NumComponents   uint32  // matches num_components INTEGER NOT NULL
	GridBlob        []byte  // matches grid_blob BLOB NOT NULL (gzip-compressed serialized grid)
	SnapshotReason  string  // matches snapshot_reason TEXT ('post_voxelize', 'periodic', 'manual')
}

// SnapshotStore is the interface required to persist and recover GridSnapshot
// records. Implemented by vgtdb.DB.
type SnapshotStore interface {
	InsertGridSnapshot(s *GridSnapshot) (int64, error)
	GetGridSnapshotByID(snapshotID int64) (*GridSnapshot, error)
	GetLatestGridSnapshot(gridID string) (*GridSnapshot, error)
}

// Persist serializes the grid and writes a GridSnapshot via the provided
// store. Returns the snapshot id assigned by the store.
func (g *Grid) Persist(store SnapshotStore, gridID, reason string) (int64, error) {
	if !g.IsInitialized() {
		return 0, errors.New("cannot persist an uninitialized grid")
	}
	if store == nil {
		return 0, errors.New("nil snapshot store")
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := g.Serialize(gz); err != nil {
		gz.Close()
		return 0, fmt.Errorf("serialize grid: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("compress grid: %w", err)
	}

	numComponents, componentsValid := g.NumConnectedComponents()
	snap := &GridSnapshot{
		GridID:          gridID,
		Frame:           g.Frame(),
		TakenUnixNanos:  time.Now().UnixNano(),
		Resolution:      g.Resolution(),
		NumXCells:       g.sizes.NumXCells,
		NumYCells:       g.sizes.NumYCells,
		NumZCells:       g.sizes.NumZCells,
		ComponentsValid: componentsValid,
		NumComponents:   numComponents,
		GridBlob:        buf.Bytes(),
		SnapshotReason:  reason,
	}
	id, err := store.InsertGridSnapshot(snap)
	if err != nil {
		return 0, fmt.Errorf("insert grid snapshot: %w", err)
	}
	log.Printf("[Occupancy] Persisted grid snapshot: grid=%s reason=%s cells=%d blob_bytes=%d",
		gridID, reason, g.TotalCells(), len(snap.GridBlob))
	return id, nil
}

// RestoreSnapshot rebuilds a grid from a persisted snapshot blob.
func RestoreSnapshot(snap *GridSnapshot) (*Grid, error) {
	if snap == nil {
		return nil, errors.New("nil grid snapshot")
	}
	if len(snap.GridBlob) == 0 {
		return nil, errors.New("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(snap.GridBlob))
	if err != nil {
		return nil, fmt.Errorf("open grid blob: %w", err)
	}
	defer gz.Close()
	g, _, err := Deserialize(gz)
	if err != nil {
		return nil, fmt.Errorf("deserialize grid blob: %w", err)
	}
	return g, nil
}

// RestoreLatest loads the most recent snapshot for gridID from the store and
// rebuilds the grid it holds.
func RestoreLatest(store SnapshotStore, gridID string) (*Grid, *GridSnapshot, error) {
	snap, err := store.GetLatestGridSnapshot(gridID)
	if err != nil {
		return nil, nil, fmt.Errorf("look up latest snapshot: %w", err)
	}
	if snap == nil {
		return nil, nil, fmt.Errorf("no snapshot recorded for grid %q", gridID)
	}
	g, err := RestoreSnapshot(snap)
	if err != nil {
		return nil, nil, err
	}
	return g, snap, nil
}
