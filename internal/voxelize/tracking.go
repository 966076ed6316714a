package voxelize

import (
	"sync/atomic"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

// TrackingCell accumulates per-cloud observation counts for one cell. Counts
// are atomic so raycasting workers can share a grid without locks.
type TrackingCell struct {
	seenFreeCount   atomic.Int32
	seenFilledCount atomic.Int32
}

// SeenFreeCount returns how many rays passed through the cell.
func (c *TrackingCell) SeenFreeCount() int32 { return c.seenFreeCount.Load() }

// SeenFilledCount returns how many rays terminated in the cell.
func (c *TrackingCell) SeenFilledCount() int32 { return c.seenFilledCount.Load() }

// TrackingGrid holds one cloud's observation counts over the static grid's
// cells, in the same storage order.
type TrackingGrid struct {
	sizes voxelgrid.Sizes
	cells []TrackingCell
}

// NewTrackingGrid allocates a zeroed tracking grid for the given sizing.
func NewTrackingGrid(sizes voxelgrid.Sizes) *TrackingGrid {
	return &TrackingGrid{
		sizes: sizes,
		cells: make([]TrackingCell, sizes.TotalCells()),
	}
}

// Sizes returns the grid sizing.
func (g *TrackingGrid) Sizes() voxelgrid.Sizes { return g.sizes }

// MarkSeenFree counts a ray passing through the cell at dataIndex.
func (g *TrackingGrid) MarkSeenFree(dataIndex int) {
	g.cells[dataIndex].seenFreeCount.Add(1)
}

// MarkSeenFilled counts a ray terminating in the cell at dataIndex.
func (g *TrackingGrid) MarkSeenFilled(dataIndex int) {
	g.cells[dataIndex].seenFilledCount.Add(1)
}

// Counts returns the (seenFree, seenFilled) pair at dataIndex.
func (g *TrackingGrid) Counts(dataIndex int) (seenFree, seenFilled int32) {
	c := &g.cells[dataIndex]
	return c.seenFreeCount.Load(), c.seenFilledCount.Load()
}
