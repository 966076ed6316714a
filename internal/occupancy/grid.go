package occupancy

import (
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/geometry"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

// Grid is a dense occupancy grid in a named coordinate frame. Cell reads and
// writes are lock-free; component bookkeeping is invalidated by any mutable
// access and rebuilt on demand by UpdateConnectedComponents.
type Grid struct {
	sizes         voxelgrid.Sizes
	origin        geometry.Pose
	inverseOrigin geometry.Pose
	frame         string
	defaultState  CellState
	oobState      CellState
	cells         []Cell

	componentsValid atomic.Bool
	numComponents   atomic.Uint32
}

// New builds a grid with the given origin pose (grid frame in world frame),
// frame label, sizes and default cell state. The out-of-bounds state equals
// the default state. Occupancy grids require uniform cell sizes.
func New(origin geometry.Pose, frame string, sizes voxelgrid.Sizes, defaultState CellState) (*Grid, error) {
	return NewWithOOB(origin, frame, sizes, defaultState, defaultState)
}

// NewWithOOB is New with a distinct state reported for out-of-bounds reads.
func NewWithOOB(origin geometry.Pose, frame string, sizes voxelgrid.Sizes,
	defaultState, oobState CellState) (*Grid, error) {
	if err := sizes.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid sizes: %w", err)
	}
	if !sizes.UniformCellSize() {
		return nil, fmt.Errorf("occupancy grids require uniform cell sizes, got (%g, %g, %g)",
			sizes.CellXSize, sizes.CellYSize, sizes.CellZSize)
	}
	g := &Grid{
		sizes:         sizes,
		origin:        origin,
		inverseOrigin: origin.Inverse(),
		frame:         frame,
		defaultState:  defaultState,
		oobState:      oobState,
		cells:         make([]Cell, sizes.TotalCells()),
	}
	if defaultState != (CellState{}) {
		for i := range g.cells {
			g.cells[i].Store(defaultState)
		}
	}
	return g, nil
}

// IsInitialized reports whether the grid has storage (a zero-value Grid does
// not).
func (g *Grid) IsInitialized() bool {
	return g != nil && len(g.cells) > 0
}

// Sizes returns the grid sizing.
func (g *Grid) Sizes() voxelgrid.Sizes { return g.sizes }

// Resolution returns the uniform cell size.
func (g *Grid) Resolution() float64 { return g.sizes.CellXSize }

// TotalCells returns the cell count.
func (g *Grid) TotalCells() int64 { return g.sizes.TotalCells() }

// Frame returns the coordinate frame label.
func (g *Grid) Frame() string { return g.frame }

// SetFrame replaces the coordinate frame label.
func (g *Grid) SetFrame(frame string) { g.frame = frame }

// Origin returns the grid origin pose (grid frame in world frame).
func (g *Grid) Origin() geometry.Pose { return g.origin }

// InverseOrigin returns the precomputed inverse of the origin pose.
func (g *Grid) InverseOrigin() geometry.Pose { return g.inverseOrigin }

// DefaultState returns the construction-time default cell state.
func (g *Grid) DefaultState() CellState { return g.defaultState }

// OOBState returns the state reported for out-of-bounds reads.
func (g *Grid) OOBState() CellState { return g.oobState }

// State returns a snapshot of the cell, or the out-of-bounds state.
func (g *Grid) State(idx voxelgrid.Index) CellState {
	if !g.sizes.Contains(idx) {
		return g.oobState
	}
	return g.cells[g.sizes.DataIndex(idx)].Load()
}

// ComponentAt returns the cell's component id, 0 for out-of-range reads.
// This is the read path topology callbacks use.
func (g *Grid) ComponentAt(idx voxelgrid.Index) uint32 {
	if !g.sizes.Contains(idx) {
		return 0
	}
	return g.cells[g.sizes.DataIndex(idx)].Component()
}

// MutableCell returns the cell for in-place mutation, marking components
// invalid. Returns ok=false out of bounds.
func (g *Grid) MutableCell(idx voxelgrid.Index) (*Cell, bool) {
	if !g.sizes.Contains(idx) {
		return nil, false
	}
	g.componentsValid.Store(false)
	return &g.cells[g.sizes.DataIndex(idx)], true
}

// SetOccupancy stores an occupancy estimate, invalidating components.
// Returns false out of bounds.
func (g *Grid) SetOccupancy(idx voxelgrid.Index, v float32) bool {
	cell, ok := g.MutableCell(idx)
	if !ok {
		return false
	}
	cell.SetOccupancy(v)
	return true
}

// SetState stores a full cell state, invalidating components. Returns false
// out of bounds.
func (g *Grid) SetState(idx voxelgrid.Index, s CellState) bool {
	cell, ok := g.MutableCell(idx)
	if !ok {
		return false
	}
	cell.Store(s)
	return true
}

// LocationToIndex maps a world-frame point to a cell index (possibly out of
// bounds).
func (g *Grid) LocationToIndex(p r3.Vec) voxelgrid.Index {
	return g.sizes.LocationToIndex(g.inverseOrigin.Apply(p))
}

// IndexToLocation returns the world-frame center of the cell.
func (g *Grid) IndexToLocation(idx voxelgrid.Index) r3.Vec {
	return g.origin.Apply(g.sizes.IndexToLocation(idx))
}

// LocationState returns the state of the cell containing the world-frame
// point, or the out-of-bounds state.
func (g *Grid) LocationState(p r3.Vec) CellState {
	return g.State(g.LocationToIndex(p))
}

// Clone deep-copies the grid, including component bookkeeping.
func (g *Grid) Clone() *Grid {
	out := &Grid{
		sizes:         g.sizes,
		origin:        g.origin,
		inverseOrigin: g.inverseOrigin,
		frame:         g.frame,
		defaultState:  g.defaultState,
		oobState:      g.oobState,
		cells:         make([]Cell, len(g.cells)),
	}
	for i := range g.cells {
		out.cells[i].Store(g.cells[i].Load())
	}
	out.numComponents.Store(g.numComponents.Load())
	out.componentsValid.Store(g.componentsValid.Load())
	return out
}
