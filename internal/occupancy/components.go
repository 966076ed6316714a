package occupancy

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/topology"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

// ErrComponentsInvalid is returned by queries that need a current component
// labeling when none exists. Call UpdateConnectedComponents first.
var ErrComponentsInvalid = errors.New("connected components are not valid")

// AreComponentsValid reports whether component ids reflect the current cell
// occupancies.
func (g *Grid) AreComponentsValid() bool {
	return g.componentsValid.Load()
}

// ForceComponentsToBeValid marks the labeling valid. Use with great care and
// only when the components are known to be current.
func (g *Grid) ForceComponentsToBeValid() {
	g.componentsValid.Store(true)
}

// ForceComponentsToBeInvalid discards the current labeling.
func (g *Grid) ForceComponentsToBeInvalid() {
	g.componentsValid.Store(false)
}

// NumConnectedComponents returns the component count, ok=false when the
// labeling is stale.
func (g *Grid) NumConnectedComponents() (uint32, bool) {
	if !g.componentsValid.Load() {
		return 0, false
	}
	return g.numComponents.Load(), true
}

// UpdateConnectedComponents labels every cell with a component id
// (connectivity means equal occupancy classification) and returns the number
// of components. A valid labeling is returned as-is without recomputation.
func (g *Grid) UpdateConnectedComponents() uint32 {
	if g.componentsValid.Load() {
		return g.numComponents.Load()
	}
	l := topology.Labeling{
		AreConnected: func(a, b voxelgrid.Index) bool {
			if !g.sizes.Contains(a) || !g.sizes.Contains(b) {
				return false
			}
			ca := g.cells[g.sizes.DataIndex(a)].Load().Classification()
			cb := g.cells[g.sizes.DataIndex(b)].Load().Classification()
			return ca == cb
		},
		GetComponent: g.ComponentAt,
		MarkComponent: func(idx voxelgrid.Index, component uint32) {
			if !g.sizes.Contains(idx) {
				return
			}
			g.cells[g.sizes.DataIndex(idx)].SetComponent(component)
		},
	}
	count := topology.ComputeConnectedComponents(g.sizes, l)
	g.numComponents.Store(count)
	g.componentsValid.Store(true)
	return count
}

// IsSurfaceIndex reports whether the cell borders a different occupancy
// classification on any of its six faces. The grid boundary counts as a
// border, so edge cells are always surface. Returns ok=false out of bounds.
func (g *Grid) IsSurfaceIndex(idx voxelgrid.Index) (surface, ok bool) {
	if !g.sizes.Contains(idx) {
		return false, false
	}
	own := g.cells[g.sizes.DataIndex(idx)].Load().Classification()
	for _, n := range faceNeighbors(idx) {
		if !g.sizes.Contains(n) {
			return true, true
		}
		if g.cells[g.sizes.DataIndex(n)].Load().Classification() != own {
			return true, true
		}
	}
	return false, true
}

// IsConnectedComponentSurfaceIndex reports whether the cell borders a
// different component id on any of its six faces (grid boundary included).
// Requires a valid labeling; returns ok=false out of bounds or when the
// labeling is stale.
func (g *Grid) IsConnectedComponentSurfaceIndex(idx voxelgrid.Index) (surface, ok bool) {
	if !g.componentsValid.Load() || !g.sizes.Contains(idx) {
		return false, false
	}
	own := g.cells[g.sizes.DataIndex(idx)].Component()
	for _, n := range faceNeighbors(idx) {
		if g.ComponentAt(n) != own {
			return true, true
		}
	}
	return false, true
}

// CheckIfCandidateCorner reports whether the cell is a candidate corner of
// its component: at least two of its six face neighbors belong to different
// components. Downstream distance-field consumers use this to find fine
// structure worth refining. Requires a valid labeling; returns ok=false out
// of bounds or when the labeling is stale.
func (g *Grid) CheckIfCandidateCorner(idx voxelgrid.Index) (corner, ok bool) {
	if !g.componentsValid.Load() || !g.sizes.Contains(idx) {
		return false, false
	}
	own := g.cells[g.sizes.DataIndex(idx)].Component()
	different := 0
	for _, n := range faceNeighbors(idx) {
		if g.ComponentAt(n) != own {
			different++
		}
	}
	return different >= 2, true
}

// CheckIfCandidateCornerLocation is CheckIfCandidateCorner for a world-frame
// point.
func (g *Grid) CheckIfCandidateCornerLocation(p r3.Vec) (corner, ok bool) {
	return g.CheckIfCandidateCorner(g.LocationToIndex(p))
}

func faceNeighbors(idx voxelgrid.Index) [6]voxelgrid.Index {
	return [6]voxelgrid.Index{
		idx.Offset(-1, 0, 0), idx.Offset(1, 0, 0),
		idx.Offset(0, -1, 0), idx.Offset(0, 1, 0),
		idx.Offset(0, 0, -1), idx.Offset(0, 0, 1),
	}
}

// kindSurfaceFn builds the surface predicate for component extraction: the
// cell's classification must be selected by kinds and the cell must sit on
// its component's surface.
func (g *Grid) kindSurfaceFn(kinds ComponentKinds) func(voxelgrid.Index) bool {
	return func(idx voxelgrid.Index) bool {
		if !kinds.Matches(g.State(idx).Classification()) {
			return false
		}
		surface, ok := g.IsConnectedComponentSurfaceIndex(idx)
		return ok && surface
	}
}

// ExtractComponentSurfaces returns the surface cells of every component
// whose classification is selected by kinds, keyed by component id.
// Requires a valid labeling.
func (g *Grid) ExtractComponentSurfaces(kinds ComponentKinds) (map[uint32]topology.Surface, error) {
	if !g.componentsValid.Load() {
		return nil, ErrComponentsInvalid
	}
	return topology.ExtractComponentSurfaces(g.sizes, g.ComponentAt, g.kindSurfaceFn(kinds)), nil
}

// ExtractFilledComponentSurfaces extracts surfaces of filled components.
func (g *Grid) ExtractFilledComponentSurfaces() (map[uint32]topology.Surface, error) {
	return g.ExtractComponentSurfaces(FilledComponents)
}

// ExtractEmptyComponentSurfaces extracts surfaces of free-space components.
func (g *Grid) ExtractEmptyComponentSurfaces() (map[uint32]topology.Surface, error) {
	return g.ExtractComponentSurfaces(EmptyComponents)
}

// ExtractUnknownComponentSurfaces extracts surfaces of unknown components.
func (g *Grid) ExtractUnknownComponentSurfaces() (map[uint32]topology.Surface, error) {
	return g.ExtractComponentSurfaces(UnknownComponents)
}

// ComputeComponentTopology updates the labeling if needed, then computes
// holes and voids for every component selected by kinds.
func (g *Grid) ComputeComponentTopology(kinds ComponentKinds, parallel, verbose bool) (topology.Invariants, error) {
	g.UpdateConnectedComponents()
	return topology.ComputeComponentTopology(
		g.sizes, g.ComponentAt, g.kindSurfaceFn(kinds), parallel, verbose)
}
