// Package topology computes topological invariants of labeled voxel grids:
// connected components, and the holes (genus) and enclosed voids of each
// component's surface. The algorithms work entirely through caller-supplied
// callbacks, so any grid representation can plug in by closing over its
// storage.
package topology

import (
	"runtime"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

// Surface is the set of cells on one component's boundary.
type Surface = mapset.Set[voxelgrid.Index]

// NewSurface returns an empty surface set.
func NewSurface() Surface {
	return mapset.NewThreadUnsafeSet[voxelgrid.Index]()
}

// ComponentTopology holds the hole and void counts of one component. Holes
// includes Voids; Holes-Voids is the raw surface genus.
type ComponentTopology struct {
	Holes int32
	Voids int32
}

// Invariants maps component id to that component's topology.
type Invariants = map[uint32]ComponentTopology

// ExtractComponentSurfaces sweeps the grid in scan order and buckets surface
// cells by component id. Membership is decided by the caller's
// isSurfaceIndex, which is also where kind filtering (filled/empty/unknown)
// composes in.
func ExtractComponentSurfaces(sizes voxelgrid.Sizes,
	getComponent func(voxelgrid.Index) uint32,
	isSurfaceIndex func(voxelgrid.Index) bool) map[uint32]Surface {
	surfaces := make(map[uint32]Surface)
	sizes.ForEach(func(idx voxelgrid.Index) bool {
		if !isSurfaceIndex(idx) {
			return true
		}
		component := getComponent(idx)
		surface, ok := surfaces[component]
		if !ok {
			surface = NewSurface()
			surfaces[component] = surface
		}
		surface.Add(idx)
		return true
	})
	return surfaces
}

// ComputeComponentTopology extracts the surface of every component selected
// by isSurfaceIndex and computes each surface's holes and voids. Components
// are independent, so with parallel set the per-component analyses run
// concurrently; the first error aborts the computation.
func ComputeComponentTopology(sizes voxelgrid.Sizes,
	getComponent func(voxelgrid.Index) uint32,
	isSurfaceIndex func(voxelgrid.Index) bool,
	parallel, verbose bool) (Invariants, error) {
	surfaces := ExtractComponentSurfaces(sizes, getComponent, isSurfaceIndex)
	invariants := make(Invariants, len(surfaces))

	if !parallel {
		for component, surface := range surfaces {
			topo, err := ComputeHolesAndVoids(component, surface, getComponent, verbose)
			if err != nil {
				return nil, err
			}
			invariants[component] = topo
		}
		return invariants, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for component, surface := range surfaces {
		g.Go(func() error {
			topo, err := ComputeHolesAndVoids(component, surface, getComponent, verbose)
			if err != nil {
				return err
			}
			mu.Lock()
			invariants[component] = topo
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return invariants, nil
}
