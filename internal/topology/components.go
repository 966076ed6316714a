package topology

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

// Labeling bundles the callbacks the component engine works through. The
// engine never touches grid storage directly, so any cell representation can
// be labeled by closing over it.
//
// AreConnected decides whether two face-adjacent cells belong together. It
// must return false when either index is out of bounds. GetComponent returns
// the current label, 0 for unlabeled cells and for out-of-range reads.
// MarkComponent stores a label; out-of-range writes must be no-ops.
type Labeling struct {
	AreConnected  func(a, b voxelgrid.Index) bool
	GetComponent  func(voxelgrid.Index) uint32
	MarkComponent func(voxelgrid.Index, uint32)
}

// ComputeConnectedComponents labels every cell of the grid with a component
// id and returns the number of components found. Ids are assigned
// sequentially from 1 in scan order (x outer, y middle, z inner), so labeling
// the same grid twice produces the identical partition. Any previous labeling
// is cleared first.
func ComputeConnectedComponents(sizes voxelgrid.Sizes, l Labeling) uint32 {
	// Clear any previous labeling so stale ids cannot leak into this pass.
	sizes.ForEach(func(idx voxelgrid.Index) bool {
		l.MarkComponent(idx, 0)
		return true
	})

	totalCells := sizes.TotalCells()
	var markedCells int64
	var components uint32
	sizes.ForEach(func(idx voxelgrid.Index) bool {
		if l.GetComponent(idx) != 0 {
			return true
		}
		components++
		markedCells += markConnectedComponent(l, idx, components)
		// Once every cell is labeled no further seeds can exist.
		return markedCells < totalCells
	})
	return components
}

// markConnectedComponent flood-fills one component from start with a BFS over
// face neighbors, returning the number of cells marked. A queued set keeps
// each cell from being enqueued twice.
func markConnectedComponent(l Labeling, start voxelgrid.Index, component uint32) int64 {
	queue := []voxelgrid.Index{start}
	queued := mapset.NewThreadUnsafeSet[voxelgrid.Index]()
	queued.Add(start)

	var marked int64
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		l.MarkComponent(current, component)
		marked++

		neighbors := [6]voxelgrid.Index{
			current.Offset(-1, 0, 0),
			current.Offset(1, 0, 0),
			current.Offset(0, -1, 0),
			current.Offset(0, 1, 0),
			current.Offset(0, 0, -1),
			current.Offset(0, 0, 1),
		}
		for _, neighbor := range neighbors {
			if l.GetComponent(neighbor) != 0 {
				continue
			}
			if !l.AreConnected(current, neighbor) {
				continue
			}
			if queued.Add(neighbor) {
				queue = append(queue, neighbor)
			}
		}
	}
	return marked
}
