package topology

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/monitoring"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

// Exposed-edge bits on a surface vertex, one per axis direction. The same
// bits drive the shell-counting BFS below.
const (
	edgeZMinus uint8 = 1 << iota
	edgeZPlus
	edgeYMinus
	edgeYPlus
	edgeXMinus
	edgeXPlus
)

// ComputeHolesAndVoids analyzes one component's surface and returns its hole
// and void counts.
//
// The method follows Chen and Rong, "Linear Time Recognition Algorithms for
// Topological Invariants in 3D": each surface cell contributes its corner
// vertices, each vertex counts its exposed edges, and
//
//	holes = 1 + (M5 + 2*M6 - M3) / 8
//
// where M3/M5/M6 are the number of vertices with 3, 5 and 6 exposed edges.
// Enclosed voids show up as extra disjoint boundary shells, found by
// flood-filling the vertex graph; each void adds one shell beyond the outer
// boundary. The returned Holes includes Voids (a cavity reads as a hole to
// consumers of the combined count); Holes-Voids recovers the raw genus.
//
// getComponent must return 0 for out-of-range reads. A negative count means
// the surface is malformed (typically a labeling inconsistency) and is
// reported as an error.
func ComputeHolesAndVoids(component uint32, surface Surface,
	getComponent func(voxelgrid.Index) uint32, verbose bool) (ComponentTopology, error) {
	vertices := extractSurfaceVertices(component, surface, getComponent)
	if verbose {
		monitoring.Logf("[Topology] extracted surface vertices: component=%d cells=%d vertices=%d",
			component, surface.Cardinality(), vertices.Cardinality())
	}

	// Count exposed edges per vertex and record the per-vertex edge mask for
	// the shell pass.
	var m3, m5, m6 int32
	connectivity := make(map[voxelgrid.Index]uint8, vertices.Cardinality())
	vertices.Each(func(vertex voxelgrid.Index) bool {
		mask, edges := vertexEdges(component, vertex, getComponent)
		connectivity[vertex] = mask
		switch edges {
		case 3:
			m3++
		case 5:
			m5++
		case 6:
			m6++
		}
		return false
	})

	shells := countSurfaceShells(connectivity)
	voids := shells - 1
	rawHoles := 1 + (m5+2*m6-m3)/8
	holes := rawHoles + voids
	if verbose {
		monitoring.Logf("[Topology] surface analysis: component=%d M3=%d M5=%d M6=%d shells=%d holes=%d voids=%d",
			component, m3, m5, m6, shells, holes, voids)
	}
	if holes < 0 || voids < 0 {
		return ComponentTopology{}, fmt.Errorf(
			"malformed surface for component %d: holes=%d voids=%d", component, holes, voids)
	}
	return ComponentTopology{Holes: holes, Voids: voids}, nil
}

// extractSurfaceVertices collects the corner vertices of the surface cells.
// A cell's corner is a surface vertex when at least one of the three face
// neighbors sharing that corner lies outside the component. Vertex (x,y,z)
// names the minimal corner of cell (x,y,z); the maximal corner is
// (x+1,y+1,z+1).
func extractSurfaceVertices(component uint32, surface Surface,
	getComponent func(voxelgrid.Index) uint32) mapset.Set[voxelgrid.Index] {
	vertices := mapset.NewThreadUnsafeSet[voxelgrid.Index]()
	surface.Each(func(cell voxelgrid.Index) bool {
		zm := getComponent(cell.Offset(0, 0, -1))
		zp := getComponent(cell.Offset(0, 0, 1))
		ym := getComponent(cell.Offset(0, -1, 0))
		yp := getComponent(cell.Offset(0, 1, 0))
		xm := getComponent(cell.Offset(-1, 0, 0))
		xp := getComponent(cell.Offset(1, 0, 0))

		if component != zm || component != ym || component != xm {
			vertices.Add(cell)
		}
		if component != zp || component != ym || component != xm {
			vertices.Add(cell.Offset(0, 0, 1))
		}
		if component != zm || component != yp || component != xm {
			vertices.Add(cell.Offset(0, 1, 0))
		}
		if component != zp || component != yp || component != xm {
			vertices.Add(cell.Offset(0, 1, 1))
		}
		if component != zm || component != ym || component != xp {
			vertices.Add(cell.Offset(1, 0, 0))
		}
		if component != zp || component != ym || component != xp {
			vertices.Add(cell.Offset(1, 0, 1))
		}
		if component != zm || component != yp || component != xp {
			vertices.Add(cell.Offset(1, 1, 0))
		}
		if component != zp || component != yp || component != xp {
			vertices.Add(cell.Offset(1, 1, 1))
		}
		return false
	})
	return vertices
}

// vertexEdges counts the exposed edges at a vertex and returns the edge mask.
// The vertex touches eight cells, at offsets {-1,0} on each axis; the six
// axis-aligned edges radiating from it are each surrounded by four of those
// cells. An edge is exposed when at least one but not all four of its cells
// belong to the component.
func vertexEdges(component uint32, vertex voxelgrid.Index,
	getComponent func(voxelgrid.Index) uint32) (mask uint8, edges int32) {
	// in[dx][dy][dz] is membership of the cell at offset (dx-1, dy-1, dz-1).
	var in [2][2][2]bool
	for dx := 0; dx < 2; dx++ {
		for dy := 0; dy < 2; dy++ {
			for dz := 0; dz < 2; dz++ {
				in[dx][dy][dz] = getComponent(vertex.Offset(dx-1, dy-1, dz-1)) == component
			}
		}
	}

	check := func(bit uint8, a, b, c, d bool) {
		anyIn := a || b || c || d
		anyOut := !a || !b || !c || !d
		if anyIn && anyOut {
			mask |= bit
			edges++
		}
	}
	check(edgeZMinus, in[0][0][0], in[0][1][0], in[1][0][0], in[1][1][0])
	check(edgeZPlus, in[0][0][1], in[0][1][1], in[1][0][1], in[1][1][1])
	check(edgeYMinus, in[0][0][0], in[0][0][1], in[1][0][0], in[1][0][1])
	check(edgeYPlus, in[0][1][0], in[0][1][1], in[1][1][0], in[1][1][1])
	check(edgeXMinus, in[0][0][0], in[0][0][1], in[0][1][0], in[0][1][1])
	check(edgeXPlus, in[1][0][0], in[1][0][1], in[1][1][0], in[1][1][1])
	return mask, edges
}

// countSurfaceShells counts connected components of the surface vertex graph,
// where a vertex links to the neighbor vertex along each of its exposed
// edges. One shell is the outer boundary; each additional shell bounds a
// void.
func countSurfaceShells(connectivity map[voxelgrid.Index]uint8) int32 {
	var shells int32
	processed := 0
	marked := mapset.NewThreadUnsafeSet[voxelgrid.Index]()
	for vertex := range connectivity {
		if marked.Contains(vertex) {
			continue
		}
		shells++

		queue := []voxelgrid.Index{vertex}
		queued := mapset.NewThreadUnsafeSet[voxelgrid.Index]()
		queued.Add(vertex)
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			marked.Add(current)
			processed++

			mask := connectivity[current]
			enqueue := func(bit uint8, dx, dy, dz int) {
				if mask&bit == 0 {
					return
				}
				neighbor := current.Offset(dx, dy, dz)
				if queued.Add(neighbor) {
					queue = append(queue, neighbor)
				}
			}
			enqueue(edgeZMinus, 0, 0, -1)
			enqueue(edgeZPlus, 0, 0, 1)
			enqueue(edgeYMinus, 0, -1, 0)
			enqueue(edgeYPlus, 0, 1, 0)
			enqueue(edgeXMinus, -1, 0, 0)
			enqueue(edgeXPlus, 1, 0, 0)
		}
		if processed >= len(connectivity) {
			break
		}
	}
	return shells
}
