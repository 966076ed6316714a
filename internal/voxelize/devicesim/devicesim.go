// Package devicesim provides an in-memory voxelization device mirroring the
// accelerator kernel math in float32. It exercises the staged device path in
// tests and tooling without hardware.
package devicesim

import (
	"errors"
	"fmt"
	"math"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/occupancy"
)

// Device simulates accelerator memory as plain slices. Stages must run in
// the contract order; out-of-order calls fail like an unallocated device
// buffer would.
type Device struct {
	numCells      int64
	trackingGrids []int32 // per cloud, per cell: seenFree, seenFilled
	filterGrid    []occupancy.PackedCell
	cleanupCalls  int
}

// New returns an idle simulated device.
func New() *Device { return &Device{} }

// Name identifies the simulator in logs and run records.
func (d *Device) Name() string { return "InMemorySim" }

// CleanupCalls counts CleanupAllocatedMemory invocations.
func (d *Device) CleanupCalls() int { return d.cleanupCalls }

// PrepareTrackingGrids allocates zeroed per-cloud tracking grids and returns
// the offset of each cloud's grid in device memory.
func (d *Device) PrepareTrackingGrids(numCells int64, numClouds int) ([]int64, error) {
	if numCells <= 0 || numClouds < 0 {
		return nil, fmt.Errorf("invalid tracking grid shape: cells=%d clouds=%d", numCells, numClouds)
	}
	d.numCells = numCells
	d.trackingGrids = make([]int32, numCells*int64(numClouds)*2)
	offsets := make([]int64, numClouds)
	for i := range offsets {
		offsets[i] = int64(i) * numCells * 2
	}
	return offsets, nil
}

// transform applies a row-major 4x4 pose to a point.
func transform(m *[16]float32, x, y, z float32) (float32, float32, float32) {
	return m[0]*x + m[1]*y + m[2]*z + m[3],
		m[4]*x + m[5]*y + m[6]*z + m[7],
		m[8]*x + m[9]*y + m[10]*z + m[11]
}

// RaycastPoints walks each point's ray in float32, marking traversed cells
// seen-free and the terminal cell seen-filled in the tracking grid at
// trackingGridOffset. Free marks never land in the ray's own terminal cell.
func (d *Device) RaycastPoints(points []float32, cloudOriginTransform, inverseGridOriginTransform [16]float32,
	inverseStepSize, inverseCellSize float32, numXCells, numYCells, numZCells int32,
	trackingGridOffset int64) error {
	if d.trackingGrids == nil {
		return errors.New("tracking grids are not prepared")
	}
	if len(points)%3 != 0 {
		return fmt.Errorf("point buffer length %d is not a multiple of 3", len(points))
	}
	end := trackingGridOffset + d.numCells*2
	if trackingGridOffset < 0 || end > int64(len(d.trackingGrids)) {
		return fmt.Errorf("tracking grid offset %d out of range", trackingGridOffset)
	}
	grid := d.trackingGrids[trackingGridOffset:end]

	cellIndex := func(ix, iy, iz int32) int64 {
		return (int64(ix)*int64(numYCells)+int64(iy))*int64(numZCells) + int64(iz)
	}
	inBounds := func(ix, iy, iz int32) bool {
		return ix >= 0 && ix < numXCells && iy >= 0 && iy < numYCells && iz >= 0 && iz < numZCells
	}
	floorCell := func(v float32) int32 {
		return int32(math.Floor(float64(v * inverseCellSize)))
	}

	// Sensor origin in grid frame.
	ox, oy, oz := transform(&cloudOriginTransform, 0, 0, 0)
	sx, sy, sz := transform(&inverseGridOriginTransform, ox, oy, oz)

	for p := 0; p+2 < len(points); p += 3 {
		wx, wy, wz := transform(&cloudOriginTransform, points[p], points[p+1], points[p+2])
		gx, gy, gz := transform(&inverseGridOriginTransform, wx, wy, wz)

		rx, ry, rz := gx-sx, gy-sy, gz-sz
		rayLen := float32(math.Sqrt(float64(rx*rx + ry*ry + rz*rz)))
		tx, ty, tz := floorCell(gx), floorCell(gy), floorCell(gz)

		numSteps := int32(rayLen * inverseStepSize)
		for k := int32(0); k < numSteps; k++ {
			frac := float32(k) / (inverseStepSize * rayLen)
			ix := floorCell(sx + rx*frac)
			iy := floorCell(sy + ry*frac)
			iz := floorCell(sz + rz*frac)
			if ix == tx && iy == ty && iz == tz {
				continue
			}
			if !inBounds(ix, iy, iz) {
				continue
			}
			grid[cellIndex(ix, iy, iz)*2]++
		}
		if inBounds(tx, ty, tz) {
			grid[cellIndex(tx, ty, tz)*2+1]++
		}
	}
	return nil
}

// PrepareFilterGrid seeds device memory with the static environment's cells.
func (d *Device) PrepareFilterGrid(numCells int64, staticCells []occupancy.PackedCell) error {
	if int64(len(staticCells)) != numCells {
		return fmt.Errorf("filter grid seed has %d cells, want %d", len(staticCells), numCells)
	}
	d.filterGrid = append([]occupancy.PackedCell(nil), staticCells...)
	return nil
}

// FilterTrackingGrids applies the consensus votes to the filter grid.
func (d *Device) FilterTrackingGrids(numCells int64, numClouds int, percentSeenFree float32,
	outlierPointsThreshold, numCamerasSeenFree int32) error {
	if d.filterGrid == nil {
		return errors.New("filter grid is not prepared")
	}
	if numCells != d.numCells || int64(len(d.filterGrid)) != numCells {
		return fmt.Errorf("filter shape mismatch: cells=%d prepared=%d", numCells, d.numCells)
	}
	for cell := int64(0); cell < numCells; cell++ {
		var freeVotes, filledVotes int32
		for c := 0; c < numClouds; c++ {
			base := int64(c)*numCells*2 + cell*2
			seenFree, seenFilled := d.trackingGrids[base], d.trackingGrids[base+1]
			if seenFilled > outlierPointsThreshold {
				filledVotes++
			} else if seenFree > 0 {
				freeVotes++
			}
		}
		if filledVotes > 0 {
			d.filterGrid[cell] = d.filterGrid[cell].WithOccupancy(1.0)
		} else if numClouds > 0 && freeVotes >= numCamerasSeenFree &&
			float32(freeVotes)/float32(numClouds) >= percentSeenFree {
			d.filterGrid[cell] = d.filterGrid[cell].WithOccupancy(0.0)
		}
	}
	return nil
}

// RetrieveFilteredGrid copies the filtered cells out of device memory.
func (d *Device) RetrieveFilteredGrid(numCells int64, out []occupancy.PackedCell) error {
	if d.filterGrid == nil {
		return errors.New("filter grid is not prepared")
	}
	if int64(len(out)) != numCells || numCells != int64(len(d.filterGrid)) {
		return fmt.Errorf("retrieve shape mismatch: out=%d cells=%d", len(out), numCells)
	}
	copy(out, d.filterGrid)
	return nil
}

// CleanupAllocatedMemory releases all simulated allocations. The device is
// reusable afterwards.
func (d *Device) CleanupAllocatedMemory() {
	d.numCells = 0
	d.trackingGrids = nil
	d.filterGrid = nil
	d.cleanupCalls++
}
