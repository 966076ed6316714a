// Package voxelgrid provides the sizing and index math shared by every dense
// 3D grid in this module: flat x-major storage layout, bounds checks,
// grid-frame location conversion, and the canonical scan order used when
// assigning component ids.
package voxelgrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Index addresses one cell as an integer triple.
type Index struct {
	X, Y, Z int
}

// String renders the index as "(x,y,z)".
func (i Index) String() string {
	return fmt.Sprintf("(%d,%d,%d)", i.X, i.Y, i.Z)
}

// Offset returns the index displaced by (dx,dy,dz).
func (i Index) Offset(dx, dy, dz int) Index {
	return Index{X: i.X + dx, Y: i.Y + dy, Z: i.Z + dz}
}

// Sizes describes a grid's cell dimensions (meters) and per-axis cell counts.
// Cell dimensions may differ per axis; grids that require uniform cells check
// UniformCellSize at construction.
type Sizes struct {
	CellXSize float64
	CellYSize float64
	CellZSize float64
	NumXCells int
	NumYCells int
	NumZCells int
}

// NewSizes validates and builds a Sizes. All cell dimensions must be positive
// and all counts at least one.
func NewSizes(cellX, cellY, cellZ float64, nx, ny, nz int) (Sizes, error) {
	s := Sizes{
		CellXSize: cellX, CellYSize: cellY, CellZSize: cellZ,
		NumXCells: nx, NumYCells: ny, NumZCells: nz,
	}
	if err := s.Validate(); err != nil {
		return Sizes{}, err
	}
	return s, nil
}

// NewUniformSizes builds a Sizes with the same cell dimension on every axis.
func NewUniformSizes(cellSize float64, nx, ny, nz int) (Sizes, error) {
	return NewSizes(cellSize, cellSize, cellSize, nx, ny, nz)
}

// MustUniformSizes is NewUniformSizes for static configuration; it panics on
// invalid arguments.
func MustUniformSizes(cellSize float64, nx, ny, nz int) Sizes {
	s, err := NewUniformSizes(cellSize, nx, ny, nz)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks cell dimensions and counts.
func (s Sizes) Validate() error {
	if !(s.CellXSize > 0) || !(s.CellYSize > 0) || !(s.CellZSize > 0) {
		return fmt.Errorf("cell sizes must be positive, got (%g, %g, %g)",
			s.CellXSize, s.CellYSize, s.CellZSize)
	}
	if s.NumXCells < 1 || s.NumYCells < 1 || s.NumZCells < 1 {
		return fmt.Errorf("cell counts must be at least 1, got (%d, %d, %d)",
			s.NumXCells, s.NumYCells, s.NumZCells)
	}
	return nil
}

// UniformCellSize reports whether all three cell dimensions are identical.
func (s Sizes) UniformCellSize() bool {
	return s.CellXSize == s.CellYSize && s.CellYSize == s.CellZSize
}

// TotalCells returns the number of cells in the grid.
func (s Sizes) TotalCells() int64 {
	return int64(s.NumXCells) * int64(s.NumYCells) * int64(s.NumZCells)
}

// Contains reports whether the index lies inside the grid.
func (s Sizes) Contains(i Index) bool {
	return i.X >= 0 && i.X < s.NumXCells &&
		i.Y >= 0 && i.Y < s.NumYCells &&
		i.Z >= 0 && i.Z < s.NumZCells
}

// DataIndex flattens an in-bounds index into the x-major storage layout
// ((x*numY)+y)*numZ + z. Callers must bounds-check first.
func (s Sizes) DataIndex(i Index) int {
	return (i.X*s.NumYCells+i.Y)*s.NumZCells + i.Z
}

// IndexFromDataIndex is the inverse of DataIndex.
func (s Sizes) IndexFromDataIndex(dataIndex int) Index {
	z := dataIndex % s.NumZCells
	rest := dataIndex / s.NumZCells
	y := rest % s.NumYCells
	x := rest / s.NumYCells
	return Index{X: x, Y: y, Z: z}
}

// LocationToIndex maps a grid-frame point to the index of the cell containing
// it. The result may be out of bounds; callers check Contains.
func (s Sizes) LocationToIndex(p r3.Vec) Index {
	return Index{
		X: int(math.Floor(p.X / s.CellXSize)),
		Y: int(math.Floor(p.Y / s.CellYSize)),
		Z: int(math.Floor(p.Z / s.CellZSize)),
	}
}

// IndexToLocation returns the grid-frame location of the cell's center.
func (s Sizes) IndexToLocation(i Index) r3.Vec {
	return r3.Vec{
		X: (float64(i.X) + 0.5) * s.CellXSize,
		Y: (float64(i.Y) + 0.5) * s.CellYSize,
		Z: (float64(i.Z) + 0.5) * s.CellZSize,
	}
}

// ForEach visits every cell in the canonical scan order (x outer, y middle,
// z inner) until fn returns false. Component ids are assigned in this order,
// so it is the determinism contract for labeling.
func (s Sizes) ForEach(fn func(Index) bool) {
	for x := 0; x < s.NumXCells; x++ {
		for y := 0; y < s.NumYCells; y++ {
			for z := 0; z < s.NumZCells; z++ {
				if !fn(Index{X: x, Y: y, Z: z}) {
					return
				}
			}
		}
	}
}
