// Package occupancy provides the collision-oriented occupancy grid: a dense
// 3D grid of lock-free cells carrying an occupancy estimate and a connected
// component id, with component/surface queries, topology analysis, and
// serialization.
package occupancy

import (
	"math"
	"sync/atomic"
)

// Classification buckets a cell's occupancy estimate.
type Classification uint8

const (
	// Free means occupancy below 0.5.
	Free Classification = iota
	// Unknown means occupancy exactly 0.5 (also NaN estimates).
	Unknown
	// Filled means occupancy above 0.5.
	Filled
)

// String returns the lowercase classification name.
func (c Classification) String() string {
	switch c {
	case Free:
		return "free"
	case Filled:
		return "filled"
	default:
		return "unknown"
	}
}

// CellState is a plain snapshot of one cell's two fields.
type CellState struct {
	Occupancy float32
	Component uint32
}

// Classification buckets the state's occupancy estimate.
func (s CellState) Classification() Classification {
	switch {
	case s.Occupancy < 0.5:
		return Free
	case s.Occupancy > 0.5:
		return Filled
	default:
		return Unknown
	}
}

// Cell is one grid slot. Occupancy and component live in independent atomic
// fields so raycasting workers and the labeling pass can update them
// concurrently without locks. Cells are accessed by pointer and never copied
// directly; use Load/Store to move state in and out.
type Cell struct {
	occupancy atomic.Uint32 // float32 bit pattern
	component atomic.Uint32
}

// Occupancy returns the cell's occupancy estimate.
func (c *Cell) Occupancy() float32 {
	return math.Float32frombits(c.occupancy.Load())
}

// SetOccupancy stores a new occupancy estimate.
func (c *Cell) SetOccupancy(v float32) {
	c.occupancy.Store(math.Float32bits(v))
}

// Component returns the cell's component id (0 when unlabeled).
func (c *Cell) Component() uint32 {
	return c.component.Load()
}

// SetComponent stores a new component id.
func (c *Cell) SetComponent(v uint32) {
	c.component.Store(v)
}

// Load snapshots both fields. The two loads are individually atomic; a
// concurrent writer may be observed between them.
func (c *Cell) Load() CellState {
	return CellState{
		Occupancy: math.Float32frombits(c.occupancy.Load()),
		Component: c.component.Load(),
	}
}

// Store writes both fields.
func (c *Cell) Store(s CellState) {
	c.occupancy.Store(math.Float32bits(s.Occupancy))
	c.component.Store(s.Component)
}

// ComponentKinds selects component classifications for surface extraction
// and topology analysis.
type ComponentKinds uint8

const (
	// FilledComponents selects components of filled cells.
	FilledComponents ComponentKinds = 0x01
	// EmptyComponents selects components of free cells.
	EmptyComponents ComponentKinds = 0x02
	// UnknownComponents selects components of unknown cells.
	UnknownComponents ComponentKinds = 0x04
	// AllComponents selects every component.
	AllComponents = FilledComponents | EmptyComponents | UnknownComponents
)

// Matches reports whether the classification is selected by the kind mask.
func (k ComponentKinds) Matches(c Classification) bool {
	switch c {
	case Filled:
		return k&FilledComponents != 0
	case Free:
		return k&EmptyComponents != 0
	default:
		return k&UnknownComponents != 0
	}
}

// PackedCell is a cell in the 8-byte packed layout shared by serialization
// and device backends: the low 32 bits hold the float32 occupancy bit
// pattern, the high 32 bits the component id.
type PackedCell uint64

// PackCellState packs a snapshot.
func PackCellState(s CellState) PackedCell {
	return PackedCell(uint64(math.Float32bits(s.Occupancy)) | uint64(s.Component)<<32)
}

// State unpacks the snapshot.
func (p PackedCell) State() CellState {
	return CellState{
		Occupancy: math.Float32frombits(uint32(p)),
		Component: uint32(p >> 32),
	}
}

// Occupancy returns the packed occupancy estimate.
func (p PackedCell) Occupancy() float32 {
	return math.Float32frombits(uint32(p))
}

// WithOccupancy returns the packed cell with a replaced occupancy estimate.
func (p PackedCell) WithOccupancy(v float32) PackedCell {
	return PackedCell(uint64(math.Float32bits(v)) | uint64(p)&0xffffffff00000000)
}
