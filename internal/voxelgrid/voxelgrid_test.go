package voxelgrid

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewSizesValidation(t *testing.T) {
	tests := []struct {
		name    string
		cellX   float64
		cellY   float64
		cellZ   float64
		nx      int
		ny      int
		nz      int
		wantErr bool
	}{
		{"valid uniform", 0.25, 0.25, 0.25, 4, 5, 6, false},
		{"valid non-uniform", 0.25, 0.5, 1.0, 4, 5, 6, false},
		{"zero cell size", 0, 0.25, 0.25, 4, 5, 6, true},
		{"negative cell size", -1, 0.25, 0.25, 4, 5, 6, true},
		{"zero count", 0.25, 0.25, 0.25, 0, 5, 6, true},
		{"negative count", 0.25, 0.25, 0.25, 4, -1, 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSizes(tt.cellX, tt.cellY, tt.cellZ, tt.nx, tt.ny, tt.nz)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSizes error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUniformCellSize(t *testing.T) {
	uniform := MustUniformSizes(0.5, 2, 2, 2)
	if !uniform.UniformCellSize() {
		t.Error("uniform sizes reported non-uniform")
	}
	nonUniform, err := NewSizes(0.5, 0.5, 0.25, 2, 2, 2)
	if err != nil {
		t.Fatalf("NewSizes: %v", err)
	}
	if nonUniform.UniformCellSize() {
		t.Error("non-uniform sizes reported uniform")
	}
}

func TestDataIndexRoundTrip(t *testing.T) {
	s := MustUniformSizes(1.0, 3, 4, 5)
	seen := make(map[int]bool)
	s.ForEach(func(i Index) bool {
		di := s.DataIndex(i)
		if di < 0 || di >= int(s.TotalCells()) {
			t.Fatalf("DataIndex(%v) = %d out of range", i, di)
		}
		if seen[di] {
			t.Fatalf("DataIndex(%v) = %d already used", i, di)
		}
		seen[di] = true
		if back := s.IndexFromDataIndex(di); back != i {
			t.Fatalf("IndexFromDataIndex(%d) = %v, want %v", di, back, i)
		}
		return true
	})
	if int64(len(seen)) != s.TotalCells() {
		t.Errorf("visited %d cells, want %d", len(seen), s.TotalCells())
	}
}

func TestScanOrder(t *testing.T) {
	s := MustUniformSizes(1.0, 2, 2, 2)
	var order []Index
	s.ForEach(func(i Index) bool {
		order = append(order, i)
		return true
	})
	want := []Index{
		{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1},
		{1, 0, 0}, {1, 0, 1}, {1, 1, 0}, {1, 1, 1},
	}
	if len(order) != len(want) {
		t.Fatalf("visited %d cells, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("scan position %d = %v, want %v", i, order[i], want[i])
		}
	}

	// DataIndex must be monotonically increasing along the scan order.
	last := -1
	for _, idx := range order {
		di := s.DataIndex(idx)
		if di != last+1 {
			t.Errorf("DataIndex(%v) = %d, want %d", idx, di, last+1)
		}
		last = di
	}
}

func TestForEachEarlyStop(t *testing.T) {
	s := MustUniformSizes(1.0, 4, 4, 4)
	count := 0
	s.ForEach(func(Index) bool {
		count++
		return count < 10
	})
	if count != 10 {
		t.Errorf("visited %d cells after early stop, want 10", count)
	}
}

func TestContains(t *testing.T) {
	s := MustUniformSizes(1.0, 2, 3, 4)
	tests := []struct {
		idx  Index
		want bool
	}{
		{Index{0, 0, 0}, true},
		{Index{1, 2, 3}, true},
		{Index{2, 0, 0}, false},
		{Index{0, 3, 0}, false},
		{Index{0, 0, 4}, false},
		{Index{-1, 0, 0}, false},
	}
	for _, tt := range tests {
		if got := s.Contains(tt.idx); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.idx, got, tt.want)
		}
	}
}

func TestLocationConversions(t *testing.T) {
	s := MustUniformSizes(0.5, 10, 10, 10)

	tests := []struct {
		name string
		loc  r3.Vec
		want Index
	}{
		{"origin corner", r3.Vec{X: 0.01, Y: 0.01, Z: 0.01}, Index{0, 0, 0}},
		{"cell interior", r3.Vec{X: 1.3, Y: 0.7, Z: 2.4}, Index{2, 1, 4}},
		{"negative is out of bounds", r3.Vec{X: -0.1, Y: 0, Z: 0}, Index{-1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.LocationToIndex(tt.loc); got != tt.want {
				t.Errorf("LocationToIndex(%v) = %v, want %v", tt.loc, got, tt.want)
			}
		})
	}

	// Cell centers map back to their own index.
	for _, idx := range []Index{{0, 0, 0}, {3, 4, 5}, {9, 9, 9}} {
		center := s.IndexToLocation(idx)
		if got := s.LocationToIndex(center); got != idx {
			t.Errorf("center of %v maps to %v", idx, got)
		}
	}
}
