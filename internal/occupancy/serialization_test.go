package occupancy

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/geometry"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

// makeSerializationGrid builds a small asymmetric grid with a rotated origin,
// mixed cell contents and a valid labeling.
func makeSerializationGrid(t *testing.T) *Grid {
	t.Helper()
	sizes, err := voxelgrid.NewSizes(0.5, 0.5, 0.5, 2, 3, 4)
	require.NoError(t, err)
	g, err := NewWithOOB(geometry.XYZRPY(1, -2, 3, 0.1, 0.2, 0.3), "map", sizes,
		CellState{Occupancy: 0.5}, CellState{Occupancy: 0.0})
	require.NoError(t, err)

	require.True(t, g.SetOccupancy(voxelgrid.Index{X: 0, Y: 0, Z: 0}, 1.0))
	require.True(t, g.SetOccupancy(voxelgrid.Index{X: 1, Y: 2, Z: 3}, 1.0))
	require.True(t, g.SetOccupancy(voxelgrid.Index{X: 0, Y: 1, Z: 2}, 0.0))
	g.UpdateConnectedComponents()
	return g
}

// assertGridsEqual checks that two grids carry the same geometry, contents and
// component bookkeeping.
func assertGridsEqual(t *testing.T, want, got *Grid) {
	t.Helper()
	assert.Equal(t, want.Sizes(), got.Sizes())
	assert.Equal(t, want.Frame(), got.Frame())
	assert.True(t, want.Origin().ApproxEqual(got.Origin(), 0), "origin must round-trip exactly")
	assert.Equal(t, want.DefaultState(), got.DefaultState())
	assert.Equal(t, want.OOBState(), got.OOBState())
	assert.Equal(t, want.AreComponentsValid(), got.AreComponentsValid())

	wantCount, wantOK := want.NumConnectedComponents()
	gotCount, gotOK := got.NumConnectedComponents()
	assert.Equal(t, wantOK, gotOK)
	assert.Equal(t, wantCount, gotCount)

	want.Sizes().ForEach(func(idx voxelgrid.Index) bool {
		if want.State(idx) != got.State(idx) {
			t.Fatalf("cell state mismatch at %v: want %+v, got %+v",
				idx, want.State(idx), got.State(idx))
		}
		return true
	})
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	t.Parallel()

	g := makeSerializationGrid(t)

	var buf bytes.Buffer
	written, err := g.Serialize(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), written)

	got, consumed, err := Deserialize(&buf)
	require.NoError(t, err)
	assert.Equal(t, written, consumed)
	assertGridsEqual(t, g, got)
}

func TestSerializeDeterministic(t *testing.T) {
	t.Parallel()

	g := makeSerializationGrid(t)

	var a, b bytes.Buffer
	_, err := g.Serialize(&a)
	require.NoError(t, err)
	_, err = g.Serialize(&b)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a.Bytes(), b.Bytes()),
		"re-serializing an unchanged grid must produce identical bytes")
}

func TestSerializeUninitialized(t *testing.T) {
	t.Parallel()

	var g Grid
	_, err := g.Serialize(&bytes.Buffer{})
	require.Error(t, err)
}

func TestDeserializeRejectsCorruptStreams(t *testing.T) {
	t.Parallel()

	g := makeSerializationGrid(t)
	var buf bytes.Buffer
	_, err := g.Serialize(&buf)
	require.NoError(t, err)
	valid := buf.Bytes()

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()
		corrupt := append([]byte(nil), valid...)
		corrupt[0] ^= 0xff
		_, _, err := Deserialize(bytes.NewReader(corrupt))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "magic")
	})

	t.Run("unsupported version", func(t *testing.T) {
		t.Parallel()
		corrupt := append([]byte(nil), valid...)
		corrupt[8] = 0xff // version field follows the 8-byte magic
		_, _, err := Deserialize(bytes.NewReader(corrupt))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "version")
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		_, _, err := Deserialize(bytes.NewReader(valid[:len(valid)/2]))
		require.Error(t, err)
	})
}

func TestSaveLoadFile(t *testing.T) {
	t.Parallel()

	g := makeSerializationGrid(t)
	dir := t.TempDir()

	plain := filepath.Join(dir, "grid.vgt")
	require.NoError(t, g.SaveToFile(plain, false))
	loaded, err := LoadFromFile(plain)
	require.NoError(t, err)
	assertGridsEqual(t, g, loaded)

	compressed := filepath.Join(dir, "grid.vgt.gz")
	require.NoError(t, g.SaveToFile(compressed, true))

	raw, err := os.ReadFile(compressed)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "compressed files start with the gzip magic")

	loaded, err = LoadFromFile(compressed)
	require.NoError(t, err)
	assertGridsEqual(t, g, loaded)
}

func TestPackUnpackCells(t *testing.T) {
	t.Parallel()

	g := makeSerializationGrid(t)
	packed := g.PackCells()
	require.Len(t, packed, int(g.TotalCells()))

	other, err := NewWithOOB(g.Origin(), g.Frame(), g.Sizes(), g.DefaultState(), g.OOBState())
	require.NoError(t, err)
	other.ForceComponentsToBeValid()

	require.NoError(t, other.UnpackCells(packed))
	assert.False(t, other.AreComponentsValid(), "unpacking invalidates the labeling")

	g.Sizes().ForEach(func(idx voxelgrid.Index) bool {
		assert.Equal(t, g.State(idx), other.State(idx))
		return true
	})

	err = other.UnpackCells(packed[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}
