package gridviz

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/geometry"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/occupancy"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

// buildTestGrid returns a 6x6x2 grid with a free corridor along y=0 and a
// filled 2x2 block in the middle of layer z=0.
func buildTestGrid(t *testing.T) *occupancy.Grid {
	t.Helper()
	sizes := voxelgrid.MustUniformSizes(0.5, 6, 6, 2)
	g, err := occupancy.New(geometry.Identity(), "map", sizes, occupancy.CellState{Occupancy: 0.5})
	if err != nil {
		t.Fatalf("Failed to build grid: %v", err)
	}
	for x := 0; x < 6; x++ {
		g.SetOccupancy(voxelgrid.Index{X: x, Y: 0, Z: 0}, 0.0)
	}
	for x := 2; x < 4; x++ {
		for y := 2; y < 4; y++ {
			g.SetOccupancy(voxelgrid.Index{X: x, Y: y, Z: 0}, 1.0)
		}
	}
	return g
}

func TestRenderOccupancySlicePNG(t *testing.T) {
	g := buildTestGrid(t)

	for name, cfg := range map[string]SliceConfig{
		"classified": {Z: 0, Classify: true},
		"ramp":       {Z: 0, Classify: false},
	} {
		path := filepath.Join(t.TempDir(), name+".png")
		if err := RenderOccupancySlicePNG(g, cfg, path); err != nil {
			t.Fatalf("RenderOccupancySlicePNG(%s) failed: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("plot file not created: %v", err)
		}
		if info.Size() == 0 {
			t.Errorf("expected a non-empty plot file for %s", name)
		}
	}
}

func TestRenderOccupancySliceErrors(t *testing.T) {
	g := buildTestGrid(t)
	path := filepath.Join(t.TempDir(), "never.png")

	if err := RenderOccupancySlicePNG(nil, SliceConfig{}, path); err == nil {
		t.Error("expected an error for a nil grid")
	}
	if err := RenderOccupancySlicePNG(g, SliceConfig{Z: -1}, path); err == nil {
		t.Error("expected an error for a negative slice")
	}
	if err := RenderOccupancySlicePNG(g, SliceConfig{Z: 2}, path); err == nil {
		t.Error("expected an error for a slice past the grid")
	}
}

func TestWriteComponentChartHTML(t *testing.T) {
	g := buildTestGrid(t)

	var buf bytes.Buffer
	if err := WriteComponentChartHTML(g, 0, &buf); err == nil {
		t.Fatal("expected an error while components are stale")
	}

	numComponents := g.UpdateConnectedComponents()
	if numComponents == 0 {
		t.Fatal("expected at least one component")
	}

	buf.Reset()
	if err := WriteComponentChartHTML(g, 0, &buf); err != nil {
		t.Fatalf("WriteComponentChartHTML failed: %v", err)
	}

	html := buf.String()
	if !strings.Contains(html, "echarts") {
		t.Error("expected rendered HTML to reference echarts")
	}
	if !strings.Contains(html, "Connected Components") {
		t.Error("expected rendered HTML to carry the chart title")
	}
}

func TestWriteComponentChartFile(t *testing.T) {
	g := buildTestGrid(t)
	g.UpdateConnectedComponents()

	path := filepath.Join(t.TempDir(), "components.html")
	if err := WriteComponentChartFile(g, 0, path); err != nil {
		t.Fatalf("WriteComponentChartFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("chart file not created: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected a non-empty chart file")
	}
}

func TestHslToRGBPrimaries(t *testing.T) {
	tests := []struct {
		h, s, l float64
		r, g, b uint8
	}{
		{0.0, 1.0, 0.5, 255, 0, 0},
		{1.0 / 3.0, 1.0, 0.5, 0, 255, 0},
		{2.0 / 3.0, 1.0, 0.5, 0, 0, 255},
		{0.0, 0.0, 0.5, 127, 127, 127},
	}
	for _, tt := range tests {
		r, g, b := hslToRGB(tt.h, tt.s, tt.l)
		if absInt(int(r)-int(tt.r)) > 1 || absInt(int(g)-int(tt.g)) > 1 || absInt(int(b)-int(tt.b)) > 1 {
			t.Errorf("hslToRGB(%f, %f, %f): expected (%d, %d, %d), got (%d, %d, %d)",
				tt.h, tt.s, tt.l, tt.r, tt.g, tt.b, r, g, b)
		}
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
