// Package gridviz renders occupancy grid slices for debugging: PNG scatter
// plots of one Z layer via gonum/plot and standalone HTML component charts
// via go-echarts.
package gridviz

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/occupancy"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

// viridis-style ramp used by the component charts' visual map.
var componentRamp = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// SliceConfig selects what RenderOccupancySlicePNG draws.
type SliceConfig struct {
	// Z is the layer to render (grid z index).
	Z int
	// Classify colors cells by free/unknown/filled class instead of a
	// continuous occupancy ramp.
	Classify bool
}

func sliceInRange(g *occupancy.Grid, z int) error {
	if g == nil || !g.IsInitialized() {
		return errors.New("grid is not initialized")
	}
	if z < 0 || z >= g.Sizes().NumZCells {
		return fmt.Errorf("slice z=%d out of range [0,%d)", z, g.Sizes().NumZCells)
	}
	return nil
}

// RenderOccupancySlicePNG draws one Z layer of the grid as a top-down
// scatter plot in grid-local coordinates and saves it as a PNG.
func RenderOccupancySlicePNG(g *occupancy.Grid, cfg SliceConfig, path string) error {
	if err := sliceInRange(g, cfg.Z); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Occupancy slice z=%d (frame %s)", cfg.Z, g.Frame())
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	if cfg.Classify {
		if err := addClassifiedSlice(p, g, cfg.Z); err != nil {
			return err
		}
	} else {
		if err := addOccupancySlice(p, g, cfg.Z); err != nil {
			return err
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save slice plot: %w", err)
	}
	return nil
}

// addClassifiedSlice adds one scatter series per occupancy class.
func addClassifiedSlice(p *plot.Plot, g *occupancy.Grid, z int) error {
	sizes := g.Sizes()
	classColors := map[occupancy.Classification]color.Color{
		occupancy.Free:    color.RGBA{R: 158, G: 158, B: 158, A: 255},
		occupancy.Unknown: color.RGBA{R: 62, G: 73, B: 137, A: 255},
		occupancy.Filled:  color.RGBA{R: 255, G: 82, B: 82, A: 255},
	}

	for _, class := range []occupancy.Classification{occupancy.Free, occupancy.Unknown, occupancy.Filled} {
		pts := make(plotter.XYs, 0, sizes.NumXCells*sizes.NumYCells)
		for x := 0; x < sizes.NumXCells; x++ {
			for y := 0; y < sizes.NumYCells; y++ {
				idx := voxelgrid.Index{X: x, Y: y, Z: z}
				if g.State(idx).Classification() != class {
					continue
				}
				loc := sizes.IndexToLocation(idx)
				pts = append(pts, plotter.XY{X: loc.X, Y: loc.Y})
			}
		}
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = classColors[class]
		s.GlyphStyle.Radius = vg.Points(2)
		s.GlyphStyle.Shape = draw.BoxGlyph{}
		p.Add(s)
		p.Legend.Add(class.String(), s)
	}
	return nil
}

// addOccupancySlice adds one series per occupancy bucket so the legend reads
// as a coarse ramp.
func addOccupancySlice(p *plot.Plot, g *occupancy.Grid, z int) error {
	sizes := g.Sizes()
	const buckets = 5

	grouped := make([]plotter.XYs, buckets)
	for x := 0; x < sizes.NumXCells; x++ {
		for y := 0; y < sizes.NumYCells; y++ {
			idx := voxelgrid.Index{X: x, Y: y, Z: z}
			v := g.State(idx).Occupancy
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			b := int(v * buckets)
			if b >= buckets {
				b = buckets - 1
			}
			loc := sizes.IndexToLocation(idx)
			grouped[b] = append(grouped[b], plotter.XY{X: loc.X, Y: loc.Y})
		}
	}

	for b, pts := range grouped {
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		// Ramp from blue (free) to red (filled).
		hue := (1.0 - float64(b)/float64(buckets-1)) * 2.0 / 3.0
		r, gc, bc := hslToRGB(hue, 0.7, 0.5)
		s.GlyphStyle.Color = color.RGBA{R: r, G: gc, B: bc, A: 255}
		s.GlyphStyle.Radius = vg.Points(2)
		s.GlyphStyle.Shape = draw.BoxGlyph{}
		p.Add(s)
		lo := float64(b) / buckets
		hi := float64(b+1) / buckets
		p.Legend.Add(fmt.Sprintf("%.1f-%.1f", lo, hi), s)
	}
	return nil
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// WriteComponentChartHTML renders one Z layer as a standalone HTML scatter
// chart colored by connected component id. Components must be up to date;
// call UpdateConnectedComponents before rendering.
func WriteComponentChartHTML(g *occupancy.Grid, z int, w io.Writer) error {
	if err := sliceInRange(g, z); err != nil {
		return err
	}
	if !g.AreComponentsValid() {
		return errors.New("connected components are stale")
	}
	sizes := g.Sizes()
	numComponents, _ := g.NumConnectedComponents()

	data := make([]opts.ScatterData, 0, sizes.NumXCells*sizes.NumYCells)
	maxAbs := 0.0
	for x := 0; x < sizes.NumXCells; x++ {
		for y := 0; y < sizes.NumYCells; y++ {
			idx := voxelgrid.Index{X: x, Y: y, Z: z}
			loc := sizes.IndexToLocation(idx)
			comp := g.ComponentAt(idx)
			if abs := locAbsMax(loc.X, loc.Y); abs > maxAbs {
				maxAbs = abs
			}
			data = append(data, opts.ScatterData{Value: []interface{}{loc.X, loc.Y, comp}})
		}
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	maxComp := float32(numComponents)
	if maxComp == 0 {
		maxComp = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Occupancy Components", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Connected Components", Subtitle: fmt.Sprintf("frame=%s z=%d components=%d", g.Frame(), z, numComponents)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        maxComp,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: componentRamp},
		}),
	)
	scatter.AddSeries("components", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render component chart: %w", err)
	}
	return nil
}

// WriteComponentChartFile renders the component chart into an HTML file.
func WriteComponentChartFile(g *occupancy.Grid, z int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := WriteComponentChartHTML(g, z, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close chart file: %w", err)
	}
	return nil
}

func locAbsMax(x, y float64) float64 {
	ax, ay := x, y
	if ax < 0 {
		ax = -ax
	}
	if ay < 0 {
		ay = -ay
	}
	if ax > ay {
		return ax
	}
	return ay
}
