// Command voxelize fuses point clouds into an occupancy grid and reports the
// topology of the result. Clouds come from scanning an OFF mesh or, with no
// mesh, from a synthetic box scene sized to the configured grid.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/config"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/geometry"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/gridviz"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/occupancy"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/pointcloud"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/pointcloud/meshscan"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/version"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/vgtdb"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelize"
)

var (
	configPath  = flag.String("config", "", "Path to pipeline config JSON (built-in defaults when empty)")
	meshPath    = flag.String("mesh", "", "OFF mesh to scan into point clouds (synthetic box scene when empty)")
	meshRange   = flag.Float64("mesh-range", 0, "Max scan range in meters (0 = unlimited)")
	numScans    = flag.Int("scans", 4, "Number of sensor positions around the scene")
	backendName = flag.String("backend", "", "Backend override: best, cpu, opencl, cuda or sim")
	outPath     = flag.String("out", "", "Write the fused grid to this file")
	dbPath      = flag.String("db", "", "SQLite database for snapshots and run records (disabled when empty)")
	gridID      = flag.String("grid-id", "voxelize-cli", "Grid id for database snapshots")
	slicePNG    = flag.String("slice-png", "", "Render a Z slice of the fused grid to this PNG")
	chartHTML   = flag.String("chart-html", "", "Write a component chart of the fused grid to this HTML file")
	sliceZ      = flag.Int("slice-z", -1, "Slice layer for PNG/HTML output (-1 = middle layer)")
	verbose     = flag.Bool("verbose", false, "Verbose topology diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("voxelize %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.DefaultPipelineConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadPipelineConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	sizes, err := cfg.GridSizes()
	if err != nil {
		log.Fatalf("grid sizes: %v", err)
	}
	static, err := occupancy.New(cfg.GridOrigin(), cfg.GetGridFrame(), sizes,
		occupancy.CellState{Occupancy: float32(cfg.GetDefaultOccupancy())})
	if err != nil {
		log.Fatalf("build grid: %v", err)
	}

	clouds, err := buildClouds(static)
	if err != nil {
		log.Fatalf("build point clouds: %v", err)
	}
	if len(clouds) == 0 {
		log.Fatalf("no usable point clouds; every scan came back empty")
	}

	kind, err := cfg.BackendKind()
	if err != nil {
		log.Fatalf("config backend: %v", err)
	}
	if *backendName != "" {
		kind, err = voxelize.ParseBackend(*backendName)
		if err != nil {
			log.Fatalf("backend flag: %v", err)
		}
	}
	var deviceOptions map[string]int32
	if n := cfg.GetNumThreads(); n > 0 {
		deviceOptions = map[string]int32{voxelize.CPUNumThreadsOption: int32(n)}
	}
	vox, err := voxelize.NewVoxelizer(kind, deviceOptions)
	if err != nil {
		log.Fatalf("create voxelizer: %v", err)
	}

	totalPoints := 0
	for _, c := range clouds {
		totalPoints += c.Size()
	}
	fmt.Printf("Voxelizing %d clouds (%d points) on %s (%s)...\n",
		len(clouds), totalPoints, vox.Backend(), deviceName(vox))

	startedAt := time.Now()
	fused, rt, err := vox.VoxelizePointClouds(static, cfg.GetStepSizeMultiplier(), cfg.FilterOptions(), clouds)
	if err != nil {
		log.Fatalf("voxelize point clouds: %v", err)
	}
	finishedAt := time.Now()
	fmt.Printf("Raycasting took %v, filtering %v\n", rt.RaycastingTime, rt.FilteringTime)

	reportTopology(fused, *verbose)

	zSlice := *sliceZ
	if zSlice < 0 {
		zSlice = sizes.NumZCells / 2
	}
	if *slicePNG != "" {
		if err := gridviz.RenderOccupancySlicePNG(fused, gridviz.SliceConfig{Z: zSlice, Classify: true}, *slicePNG); err != nil {
			log.Fatalf("render slice: %v", err)
		}
		fmt.Printf("Wrote slice plot to %s\n", *slicePNG)
	}
	if *chartHTML != "" {
		if err := gridviz.WriteComponentChartFile(fused, zSlice, *chartHTML); err != nil {
			log.Fatalf("write component chart: %v", err)
		}
		fmt.Printf("Wrote component chart to %s\n", *chartHTML)
	}

	if *outPath != "" {
		if err := fused.SaveToFile(*outPath, true); err != nil {
			log.Fatalf("save grid: %v", err)
		}
		fmt.Printf("Wrote fused grid to %s\n", *outPath)
	}

	if *dbPath != "" {
		db, err := vgtdb.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer db.Close()

		snapshotID, err := fused.Persist(db, *gridID, "post_voxelize")
		if err != nil {
			log.Fatalf("persist snapshot: %v", err)
		}
		run, err := voxelize.RecordRun(db, vox.Backend(), deviceName(vox), clouds,
			rt, startedAt, finishedAt, &snapshotID)
		if err != nil {
			log.Fatalf("record run: %v", err)
		}
		fmt.Printf("Recorded snapshot %d and run %s in %s\n", snapshotID, run.RunID, *dbPath)
	}
}

// deviceName names the voxelizer's device for logs and run records.
func deviceName(v voxelize.Voxelizer) string {
	if n, ok := v.(interface{ DeviceName() string }); ok {
		return n.DeviceName()
	}
	return v.Backend().String()
}

// buildClouds scans the configured mesh from a ring of sensor positions, or
// synthesizes box scans when no mesh is given.
func buildClouds(static *occupancy.Grid) ([]pointcloud.Cloud, error) {
	if *meshPath != "" {
		return scanMesh(*meshPath)
	}
	return syntheticScene(static), nil
}

// scanMesh loads an OFF mesh and scans it from sensor positions around its
// bounds. The grid must be configured to cover the mesh coordinates.
func scanMesh(path string) ([]pointcloud.Cloud, error) {
	scanner, err := meshscan.LoadOFF(path, *meshRange)
	if err != nil {
		return nil, err
	}
	lo, hi := scanner.Bounds()
	center := r3.Scale(0.5, r3.Add(lo, hi))
	halfDiag := 0.5 * r3.Norm(r3.Sub(hi, lo))
	fmt.Printf("Mesh bounds [%.2f %.2f %.2f] .. [%.2f %.2f %.2f]\n",
		lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)

	var clouds []pointcloud.Cloud
	for _, eye := range sensorRing(center, 1.25*halfDiag, *numScans) {
		cloud := scanner.ScanFrom(eye, 96, 48)
		if cloud.Size() == 0 {
			log.Printf("scan from (%.2f, %.2f, %.2f) saw no mesh; skipping", eye.X, eye.Y, eye.Z)
			continue
		}
		clouds = append(clouds, cloud)
	}
	return clouds, nil
}

// syntheticScene scans a box obstacle in the middle of the grid from a ring
// of sensors at mid-height.
func syntheticScene(static *occupancy.Grid) []pointcloud.Cloud {
	sizes := static.Sizes()
	extent := r3.Vec{
		X: float64(sizes.NumXCells) * sizes.CellXSize,
		Y: float64(sizes.NumYCells) * sizes.CellYSize,
		Z: float64(sizes.NumZCells) * sizes.CellZSize,
	}
	center := static.Origin().Apply(r3.Scale(0.5, extent))
	halfBox := r3.Scale(0.125, extent)
	boxMin := r3.Sub(center, halfBox)
	boxMax := r3.Add(center, halfBox)

	radius := 0.35 * math.Min(extent.X, extent.Y)
	clouds := make([]pointcloud.Cloud, 0, *numScans)
	for _, eye := range sensorRing(center, radius, *numScans) {
		// Box corners are world coordinates; the cloud carries sensor-frame
		// points under a pure translation pose.
		clouds = append(clouds, pointcloud.BoxScanCloud(
			geometry.Translation(eye.X, eye.Y, eye.Z),
			r3.Sub(boxMin, eye), r3.Sub(boxMax, eye), 12))
	}
	return clouds
}

// sensorRing places count positions evenly on a circle around center at
// center's height.
func sensorRing(center r3.Vec, radius float64, count int) []r3.Vec {
	if count < 1 {
		count = 1
	}
	eyes := make([]r3.Vec, 0, count)
	for i := 0; i < count; i++ {
		phi := 2 * math.Pi * float64(i) / float64(count)
		eyes = append(eyes, r3.Add(center, r3.Vec{
			X: radius * math.Cos(phi),
			Y: radius * math.Sin(phi),
		}))
	}
	return eyes
}

// reportTopology labels the fused grid and prints occupancy and topology
// counts for the filled components.
func reportTopology(g *occupancy.Grid, verbose bool) {
	numComponents := g.UpdateConnectedComponents()

	var counts [3]int64
	g.Sizes().ForEach(func(idx voxelgrid.Index) bool {
		counts[g.State(idx).Classification()]++
		return true
	})
	fmt.Printf("Fused grid: %d cells (%d filled, %d free, %d unknown), %d components\n",
		g.TotalCells(), counts[occupancy.Filled], counts[occupancy.Free],
		counts[occupancy.Unknown], numComponents)

	invariants, err := g.ComputeComponentTopology(occupancy.FilledComponents, true, verbose)
	if err != nil {
		log.Fatalf("component topology: %v", err)
	}
	ids := make([]uint32, 0, len(invariants))
	for id := range invariants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		topo := invariants[id]
		fmt.Printf("  filled component %d: holes=%d voids=%d\n", id, topo.Holes, topo.Voids)
	}
}
