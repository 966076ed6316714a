package voxelize

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/monitoring"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/occupancy"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/pointcloud"
)

const cpuDeviceName = "CPU/goroutines"

// CPUNumThreadsOption is the device option key selecting the CPU backend's
// degree of parallelism. Zero or absent means GOMAXPROCS.
const CPUNumThreadsOption = "CPU_NUM_THREADS"

// CPUVoxelizer is the pure-Go voxelizer: raycasting runs one goroutine per
// cloud, filtering splits the cell range, both bounded by the configured
// thread count.
type CPUVoxelizer struct {
	numThreads int
}

// NewCPUVoxelizer builds the CPU backend from device options.
func NewCPUVoxelizer(deviceOptions map[string]int32) *CPUVoxelizer {
	numThreads := runtime.GOMAXPROCS(0)
	if v, ok := deviceOptions[CPUNumThreadsOption]; ok && v > 0 {
		numThreads = int(v)
	}
	return &CPUVoxelizer{numThreads: numThreads}
}

// Backend identifies the implementation.
func (v *CPUVoxelizer) Backend() BackendKind { return CPUBackend }

// DeviceName names the backend for logs and run records.
func (v *CPUVoxelizer) DeviceName() string { return cpuDeviceName }

// validateVoxelizeArgs checks the arguments every backend shares.
func validateVoxelizeArgs(static *occupancy.Grid, stepSizeMultiplier float64, filter FilterOptions) error {
	if !static.IsInitialized() {
		return errors.New("static environment grid is not initialized")
	}
	if stepSizeMultiplier <= 0 || stepSizeMultiplier > 1 {
		return fmt.Errorf("step size multiplier %g is not in (0, 1]", stepSizeMultiplier)
	}
	return filter.Validate()
}

// VoxelizePointClouds raycasts every cloud into its own tracking grid, then
// filters the static environment by consensus across clouds.
func (v *CPUVoxelizer) VoxelizePointClouds(static *occupancy.Grid, stepSizeMultiplier float64,
	filter FilterOptions, clouds []pointcloud.Cloud) (*occupancy.Grid, Runtime, error) {
	if err := validateVoxelizeArgs(static, stepSizeMultiplier, filter); err != nil {
		return nil, Runtime{}, err
	}
	start := time.Now()

	step := static.Resolution() * stepSizeMultiplier
	tracking := make([]*TrackingGrid, len(clouds))
	for i := range tracking {
		tracking[i] = NewTrackingGrid(static.Sizes())
	}

	var eg errgroup.Group
	eg.SetLimit(v.numThreads)
	for i, cloud := range clouds {
		eg.Go(func() error {
			raycastCloud(static, cloud, step, tracking[i])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, Runtime{}, err
	}
	raycastDone := time.Now()

	output := static.Clone()
	if err := filterTrackingGrids(output, tracking, filter, v.numThreads); err != nil {
		return nil, Runtime{}, err
	}
	rt := Runtime{
		RaycastingTime: raycastDone.Sub(start),
		FilteringTime:  time.Since(raycastDone),
	}
	monitoring.Logf("[CPUVoxelizer] Voxelized point clouds: clouds=%d raycasting=%v filtering=%v",
		len(clouds), rt.RaycastingTime, rt.FilteringTime)
	return output, rt, nil
}

// raycastCloud walks each point's ray from the sensor origin, marking every
// traversed cell seen-free and the terminal cell seen-filled. Free marks
// never land in the ray's own terminal cell, so a zero-length ray marks only
// its terminal. Out-of-bounds cells are skipped.
func raycastCloud(static *occupancy.Grid, cloud pointcloud.Cloud, step float64, tg *TrackingGrid) {
	sizes := static.Sizes()
	pose := cloud.OriginTransform()
	sensor := pose.Translation()
	for i := 0; i < cloud.Size(); i++ {
		point := pose.Apply(cloud.Point(i))
		ray := r3.Sub(point, sensor)
		rayLen := r3.Norm(ray)
		terminal := static.LocationToIndex(point)

		numSteps := int(math.Floor(rayLen / step))
		for k := 0; k < numSteps; k++ {
			frac := float64(k) * step / rayLen
			idx := static.LocationToIndex(r3.Add(sensor, r3.Scale(frac, ray)))
			if idx == terminal || !sizes.Contains(idx) {
				continue
			}
			tg.MarkSeenFree(sizes.DataIndex(idx))
		}
		if sizes.Contains(terminal) {
			tg.MarkSeenFilled(sizes.DataIndex(terminal))
		}
	}
}

// filterTrackingGrids rewrites output occupancies from the per-cloud counts.
// A cloud votes a cell filled when it saw more than the outlier threshold of
// points there, otherwise free when any of its rays crossed the cell. One
// filled vote fills the cell; enough free votes clear it; otherwise the
// static occupancy stands.
func filterTrackingGrids(output *occupancy.Grid, tracking []*TrackingGrid, opts FilterOptions, numThreads int) error {
	packed := output.PackCells()
	numClouds := len(tracking)

	chunk := (len(packed) + numThreads - 1) / numThreads
	if chunk < 1 {
		chunk = 1
	}
	var eg errgroup.Group
	eg.SetLimit(numThreads)
	for lo := 0; lo < len(packed); lo += chunk {
		hi := min(lo+chunk, len(packed))
		eg.Go(func() error {
			for i := lo; i < hi; i++ {
				var freeVotes, filledVotes int32
				for _, tg := range tracking {
					seenFree, seenFilled := tg.Counts(i)
					if seenFilled > opts.OutlierPointsThreshold {
						filledVotes++
					} else if seenFree > 0 {
						freeVotes++
					}
				}
				if filledVotes > 0 {
					packed[i] = packed[i].WithOccupancy(1.0)
				} else if numClouds > 0 && freeVotes >= opts.NumCamerasSeenFree &&
					float64(freeVotes)/float64(numClouds) >= opts.PercentSeenFree {
					packed[i] = packed[i].WithOccupancy(0.0)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return output.UnpackCells(packed)
}
