package voxelize

import (
	"fmt"
	"time"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/monitoring"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/occupancy"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/pointcloud"
)

// Device is the staged contract accelerator backends implement. A
// voxelization run calls, in order: PrepareTrackingGrids once,
// RaycastPoints per cloud, PrepareFilterGrid, FilterTrackingGrids,
// RetrieveFilteredGrid, and finally CleanupAllocatedMemory whether or not
// the earlier stages succeeded. Poses cross the boundary as row-major 4x4
// float32 matrices; cells as the packed 8-byte layout.
type Device interface {
	Name() string
	PrepareTrackingGrids(numCells int64, numClouds int) ([]int64, error)
	RaycastPoints(points []float32, cloudOriginTransform, inverseGridOriginTransform [16]float32,
		inverseStepSize, inverseCellSize float32, numXCells, numYCells, numZCells int32,
		trackingGridOffset int64) error
	PrepareFilterGrid(numCells int64, staticCells []occupancy.PackedCell) error
	FilterTrackingGrids(numCells int64, numClouds int, percentSeenFree float32,
		outlierPointsThreshold, numCamerasSeenFree int32) error
	RetrieveFilteredGrid(numCells int64, out []occupancy.PackedCell) error
	CleanupAllocatedMemory()
}

// DeviceVoxelizer implements Voxelizer by driving a Device through the
// staged sequence.
type DeviceVoxelizer struct {
	device  Device
	backend BackendKind
}

// NewDeviceVoxelizer wraps a device, tagging it with the backend it serves.
func NewDeviceVoxelizer(device Device, backend BackendKind) *DeviceVoxelizer {
	return &DeviceVoxelizer{device: device, backend: backend}
}

// Backend identifies the implementation.
func (v *DeviceVoxelizer) Backend() BackendKind { return v.backend }

// DeviceName returns the underlying device's name.
func (v *DeviceVoxelizer) DeviceName() string { return v.device.Name() }

// VoxelizePointClouds uploads the clouds, raycasts and filters on the
// device, and downloads the filtered grid. Device memory is released on
// every path out.
func (v *DeviceVoxelizer) VoxelizePointClouds(static *occupancy.Grid, stepSizeMultiplier float64,
	filter FilterOptions, clouds []pointcloud.Cloud) (*occupancy.Grid, Runtime, error) {
	if err := validateVoxelizeArgs(static, stepSizeMultiplier, filter); err != nil {
		return nil, Runtime{}, err
	}
	defer v.device.CleanupAllocatedMemory()
	start := time.Now()

	numCells := static.TotalCells()
	offsets, err := v.device.PrepareTrackingGrids(numCells, len(clouds))
	if err != nil {
		return nil, Runtime{}, fmt.Errorf("prepare tracking grids: %w", err)
	}
	if len(offsets) != len(clouds) {
		return nil, Runtime{}, fmt.Errorf("device allocated %d tracking grids for %d clouds",
			len(offsets), len(clouds))
	}

	sizes := static.Sizes()
	inverseGridOrigin := static.InverseOrigin().AsFloat32()
	inverseStepSize := float32(1.0 / (static.Resolution() * stepSizeMultiplier))
	inverseCellSize := float32(1.0 / static.Resolution())
	for i, cloud := range clouds {
		err := v.device.RaycastPoints(pointcloud.FlattenPoints(cloud),
			cloud.OriginTransform().AsFloat32(), inverseGridOrigin,
			inverseStepSize, inverseCellSize,
			int32(sizes.NumXCells), int32(sizes.NumYCells), int32(sizes.NumZCells),
			offsets[i])
		if err != nil {
			return nil, Runtime{}, fmt.Errorf("raycast cloud %d: %w", i, err)
		}
	}
	raycastDone := time.Now()

	if err := v.device.PrepareFilterGrid(numCells, static.PackCells()); err != nil {
		return nil, Runtime{}, fmt.Errorf("prepare filter grid: %w", err)
	}
	if err := v.device.FilterTrackingGrids(numCells, len(clouds),
		float32(filter.PercentSeenFree), filter.OutlierPointsThreshold,
		filter.NumCamerasSeenFree); err != nil {
		return nil, Runtime{}, fmt.Errorf("filter tracking grids: %w", err)
	}
	filtered := make([]occupancy.PackedCell, numCells)
	if err := v.device.RetrieveFilteredGrid(numCells, filtered); err != nil {
		return nil, Runtime{}, fmt.Errorf("retrieve filtered grid: %w", err)
	}

	output := static.Clone()
	if err := output.UnpackCells(filtered); err != nil {
		return nil, Runtime{}, err
	}
	rt := Runtime{
		RaycastingTime: raycastDone.Sub(start),
		FilteringTime:  time.Since(raycastDone),
	}
	monitoring.Logf("[DeviceVoxelizer] Voxelized point clouds: device=%s clouds=%d raycasting=%v filtering=%v",
		v.device.Name(), len(clouds), rt.RaycastingTime, rt.FilteringTime)
	return output, rt, nil
}
