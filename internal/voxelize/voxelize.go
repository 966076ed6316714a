// Package voxelize turns point clouds into occupancy grids by raycasting
// free space from each sensor origin and fusing the per-cloud observations
// with a consensus filter. Backends share one semantics: a pure-Go CPU
// implementation, a staged device interface for accelerator bindings, and an
// in-memory device simulator.
package voxelize

import (
	"errors"
	"fmt"
	"time"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/monitoring"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/occupancy"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/pointcloud"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelize/devicesim"
)

// ErrBackendUnavailable reports that a requested voxelizer backend cannot run
// in this build or on this host.
var ErrBackendUnavailable = errors.New("voxelizer backend unavailable")

// BackendKind identifies a voxelizer implementation.
type BackendKind int32

const (
	// BestAvailable picks the most capable backend that constructs.
	BestAvailable BackendKind = iota
	// CPUBackend is the pure-Go implementation.
	CPUBackend
	// OpenCLBackend drives an OpenCL device.
	OpenCLBackend
	// CUDABackend drives a CUDA device.
	CUDABackend
	// SimBackend drives the in-memory device simulator. Useful for
	// exercising the device path without hardware; never enumerated as
	// available.
	SimBackend
)

// String returns the backend name used in logs and run records.
func (k BackendKind) String() string {
	switch k {
	case BestAvailable:
		return "best_available"
	case CPUBackend:
		return "cpu"
	case OpenCLBackend:
		return "opencl"
	case CUDABackend:
		return "cuda"
	case SimBackend:
		return "sim"
	default:
		return fmt.Sprintf("unknown(%d)", int32(k))
	}
}

// ParseBackend maps a backend name from configuration to its kind. The empty
// string and "best" both select BestAvailable.
func ParseBackend(name string) (BackendKind, error) {
	switch name {
	case "", "best", "best_available":
		return BestAvailable, nil
	case "cpu":
		return CPUBackend, nil
	case "opencl":
		return OpenCLBackend, nil
	case "cuda":
		return CUDABackend, nil
	case "sim":
		return SimBackend, nil
	default:
		return BestAvailable, fmt.Errorf("unknown voxelizer backend %q", name)
	}
}

// Runtime reports how long the two voxelization phases took.
type Runtime struct {
	RaycastingTime time.Duration
	FilteringTime  time.Duration
}

// Voxelizer is a point cloud voxelization implementation.
type Voxelizer interface {
	// Backend identifies the implementation.
	Backend() BackendKind
	// VoxelizePointClouds raycasts the clouds against the static
	// environment and returns a filtered copy of it.
	VoxelizePointClouds(static *occupancy.Grid, stepSizeMultiplier float64,
		filter FilterOptions, clouds []pointcloud.Cloud) (*occupancy.Grid, Runtime, error)
}

// AvailableBackend describes one constructible backend on this host.
type AvailableBackend struct {
	Kind          BackendKind
	DeviceName    string
	DeviceOptions map[string]int32
}

// GetAvailableBackends enumerates usable backends in preference order,
// freshly on each call. The CPU backend is always last and always present.
func GetAvailableBackends() []AvailableBackend {
	var backends []AvailableBackend
	for _, dev := range CUDAAvailableDevices() {
		backends = append(backends, AvailableBackend{
			Kind: CUDABackend, DeviceName: dev.DeviceName, DeviceOptions: dev.DeviceOptions,
		})
	}
	for _, dev := range OpenCLAvailableDevices() {
		backends = append(backends, AvailableBackend{
			Kind: OpenCLBackend, DeviceName: dev.DeviceName, DeviceOptions: dev.DeviceOptions,
		})
	}
	return append(backends, AvailableBackend{Kind: CPUBackend, DeviceName: cpuDeviceName})
}

// NewVoxelizer constructs the requested backend. Explicit kinds surface
// ErrBackendUnavailable without fallback.
func NewVoxelizer(kind BackendKind, deviceOptions map[string]int32) (Voxelizer, error) {
	switch kind {
	case BestAvailable:
		return NewBestAvailableVoxelizer(deviceOptions)
	case CPUBackend:
		return NewCPUVoxelizer(deviceOptions), nil
	case OpenCLBackend:
		dev, err := NewOpenCLDevice(deviceOptions)
		if err != nil {
			return nil, err
		}
		return NewDeviceVoxelizer(dev, OpenCLBackend), nil
	case CUDABackend:
		dev, err := NewCUDADevice(deviceOptions)
		if err != nil {
			return nil, err
		}
		return NewDeviceVoxelizer(dev, CUDABackend), nil
	case SimBackend:
		return NewDeviceVoxelizer(devicesim.New(), SimBackend), nil
	default:
		return nil, fmt.Errorf("invalid voxelizer backend %d", int32(kind))
	}
}

// NewBestAvailableVoxelizer tries CUDA, then OpenCL, then falls back to the
// CPU backend, which always constructs.
func NewBestAvailableVoxelizer(deviceOptions map[string]int32) (Voxelizer, error) {
	dev, err := NewCUDADevice(deviceOptions)
	if err == nil {
		return NewDeviceVoxelizer(dev, CUDABackend), nil
	}
	monitoring.Logf("[Voxelizer] CUDA voxelizer not available: %v", err)

	dev, err = NewOpenCLDevice(deviceOptions)
	if err == nil {
		return NewDeviceVoxelizer(dev, OpenCLBackend), nil
	}
	monitoring.Logf("[Voxelizer] OpenCL voxelizer not available: %v", err)

	monitoring.Logf("[Voxelizer] Using CPU voxelizer")
	return NewCPUVoxelizer(deviceOptions), nil
}
