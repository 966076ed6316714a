package voxelize

import "fmt"

// CUDAAvailableDevices enumerates CUDA compute devices. This build carries
// no CUDA runtime binding, so enumeration is always empty.
func CUDAAvailableDevices() []AvailableDevice { return nil }

// NewCUDADevice opens a CUDA device for voxelization. A cgo-backed binding
// slots in behind this constructor; without one it reports
// ErrBackendUnavailable.
func NewCUDADevice(deviceOptions map[string]int32) (Device, error) {
	return nil, fmt.Errorf("cuda: %w", ErrBackendUnavailable)
}
