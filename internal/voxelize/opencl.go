package voxelize

import "fmt"

// AvailableDevice describes one enumerated compute device.
type AvailableDevice struct {
	DeviceName    string
	DeviceOptions map[string]int32
}

// OpenCLAvailableDevices enumerates OpenCL compute devices. This build
// carries no OpenCL runtime binding, so enumeration is always empty.
func OpenCLAvailableDevices() []AvailableDevice { return nil }

// NewOpenCLDevice opens an OpenCL device for voxelization. A cgo-backed
// binding slots in behind this constructor; without one it reports
// ErrBackendUnavailable.
func NewOpenCLDevice(deviceOptions map[string]int32) (Device, error) {
	return nil, fmt.Errorf("opencl: %w", ErrBackendUnavailable)
}
