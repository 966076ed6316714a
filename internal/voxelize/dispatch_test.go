package voxelize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendKindString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind BackendKind
		want string
	}{
		{BestAvailable, "best_available"},
		{CPUBackend, "cpu"},
		{OpenCLBackend, "opencl"},
		{CUDABackend, "cuda"},
		{SimBackend, "sim"},
		{BackendKind(42), "unknown(42)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestGetAvailableBackends(t *testing.T) {
	t.Parallel()
	backends := GetAvailableBackends()
	require.NotEmpty(t, backends)

	// The CPU backend closes the list, and the simulator never appears.
	last := backends[len(backends)-1]
	assert.Equal(t, CPUBackend, last.Kind)
	assert.Equal(t, cpuDeviceName, last.DeviceName)
	for _, b := range backends {
		assert.NotEqual(t, SimBackend, b.Kind)
	}

	// Each call enumerates freshly.
	again := GetAvailableBackends()
	require.Len(t, again, len(backends))
	assert.NotSame(t, &backends[0], &again[0])
}

func TestNewVoxelizerExplicitKinds(t *testing.T) {
	t.Parallel()
	v, err := NewVoxelizer(CPUBackend, nil)
	require.NoError(t, err)
	assert.Equal(t, CPUBackend, v.Backend())

	// Explicitly requested accelerators never fall back.
	_, err = NewVoxelizer(OpenCLBackend, nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)
	_, err = NewVoxelizer(CUDABackend, nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)

	v, err = NewVoxelizer(SimBackend, nil)
	require.NoError(t, err)
	assert.Equal(t, SimBackend, v.Backend())
	dv, ok := v.(*DeviceVoxelizer)
	require.True(t, ok)
	assert.Equal(t, "InMemorySim", dv.DeviceName())

	_, err = NewVoxelizer(BackendKind(99), nil)
	require.ErrorContains(t, err, "invalid voxelizer backend")
}

func TestNewBestAvailableVoxelizer(t *testing.T) {
	t.Parallel()
	// Without accelerator support compiled in, the fallback chain lands on
	// the CPU backend.
	v, err := NewBestAvailableVoxelizer(nil)
	require.NoError(t, err)
	assert.Equal(t, CPUBackend, v.Backend())

	v, err = NewVoxelizer(BestAvailable, nil)
	require.NoError(t, err)
	assert.Equal(t, CPUBackend, v.Backend())
}

func TestAcceleratorDeviceEnumeration(t *testing.T) {
	t.Parallel()
	assert.Empty(t, OpenCLAvailableDevices())
	assert.Empty(t, CUDAAvailableDevices())

	_, err := NewOpenCLDevice(nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)
	_, err = NewCUDADevice(nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestParseBackend(t *testing.T) {
	t.Parallel()
	for name, want := range map[string]BackendKind{
		"":               BestAvailable,
		"best":           BestAvailable,
		"best_available": BestAvailable,
		"cpu":            CPUBackend,
		"opencl":         OpenCLBackend,
		"cuda":           CUDABackend,
		"sim":            SimBackend,
	} {
		kind, err := ParseBackend(name)
		require.NoError(t, err, "name %q", name)
		assert.Equal(t, want, kind, "name %q", name)
	}

	_, err := ParseBackend("tpu")
	require.ErrorContains(t, err, `unknown voxelizer backend "tpu"`)
}
