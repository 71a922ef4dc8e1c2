package factory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zbendefy/macademy-go/compute"
	"github.com/zbendefy/macademy-go/compute/factory"
)

func TestEnumerateComputeDevicesCPUFirst(t *testing.T) {
	f := factory.Factory{}
	infos, err := f.EnumerateComputeDevices()
	require.NoError(t, err)
	require.NotEmpty(t, infos)
	require.Equal(t, factory.BackendCPU, infos[0].Backend)
}

func TestCreateComputeDeviceUnknownBackend(t *testing.T) {
	f := factory.Factory{}
	_, err := f.CreateComputeDevice(compute.ComputeDeviceInfo{Backend: "nope"}, nil)
	require.ErrorIs(t, err, compute.ErrInvalidArgument)
}

func TestCreateComputeDeviceCPU(t *testing.T) {
	f := factory.Factory{}
	d, err := f.CreateComputeDevice(compute.ComputeDeviceInfo{Backend: factory.BackendCPU, DeviceIndex: 0}, compute.DeviceConfig{})
	require.NoError(t, err)
	require.NotEmpty(t, d.DeviceName())
}

func TestCreateComputeDeviceGPUUnavailable(t *testing.T) {
	f := factory.Factory{}
	_, err := f.CreateComputeDevice(compute.ComputeDeviceInfo{Backend: factory.BackendGPU}, nil)
	require.ErrorIs(t, err, compute.ErrInvalidArgument)
}
