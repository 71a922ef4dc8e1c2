// Package factory implements ComputeDeviceFactory: enumeration and
// instantiation of concrete ComputeDevice backends given a (backend tag,
// device index, config map) (spec §6).
package factory

import (
	"log/slog"
	"runtime"
	"strconv"

	"github.com/zbendefy/macademy-go/compute"
	"github.com/zbendefy/macademy-go/compute/cpu"
)

// BackendCPU is the backend tag for the CPU device.
const BackendCPU = "cpu"

// BackendGPU is the backend tag for the Vulkan compute GPU device.
const BackendGPU = "gpu"

// Factory enumerates and instantiates compiled-in ComputeDevice backends.
type Factory struct {
	Logger *slog.Logger
	// GPUDevices, if non-nil, is called once to enumerate the physical GPU
	// devices visible to this process. Kept as an injected hook so this
	// package does not hard-require a working Vulkan loader at import time
	// in environments (like CI) that have none.
	GPUDevices func() ([]compute.ComputeDeviceInfo, error)
	// NewGPUDevice, if non-nil, constructs a GPU ComputeDevice for one of
	// the infos GPUDevices returned.
	NewGPUDevice func(info compute.ComputeDeviceInfo, config compute.DeviceConfig) (compute.Device, error)
}

// EnumerateComputeDevices returns every device across every compiled-in
// backend, CPU first (spec §6).
func (f Factory) EnumerateComputeDevices() ([]compute.ComputeDeviceInfo, error) {
	infos := []compute.ComputeDeviceInfo{{
		Backend:     BackendCPU,
		DeviceIndex: 0,
		DeviceName:  cpuDeviceName(),
		TotalMemory: 0,
	}}

	if f.GPUDevices != nil {
		gpuInfos, err := f.GPUDevices()
		if err != nil {
			return nil, compute.WrapBackendFailure("enumerate", err)
		}
		infos = append(infos, gpuInfos...)
	}
	return infos, nil
}

// CreateComputeDevice returns a ComputeDevice for info, or fails with
// ErrInvalidArgument when backend is unknown (spec §6).
func (f Factory) CreateComputeDevice(info compute.ComputeDeviceInfo, config compute.DeviceConfig) (compute.Device, error) {
	switch info.Backend {
	case BackendCPU:
		workers := int(config.Uint32("cpu_workers", 0))
		return cpu.New(info.DeviceIndex, workers, f.Logger), nil
	case BackendGPU:
		if f.NewGPUDevice == nil {
			return nil, compute.WrapInvalidArgument("factory: backend %q is not available in this build", info.Backend)
		}
		return f.NewGPUDevice(info, config)
	default:
		return nil, compute.WrapInvalidArgument("factory: unknown backend %q", info.Backend)
	}
}

func cpuDeviceName() string {
	return "CPU Backend (" + strconv.Itoa(runtime.NumCPU()) + " threads)"
}
