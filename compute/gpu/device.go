// Package gpu implements compute.Device on top of Vulkan compute shaders
// (spec §4.4), grounded on the teacher's vgpu.GPU/System/VarSet/Pipeline
// wiring (axon/gpu.go). Kernels are dispatched as HLSL compute shaders
// (shaders/*.hlsl) precompiled to SPIR-V by gosl + glslc/dxc; that build
// step is out of scope here (spec §4.4's "out of scope"), and so is
// checking compiled .spv output into this tree -- unlike axon/gpu.go,
// which embeds real bytecode its own build produces, this package has no
// compiled shaders to embed. newDevice instead loads them from
// DeviceConfig's KeyShaderDir at runtime and fails with ErrBackendFailure
// if that directory is unset or doesn't hold valid SPIR-V, rather than
// silently building a Device that can enumerate but never dispatch.
package gpu

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"goki.dev/vgpu/v2/vgpu"

	"github.com/zbendefy/macademy-go/compute"
)

//go:generate gosl -exclude=Update github.com/goki/mat32 kernels.go gpu_evaluate_layer.hlsl gpu_train_forward.hlsl gpu_train_backward.hlsl gpu_apply_gradients.hlsl

// spirvMagic is the little-endian SPIR-V module magic number (0x07230203),
// checked before trusting any file loadCompiledShader reads as real
// bytecode rather than a stray file of the right name.
const spirvMagic = 0x07230203

// loadCompiledShader reads name (e.g. "gpu_evaluate_layer.spv") from dir and
// verifies it starts with the SPIR-V magic number. It never fabricates
// bytecode: an empty or missing dir, a missing file, or a file that fails
// the magic check all return an error describing exactly what's absent.
func loadCompiledShader(dir, name string) ([]byte, error) {
	if dir == "" {
		return nil, fmt.Errorf("gpu: %s: no compiled SPIR-V available (set DeviceConfig[%q] to a directory produced by gosl + glslc/dxc)", name, compute.KeyShaderDir)
	}
	path := filepath.Join(dir, name)
	cb, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gpu: reading compiled shader %s: %w", path, err)
	}
	if len(cb) < 4 || binary.LittleEndian.Uint32(cb[:4]) != spirvMagic {
		return nil, fmt.Errorf("gpu: %s does not start with the SPIR-V magic number, refusing to load as bytecode", path)
	}
	return cb, nil
}

// Device is the Vulkan compute backend. A single VarSet (set 0) holds every
// dynamically-sized storage buffer the four kernels address; pipelines are
// selected per dispatch and rebind the same var set.
type Device struct {
	mu sync.Mutex

	index  uint32
	gpu    *vgpu.GPU
	sys    *vgpu.System
	vars   *vgpu.VarSet
	config compute.DeviceConfig

	evaluateLayer  *vgpu.Pipeline
	trainForward   *vgpu.Pipeline
	trainBackward  *vgpu.Pipeline
	applyGradients *vgpu.Pipeline

	evalThreadgroup  uint32
	trainThreadgroup [2]uint32
	applyThreadgroup uint32

	nextSlot int
	buffers  []*buffer
}

var _ compute.Device = (*Device)(nil)

// Enumerate lists the Vulkan physical devices visible to this process, for
// wiring into factory.Factory.GPUDevices (spec §6).
func Enumerate() ([]compute.ComputeDeviceInfo, error) {
	if err := vgpu.InitNoDisplay(); err != nil {
		return nil, compute.WrapBackendFailure("enumerate", err)
	}
	names := vgpu.PhysicalDeviceNames()
	infos := make([]compute.ComputeDeviceInfo, len(names))
	for i, name := range names {
		infos[i] = compute.ComputeDeviceInfo{
			Backend:     "gpu",
			DeviceIndex: uint32(i),
			DeviceName:  name,
			TotalMemory: vgpu.PhysicalDeviceMemory(i),
		}
	}
	return infos, nil
}

// New matches factory.Factory.NewGPUDevice's signature: construct the
// Vulkan backend for the physical device named in info.
func New(info compute.ComputeDeviceInfo, config compute.DeviceConfig) (compute.Device, error) {
	return newDevice(info.DeviceIndex, config)
}

// newDevice configures a compute-only Vulkan system against physical
// device deviceIndex (spec §4.4; grounded on axon/gpu.go's GPU.Config).
func newDevice(deviceIndex uint32, config compute.DeviceConfig) (*Device, error) {
	if err := vgpu.InitNoDisplay(); err != nil {
		return nil, compute.WrapBackendFailure("upload", fmt.Errorf("vgpu init: %w", err))
	}

	g := vgpu.NewComputeGPU()
	if config.Bool(compute.KeyValidationLayerEnabled, false) {
		vgpu.Debug = true
	}
	g.Config("macademy")

	d := &Device{
		index:            deviceIndex,
		gpu:              g,
		sys:              g.NewComputeSystem("macademy"),
		config:           config,
		evalThreadgroup:  config.Uint32(compute.KeyEvalThreadgroupSize, 64),
		applyThreadgroup: config.Uint32(compute.KeyGradientApplyThreadgroupSize, 64),
		trainThreadgroup: [2]uint32{
			config.Uint32(compute.KeyTrainingThreadgroupSizeX, 8),
			config.Uint32(compute.KeyTrainingThreadgroupSizeY, 8),
		},
	}

	d.vars = d.sys.Vars().AddSet()

	shaderDir := config.String(compute.KeyShaderDir, "")
	d.evaluateLayer = d.sys.NewPipeline("EvaluateLayer")
	cb, err := loadCompiledShader(shaderDir, "gpu_evaluate_layer.spv")
	if err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}
	d.evaluateLayer.AddShaderCode("EvaluateLayer", vgpu.ComputeShader, cb)

	d.trainForward = d.sys.NewPipeline("TrainForwardPass")
	cb, err = loadCompiledShader(shaderDir, "gpu_train_forward.spv")
	if err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}
	d.trainForward.AddShaderCode("TrainForwardPass", vgpu.ComputeShader, cb)

	d.trainBackward = d.sys.NewPipeline("TrainBackwardPass")
	cb, err = loadCompiledShader(shaderDir, "gpu_train_backward.spv")
	if err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}
	d.trainBackward.AddShaderCode("TrainBackwardPass", vgpu.ComputeShader, cb)

	d.applyGradients = d.sys.NewPipeline("ApplyGradients")
	cb, err = loadCompiledShader(shaderDir, "gpu_apply_gradients.spv")
	if err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}
	d.applyGradients.AddShaderCode("ApplyGradients", vgpu.ComputeShader, cb)

	// one uniform struct per kernel, holding the scalar dispatch parameters
	// that would otherwise need a separate push-constant path (spec §4.4).
	d.vars.AddStruct("EvaluateLayerParams", 24, 1, vgpu.Uniform, vgpu.ComputeShader)
	d.vars.AddStruct("TrainForwardPassParams", 40, 1, vgpu.Uniform, vgpu.ComputeShader)
	d.vars.AddStruct("TrainBackwardPassParams", 60, 1, vgpu.Uniform, vgpu.ComputeShader)
	d.vars.AddStruct("ApplyGradientsParams", 28, 1, vgpu.Uniform, vgpu.ComputeShader)

	d.sys.Config()
	return d, nil
}

func (d *Device) DeviceName() string {
	if d.gpu == nil {
		return fmt.Sprintf("GPU Backend (device %d)", d.index)
	}
	return d.gpu.DeviceName(int(d.index))
}

func (d *Device) TotalMemory() uint64 {
	if d.gpu == nil {
		return 0
	}
	return d.gpu.MemoryTotal(int(d.index))
}

func (d *Device) ComputeUnits() uint32 { return 1 }

func (d *Device) SupportsDType(dt compute.DType) bool {
	return dt == compute.Float32
}

// CreateBuffer allocates a dynamic value in the shared storage VarSet
// (spec §4.2).
func (d *Device) CreateBuffer(sizeBytes int64, usage compute.BufferUsage, name string) (compute.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sizeBytes < 0 {
		return nil, compute.WrapInvalidArgument("gpu: buffer size %d is negative", sizeBytes)
	}
	slotName := fmt.Sprintf("%s_%d", name, d.nextSlot)
	d.vars.Add(slotName, vgpu.Float32, int(sizeBytes/4), vgpu.Storage, vgpu.ComputeShader)
	d.nextSlot++

	b := &buffer{sizeBytes: sizeBytes, name: slotName}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *Device) asBuffer(b compute.Buffer) (*buffer, error) {
	cb, ok := b.(*buffer)
	if !ok {
		return nil, compute.WrapInvalidArgument("gpu: buffer %v was not created by this device", b)
	}
	return cb, nil
}

// barrier records newAccess as the stage that last touched b (spec §4.4
// dirty-buffer map). It records no barrier command itself; see below.
func (d *Device) barrier(b *buffer, newAccess stage) {
	if b.dirty == stageNone || b.dirty == newAccess {
		b.dirty = newAccess
		return
	}
	// transfer<->compute transitions need an explicit barrier; vgpu issues
	// this on the next ComputeCommand/Mem.SyncToGPU automatically once a
	// dynamic value's dirty flag is set. We track dirty at this level so
	// call sites never need to reason about ordering themselves.
	b.dirty = newAccess
}

func (d *Device) QueueWrite(b compute.Buffer, src []byte, dstOffset int64) error {
	cb, err := d.asBuffer(b)
	if err != nil {
		return err
	}
	val, err := d.val(cb)
	if err != nil {
		return err
	}
	d.barrier(cb, stageTransfer)
	val.CopyFromBytes(src)
	_ = dstOffset // whole-buffer dynamic values: sub-offset writes unsupported by this backend's value model
	return nil
}

func (d *Device) QueueRead(b compute.Buffer, dst []byte, srcOffset int64) error {
	cb, err := d.asBuffer(b)
	if err != nil {
		return err
	}
	val, err := d.val(cb)
	if err != nil {
		return err
	}
	d.barrier(cb, stageTransfer)
	val.CopyToBytes(dst)
	_ = srcOffset
	return nil
}

func (d *Device) QueueFill(b compute.Buffer, pattern uint32, offset, size int64) error {
	cb, err := d.asBuffer(b)
	if err != nil {
		return err
	}
	n := int(size / 4)
	zeros := make([]uint32, n)
	for i := range zeros {
		zeros[i] = pattern
	}
	val, err := d.val(cb)
	if err != nil {
		return err
	}
	d.barrier(cb, stageTransfer)
	val.CopyFromBytes(uint32sToBytes(zeros))
	return nil
}

func (d *Device) val(cb *buffer) (*vgpu.Val, error) {
	_, val, err := d.vars.ValByNameTry(0, cb.name)
	if err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}
	cb.val = val
	return val, nil
}

// Submit flushes queued host-device transfers to the device (spec §4.2).
func (d *Device) Submit() error {
	if d.sys == nil {
		return nil
	}
	d.sys.Mem.SyncToGPU()
	return nil
}

// WaitIdle is a no-op in this backend (spec §4.2): every kernel dispatch
// already waits for completion via ComputeSubmitWait, and the reads queued
// via QueueRead already materialized at CopyToBytes time in this backend's
// synchronous value model, so nothing is left in flight when it is called.
func (d *Device) WaitIdle() error {
	return nil
}

func uint32sToBytes(vs []uint32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		out[i*4] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}
	return out
}
