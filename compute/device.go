package compute

import (
	"strconv"

	"github.com/zbendefy/macademy-go/network"
)

// BufferUsage constrains how a Buffer may be accessed, mirroring the access
// qualifiers a GPU backend must bind a resource with (spec §4.2).
type BufferUsage int32

const (
	ReadOnly BufferUsage = iota
	ReadWrite
	WriteOnly
)

func (u BufferUsage) String() string {
	switch u {
	case ReadOnly:
		return "ReadOnly"
	case ReadWrite:
		return "ReadWrite"
	case WriteOnly:
		return "WriteOnly"
	default:
		return "BufferUsage(" + strconv.Itoa(int(u)) + ")"
	}
}

// DType is a device-supported scalar element type (spec §4.2).
type DType int32

const (
	Float32 DType = iota
	Float16
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Float16:
		return "Float16"
	default:
		return "DType(" + strconv.Itoa(int(d)) + ")"
	}
}

// Buffer is an opaque, backend-owned region of device memory. Buffers
// returned by one Device must only ever be passed back into that same
// Device; backends downcast once internally at each kernel entry point and
// report ErrInvalidArgument on a mismatch (spec §9).
type Buffer interface {
	// SizeBytes returns the buffer's allocated size in bytes.
	SizeBytes() int64
	// Name returns the debug name the buffer was created with.
	Name() string
}

// Device is the capability set every compute backend (CPU, GPU, ...)
// implements identically (spec §4.2, §9 "polymorphic ComputeDevice without
// language-specific inheritance"). Every operation is dispatched through
// this interface; no cross-backend casts are ever required.
type Device interface {
	// CreateBuffer allocates a new device buffer. sizeBytes may be 0 only
	// if the backend supports empty buffers; otherwise returns
	// ErrInvalidArgument.
	CreateBuffer(sizeBytes int64, usage BufferUsage, name string) (Buffer, error)

	// QueueWrite enqueues a host-to-device copy of src into buffer at
	// dstOffset bytes. Operations queued on one device execute in program
	// order, so kernels queued after it read the written data; completion
	// is only guaranteed after Submit + WaitIdle.
	QueueWrite(buffer Buffer, src []byte, dstOffset int64) error
	// QueueRead enqueues a device-to-host copy of buffer (from srcOffset
	// bytes) into dst. dst is only valid to read after WaitIdle returns.
	QueueRead(buffer Buffer, dst []byte, srcOffset int64) error
	// QueueFill enqueues a fill of buffer[offset:offset+size) with the
	// repeated 4-byte pattern.
	QueueFill(buffer Buffer, pattern uint32, offset, size int64) error

	// Submit flushes the command stream to the device.
	Submit() error
	// WaitIdle blocks until all previously submitted work completes, then
	// materializes any pending QueueRead destinations.
	WaitIdle() error

	// QueueEvaluateLayer dispatches the evaluate_layer kernel (spec §4.5).
	QueueEvaluateLayer(p EvaluateLayerParams) error
	// QueueTrainForwardPass dispatches the train_forward_pass kernel.
	QueueTrainForwardPass(p TrainForwardParams) error
	// QueueTrainBackwardPass dispatches the train_backward_pass kernel.
	QueueTrainBackwardPass(p TrainBackwardParams) error
	// QueueApplyGradients dispatches the apply_gradients kernel.
	QueueApplyGradients(p ApplyGradientsParams) error

	DeviceName() string
	TotalMemory() uint64
	ComputeUnits() uint32
	SupportsDType(d DType) bool
}

// EvaluateLayerParams are the arguments to the evaluate_layer kernel (spec
// §4.5). W is the device tensor buffer; Input/Output are the ping-pong eval
// buffers for this layer; WeightsPerNeuron/NeuronCount/LayerOffset/Batch
// size the dispatch.
type EvaluateLayerParams struct {
	Tensor           Buffer
	Input            Buffer
	Output           Buffer
	Activation       network.Activation
	LayerOffset      int64
	WeightsPerNeuron uint32
	NeuronCount      uint32
	BatchSize        uint32
}

// TrainForwardParams are the arguments to the train_forward_pass kernel
// (spec §4.5). PrevActivations is either training_input (layer 0, row width
// = WeightsPerNeuron, PrevRowOffset = 0) or the shared Activations buffer
// sliced to the previous layer (row width = TotalNeurons, PrevRowOffset =
// that layer's neuron offset). Activations/ZValues are the full
// sample_count x TotalNeurons buffers this layer writes its
// [RowOffset, RowOffset+NeuronCount) slice of, each sample.
type TrainForwardParams struct {
	Tensor           Buffer
	PrevActivations  Buffer
	PrevRowWidth     uint32
	PrevRowOffset    uint32
	Activations      Buffer
	ZValues          Buffer
	RowWidth         uint32 // TotalNeurons: row stride of Activations/ZValues
	RowOffset        uint32 // this layer's neuron offset within the row
	Activation       network.Activation
	LayerOffset      int64
	WeightsPerNeuron uint32
	NeuronCount      uint32
	SampleCount      uint32
}

// TrainBackwardParams are the arguments to the train_backward_pass kernel
// (spec §4.5). Activations/ZValues/DeltaWrite/DeltaRead follow the same
// row-addressing convention as TrainForwardParams; delta buffers use
// NeuronCount-wide rows directly (max_neurons-wide ping-pong buffers) since
// they are reused, not shared, across layers. NextLayerTensor is the same
// full tensor buffer passed to every layer's dispatch; NextLayerOffset
// locates layer L+1's weights within it (spec §4.6 step 5: "next-layer
// weights is the slice of the tensor starting at off_{L+1}"), unused when
// IsOutput. LayerGradient is the full gradient buffer (same shape as
// Tensor); this layer's contribution is accumulated at LayerOffset, exactly
// mirroring how Tensor addresses its own weights.
type TrainBackwardParams struct {
	NextLayerTensor Buffer
	NextLayerOffset int64
	PrevActivations Buffer
	PrevRowWidth    uint32
	PrevRowOffset   uint32
	Activations     Buffer
	ZValues         Buffer
	RowWidth        uint32
	RowOffset       uint32
	DeltaWrite      Buffer
	DeltaRead       Buffer
	LayerGradient   Buffer
	DesiredOutput   Buffer

	Activation       network.Activation
	Cost             network.CostFunction
	LayerOffset      int64
	WeightsPerNeuron uint32
	NeuronCount      uint32
	NextNeuronCount  uint32
	SampleCount      uint32
	IsOutput         bool
}

// ApplyGradientsParams are the arguments to the apply_gradients kernel
// (spec §4.5). Gradient is the full gradient buffer, addressed at the same
// LayerOffset as Tensor since both share the packed layout of §3.
type ApplyGradientsParams struct {
	Tensor           Buffer
	Gradient         Buffer
	LayerOffset      int64
	WeightsPerNeuron uint32
	NeuronCount      uint32
	R1               float32
	R2               float32
	LearningRate     float32
}

// ComputeDeviceInfo is the handshake value describing one enumerable device
// (spec §6).
type ComputeDeviceInfo struct {
	Backend     string
	DeviceIndex uint32
	DeviceName  string
	TotalMemory uint64
}

// DeviceConfig is the device configuration map of recognized keys (spec
// §6). Unrecognized keys are ignored by every backend.
type DeviceConfig map[string]any

func (c DeviceConfig) Uint32(key string, def uint32) uint32 {
	if v, ok := c[key]; ok {
		switch n := v.(type) {
		case uint32:
			return n
		case int:
			return uint32(n)
		case int64:
			return uint32(n)
		}
	}
	return def
}

func (c DeviceConfig) Bool(key string, def bool) bool {
	if v, ok := c[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// String returns the string value stored at key, or def if the key is
// absent or not a string. Used for filesystem-path style config, e.g.
// KeyShaderDir.
func (c DeviceConfig) String(key, def string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Recognized DeviceConfig keys (spec §6 table).
const (
	KeyEvalThreadgroupSize           = "eval_threadgroup_size"
	KeyTrainingThreadgroupSizeX      = "training_threadgroup_size_x"
	KeyTrainingThreadgroupSizeY      = "training_threadgroup_size_y"
	KeyGradientApplyThreadgroupSize  = "gradient_apply_threadgroup_size"
	KeyCLFastRelaxedMath             = "cl_fast_relaxed_math"
	KeyCLMadEnable                   = "cl_mad_enable"
	KeyCLNoSignedZeros               = "cl_no_signed_zeros"
	KeyCLUnsafeMathOperations        = "cl_unsafe_math_operations"
	KeyValidationLayerEnabled        = "validation_layer_enabled"
	KeyDebugLabelsEnabled            = "debug_labels_enabled"
	KeyDisableHWAtomicAdd            = "disable_hw_atomic_add"

	// KeyShaderDir points at a directory holding gosl/glslc-compiled SPIR-V
	// (gpu_evaluate_layer.spv, gpu_train_forward.spv, gpu_train_backward.spv,
	// gpu_apply_gradients.spv). The GPU backend has no fallback when this is
	// unset or the directory lacks real compiled bytecode: it reports
	// ErrBackendFailure rather than constructing a device that cannot
	// dispatch a kernel (spec §4.4, §7).
	KeyShaderDir = "shader_dir"
)
