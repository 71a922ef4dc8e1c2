// Package resource implements NetworkResourceHandle: the per-(network,
// device) state that owns device buffers bound to a registered Network
// (spec §3, §4.7).
package resource

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/zbendefy/macademy-go/compute"
	"github.com/zbendefy/macademy-go/network"
)

// State is one of the NetworkResourceHandle lifecycle states (spec §4.7).
// States accumulate: EvalReady/TrainingReady/MutationReady are independent
// additive flags reported relative to the base Registered state, not a
// strict linear progression.
type State int32

const (
	Registered State = iota
	EvalReady
	TrainingReady
	MutationReady
)

func (s State) String() string {
	switch s {
	case Registered:
		return "Registered"
	case EvalReady:
		return "EvalReady"
	case TrainingReady:
		return "TrainingReady"
	case MutationReady:
		return "MutationReady"
	default:
		return "State(?)"
	}
}

// Handle owns every device buffer bound to one (Network, Device) pair. The
// zero value is not valid; construct with Register. A Handle must be
// dropped (its buffers freed) before its Network or Device goes away (spec
// §9 "cyclic references avoided by construction") -- this package enforces
// nothing beyond documenting the requirement, matching the teacher's
// move-only-by-convention ownership style.
type Handle struct {
	mu sync.Mutex

	device  compute.Device
	network *network.Network

	tensor      compute.Buffer
	layerConfig compute.Buffer

	evalPing, evalPong compute.Buffer
	evalBatchCap       uint32

	trainingInput, trainingDesired compute.Buffer
	activations, zvalues           compute.Buffer
	deltaA, deltaB                 compute.Buffer
	gradient                       compute.Buffer
	trainingSampleCap              uint32

	mutation compute.Buffer

	flags map[State]bool
}

// Register uploads tensor and layer_config for n onto device and returns a
// Handle in the Registered state (spec §3 "Lifecycle").
func Register(device compute.Device, n *network.Network) (*Handle, error) {
	sizeBytes := n.TotalWeightCount() * 4
	tensor, err := device.CreateBuffer(sizeBytes, compute.ReadWrite, "tensor")
	if err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}
	if err := device.QueueWrite(tensor, floatsToBytes(n.Data), 0); err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}

	cfg := n.LayerConfigBuffer()
	layerConfig, err := device.CreateBuffer(int64(len(cfg))*4, compute.ReadOnly, "layer_config")
	if err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}
	if err := device.QueueWrite(layerConfig, uint32sToBytes(cfg), 0); err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}
	if err := device.Submit(); err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}
	if err := device.WaitIdle(); err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}

	return &Handle{
		device:      device,
		network:     n,
		tensor:      tensor,
		layerConfig: layerConfig,
		flags:       map[State]bool{},
	}, nil
}

// State reports whether s's resources are currently allocated.
func (h *Handle) State(s State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s == Registered {
		return true
	}
	return h.flags[s]
}

// Tensor returns the device-resident weight buffer.
func (h *Handle) Tensor() compute.Buffer { return h.tensor }

// LayerConfig returns the device-resident topology mirror.
func (h *Handle) LayerConfig() compute.Buffer { return h.layerConfig }

// Network returns the registered network.
func (h *Handle) Network() *network.Network { return h.network }

// Device returns the registered device.
func (h *Handle) Device() compute.Device { return h.device }

// AllocateEvalResources ensures eval_ping/eval_pong are allocated and sized
// for at least batchSize samples (spec §3, §4.6). Safe to call repeatedly;
// reallocates only when batchSize grows.
func (h *Handle) AllocateEvalResources(batchSize uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.flags[EvalReady] && batchSize <= h.evalBatchCap {
		return nil
	}
	width := h.network.InputCount
	if m := h.network.MaxNeuronCount(); m > width {
		width = m
	}
	sizeBytes := int64(width) * int64(batchSize) * 4

	ping, err := h.device.CreateBuffer(sizeBytes, compute.ReadWrite, "eval_ping")
	if err != nil {
		return compute.WrapResourceExhausted("eval_ping: %v", err)
	}
	pong, err := h.device.CreateBuffer(sizeBytes, compute.ReadWrite, "eval_pong")
	if err != nil {
		return compute.WrapResourceExhausted("eval_pong: %v", err)
	}
	h.evalPing, h.evalPong = ping, pong
	h.evalBatchCap = batchSize
	h.flags[EvalReady] = true
	return nil
}

// EvalBuffers returns the current ping/pong buffers, valid only after
// AllocateEvalResources.
func (h *Handle) EvalBuffers() (ping, pong compute.Buffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.evalPing, h.evalPong
}

// AllocateTrainingResources ensures training_input, training_desired_output,
// activations, zvalues, delta_k_a, delta_k_b, and gradient are allocated and
// sized for at least maxMinibatchSize samples (spec §4.6 step 1).
func (h *Handle) AllocateTrainingResources(maxMinibatchSize uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.flags[TrainingReady] && maxMinibatchSize <= h.trainingSampleCap {
		return nil
	}

	n := h.network
	totalNeurons := int64(0)
	for _, l := range n.Layers {
		totalNeurons += int64(l.NeuronCount)
	}
	maxNeurons := int64(n.MaxNeuronCount())
	S := int64(maxMinibatchSize)

	buffers := []struct {
		dst       *compute.Buffer
		sizeBytes int64
		usage     compute.BufferUsage
		name      string
	}{
		{&h.trainingInput, S * int64(n.InputCount) * 4, compute.ReadWrite, "training_input"},
		{&h.trainingDesired, S * int64(n.OutputCount()) * 4, compute.ReadWrite, "training_desired_output"},
		{&h.activations, S * totalNeurons * 4, compute.ReadWrite, "activations"},
		{&h.zvalues, S * totalNeurons * 4, compute.ReadWrite, "zvalues"},
		{&h.deltaA, S * maxNeurons * 4, compute.ReadWrite, "delta_k_a"},
		{&h.deltaB, S * maxNeurons * 4, compute.ReadWrite, "delta_k_b"},
		{&h.gradient, n.TotalWeightCount() * 4, compute.ReadWrite, "gradient"},
	}
	for _, b := range buffers {
		buf, err := h.device.CreateBuffer(b.sizeBytes, b.usage, b.name)
		if err != nil {
			return compute.WrapResourceExhausted("%s: %v", b.name, err)
		}
		*b.dst = buf
	}
	h.trainingSampleCap = maxMinibatchSize
	h.flags[TrainingReady] = true
	return nil
}

// TrainingBuffers exposes the training scratch buffers, valid only after
// AllocateTrainingResources.
type TrainingBuffers struct {
	Input, DesiredOutput compute.Buffer
	Activations, ZValues compute.Buffer
	DeltaA, DeltaB       compute.Buffer
	Gradient             compute.Buffer
}

func (h *Handle) TrainingBuffers() TrainingBuffers {
	h.mu.Lock()
	defer h.mu.Unlock()
	return TrainingBuffers{
		Input:         h.trainingInput,
		DesiredOutput: h.trainingDesired,
		Activations:   h.activations,
		ZValues:       h.zvalues,
		DeltaA:        h.deltaA,
		DeltaB:        h.deltaB,
		Gradient:      h.gradient,
	}
}

// AllocateMutationResources ensures the mutation buffer is allocated,
// shaped like tensor (spec §3).
func (h *Handle) AllocateMutationResources() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.flags[MutationReady] {
		return nil
	}
	buf, err := h.device.CreateBuffer(h.network.TotalWeightCount()*4, compute.ReadWrite, "mutation")
	if err != nil {
		return compute.WrapResourceExhausted("mutation: %v", err)
	}
	h.mutation = buf
	h.flags[MutationReady] = true
	return nil
}

func (h *Handle) Mutation() compute.Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mutation
}

// FreeCachedResources drops every scratch buffer, returning the handle to
// the Registered state (spec §4.7). tensor and layer_config are never
// freed by this call.
func (h *Handle) FreeCachedResources() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evalPing, h.evalPong = nil, nil
	h.evalBatchCap = 0
	h.trainingInput, h.trainingDesired = nil, nil
	h.activations, h.zvalues = nil, nil
	h.deltaA, h.deltaB = nil, nil
	h.gradient = nil
	h.trainingSampleCap = 0
	h.mutation = nil
	h.flags = map[State]bool{}
}

// SynchronizeNetworkData reads tensor back into Network.Data (spec §3,
// §4.6 step 8). Callable in any state; does not change it.
func (h *Handle) SynchronizeNetworkData() error {
	h.mu.Lock()
	tensor := h.tensor
	n := h.network
	h.mu.Unlock()

	raw := make([]byte, n.TotalWeightCount()*4)
	if err := h.device.QueueRead(tensor, raw, 0); err != nil {
		return compute.WrapBackendFailure("readback", err)
	}
	if err := h.device.Submit(); err != nil {
		return compute.WrapBackendFailure("readback", err)
	}
	if err := h.device.WaitIdle(); err != nil {
		return compute.WrapBackendFailure("readback", err)
	}
	bytesToFloats(raw, n.Data)
	return nil
}

func floatsToBytes(vs []float32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(v))
	}
	return out
}

func uint32sToBytes(vs []uint32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], v)
	}
	return out
}

func bytesToFloats(raw []byte, dst []float32) {
	if len(raw) != len(dst)*4 {
		panic(fmt.Sprintf("resource: readback size mismatch: got %d bytes, want %d", len(raw), len(dst)*4))
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
}
