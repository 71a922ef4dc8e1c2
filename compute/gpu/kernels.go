package gpu

import (
	"encoding/binary"
	"math"

	"goki.dev/vgpu/v2/vgpu"

	"github.com/zbendefy/macademy-go/compute"
)

// evaluateLayerUniform mirrors the uniform (cbuffer) layout gpu_evaluate_layer.hlsl
// expects; field order and widths must match the HLSL cbuffer exactly.
type evaluateLayerUniform struct {
	LayerOffset      int64
	WeightsPerNeuron uint32
	NeuronCount      uint32
	BatchSize        uint32
	Activation       uint32
}

type trainForwardUniform struct {
	LayerOffset      int64
	PrevRowWidth     uint32
	PrevRowOffset    uint32
	RowWidth         uint32
	RowOffset        uint32
	WeightsPerNeuron uint32
	NeuronCount      uint32
	SampleCount      uint32
	Activation       uint32
}

type trainBackwardUniform struct {
	LayerOffset      int64
	NextLayerOffset  int64
	PrevRowWidth     uint32
	PrevRowOffset    uint32
	RowWidth         uint32
	RowOffset        uint32
	WeightsPerNeuron uint32
	NeuronCount      uint32
	NextNeuronCount  uint32
	SampleCount      uint32
	Activation       uint32
	Cost             uint32
	IsOutput         uint32
}

type applyGradientsUniform struct {
	LayerOffset      int64
	WeightsPerNeuron uint32
	NeuronCount      uint32
	R1               float32
	R2               float32
	LearningRate     float32
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// dispatch binds bufs at successive slots of the var set, uploads the
// uniform payload, and runs the pipeline over ceil(items/threadsPerGroup)
// workgroups (spec §4.4 "fixed workgroup size per kernel, read from
// DeviceConfig or defaulted").
func (d *Device) dispatch(pl *vgpu.Pipeline, uniform []byte, bufs []*buffer, groupsX, groupsY, groupsZ uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, b := range bufs {
		if b == nil {
			continue
		}
		d.barrier(b, stageCompute)
		if _, err := d.val(b); err != nil {
			return err
		}
	}

	if pval, _, err := d.vars.ValByNameTry(0, pl.Name+"Params"); err == nil {
		pval.CopyFromBytes(uniform)
	}

	d.sys.ComputeResetBegin()
	pl.ComputeCommand(int(groupsX), int(groupsY), int(groupsZ))
	d.sys.ComputeSubmitWait()
	return nil
}

func ceilDiv(n, d uint32) uint32 {
	if d == 0 {
		return 1
	}
	return (n + d - 1) / d
}

// QueueEvaluateLayer dispatches gpu_evaluate_layer.hlsl over
// ceil(BatchSize*NeuronCount / evalThreadgroup) groups (spec §4.5, §4.4).
func (d *Device) QueueEvaluateLayer(p compute.EvaluateLayerParams) error {
	tensor, err := d.asBuffer(p.Tensor)
	if err != nil {
		return err
	}
	input, err := d.asBuffer(p.Input)
	if err != nil {
		return err
	}
	output, err := d.asBuffer(p.Output)
	if err != nil {
		return err
	}

	u := evaluateLayerUniform{
		LayerOffset:      p.LayerOffset,
		WeightsPerNeuron: p.WeightsPerNeuron,
		NeuronCount:      p.NeuronCount,
		BatchSize:        p.BatchSize,
		Activation:       uint32(p.Activation),
	}
	total := p.BatchSize * p.NeuronCount
	groups := ceilDiv(total, d.evalThreadgroup)
	return d.dispatch(d.evaluateLayer, encodeUniform(u), []*buffer{tensor, input, output}, groups, 1, 1)
}

// QueueTrainForwardPass dispatches gpu_train_forward.hlsl over a
// (sample, neuron) 2D grid sized by the training threadgroup (spec §4.5,
// §4.4).
func (d *Device) QueueTrainForwardPass(p compute.TrainForwardParams) error {
	tensor, err := d.asBuffer(p.Tensor)
	if err != nil {
		return err
	}
	prev, err := d.asBuffer(p.PrevActivations)
	if err != nil {
		return err
	}
	acts, err := d.asBuffer(p.Activations)
	if err != nil {
		return err
	}
	zvals, err := d.asBuffer(p.ZValues)
	if err != nil {
		return err
	}

	u := trainForwardUniform{
		LayerOffset:      p.LayerOffset,
		PrevRowWidth:     p.PrevRowWidth,
		PrevRowOffset:    p.PrevRowOffset,
		RowWidth:         p.RowWidth,
		RowOffset:        p.RowOffset,
		WeightsPerNeuron: p.WeightsPerNeuron,
		NeuronCount:      p.NeuronCount,
		SampleCount:      p.SampleCount,
		Activation:       uint32(p.Activation),
	}
	gx := ceilDiv(p.SampleCount, d.trainThreadgroup[0])
	gy := ceilDiv(p.NeuronCount, d.trainThreadgroup[1])
	return d.dispatch(d.trainForward, encodeUniform(u), []*buffer{tensor, prev, acts, zvals}, gx, gy, 1)
}

// QueueTrainBackwardPass dispatches gpu_train_backward.hlsl (spec §4.5,
// §4.4). NextLayerTensor/DeltaRead/DesiredOutput are only bound when
// populated (hidden vs. output layer), matching the CPU backend's optional
// reads in compute/cpu/kernels.go.
func (d *Device) QueueTrainBackwardPass(p compute.TrainBackwardParams) error {
	prev, err := d.asBuffer(p.PrevActivations)
	if err != nil {
		return err
	}
	acts, err := d.asBuffer(p.Activations)
	if err != nil {
		return err
	}
	zvals, err := d.asBuffer(p.ZValues)
	if err != nil {
		return err
	}
	deltaWrite, err := d.asBuffer(p.DeltaWrite)
	if err != nil {
		return err
	}
	gradient, err := d.asBuffer(p.LayerGradient)
	if err != nil {
		return err
	}

	bufs := []*buffer{prev, acts, zvals, deltaWrite, gradient}
	if !p.IsOutput {
		nextTensor, err := d.asBuffer(p.NextLayerTensor)
		if err != nil {
			return err
		}
		deltaRead, err := d.asBuffer(p.DeltaRead)
		if err != nil {
			return err
		}
		bufs = append(bufs, nextTensor, deltaRead)
	} else {
		desired, err := d.asBuffer(p.DesiredOutput)
		if err != nil {
			return err
		}
		bufs = append(bufs, desired)
	}

	u := trainBackwardUniform{
		LayerOffset:      p.LayerOffset,
		NextLayerOffset:  p.NextLayerOffset,
		PrevRowWidth:     p.PrevRowWidth,
		PrevRowOffset:    p.PrevRowOffset,
		RowWidth:         p.RowWidth,
		RowOffset:        p.RowOffset,
		WeightsPerNeuron: p.WeightsPerNeuron,
		NeuronCount:      p.NeuronCount,
		NextNeuronCount:  p.NextNeuronCount,
		SampleCount:      p.SampleCount,
		Activation:       uint32(p.Activation),
		Cost:             uint32(p.Cost),
		IsOutput:         boolU32(p.IsOutput),
	}
	gx := ceilDiv(p.SampleCount, d.trainThreadgroup[0])
	gy := ceilDiv(p.NeuronCount, d.trainThreadgroup[1])
	return d.dispatch(d.trainBackward, encodeUniform(u), bufs, gx, gy, 1)
}

// QueueApplyGradients dispatches gpu_apply_gradients.hlsl over
// ceil(NeuronCount / applyThreadgroup) groups (spec §4.5, §4.4).
func (d *Device) QueueApplyGradients(p compute.ApplyGradientsParams) error {
	tensor, err := d.asBuffer(p.Tensor)
	if err != nil {
		return err
	}
	gradient, err := d.asBuffer(p.Gradient)
	if err != nil {
		return err
	}

	u := applyGradientsUniform{
		LayerOffset:      p.LayerOffset,
		WeightsPerNeuron: p.WeightsPerNeuron,
		NeuronCount:      p.NeuronCount,
		R1:               p.R1,
		R2:               p.R2,
		LearningRate:     p.LearningRate,
	}
	groups := ceilDiv(p.NeuronCount, d.applyThreadgroup)
	return d.dispatch(d.applyGradients, encodeUniform(u), []*buffer{tensor, gradient}, groups, 1, 1)
}

// encodeUniform packs a fixed-layout uniform struct into little-endian
// bytes for upload; each field above is itself a multiple of 4 bytes so no
// explicit padding is needed between them.
func encodeUniform(v any) []byte {
	switch u := v.(type) {
	case evaluateLayerUniform:
		buf := make([]byte, 24)
		binary.LittleEndian.PutUint64(buf[0:8], uint64(u.LayerOffset))
		binary.LittleEndian.PutUint32(buf[8:12], u.WeightsPerNeuron)
		binary.LittleEndian.PutUint32(buf[12:16], u.NeuronCount)
		binary.LittleEndian.PutUint32(buf[16:20], u.BatchSize)
		binary.LittleEndian.PutUint32(buf[20:24], u.Activation)
		return buf
	case trainForwardUniform:
		buf := make([]byte, 36)
		binary.LittleEndian.PutUint64(buf[0:8], uint64(u.LayerOffset))
		binary.LittleEndian.PutUint32(buf[8:12], u.PrevRowWidth)
		binary.LittleEndian.PutUint32(buf[12:16], u.PrevRowOffset)
		binary.LittleEndian.PutUint32(buf[16:20], u.RowWidth)
		binary.LittleEndian.PutUint32(buf[20:24], u.RowOffset)
		binary.LittleEndian.PutUint32(buf[24:28], u.WeightsPerNeuron)
		binary.LittleEndian.PutUint32(buf[28:32], u.NeuronCount)
		binary.LittleEndian.PutUint32(buf[32:36], u.SampleCount)
		return append(buf, encodeU32(u.Activation)...)
	case trainBackwardUniform:
		buf := make([]byte, 16)
		binary.LittleEndian.PutUint64(buf[0:8], uint64(u.LayerOffset))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(u.NextLayerOffset))
		for _, f := range []uint32{
			u.PrevRowWidth, u.PrevRowOffset, u.RowWidth, u.RowOffset,
			u.WeightsPerNeuron, u.NeuronCount, u.NextNeuronCount, u.SampleCount,
			u.Activation, u.Cost, u.IsOutput,
		} {
			buf = append(buf, encodeU32(f)...)
		}
		return buf
	case applyGradientsUniform:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf[0:8], uint64(u.LayerOffset))
		buf = append(buf, encodeU32(u.WeightsPerNeuron)...)
		buf = append(buf, encodeU32(u.NeuronCount)...)
		buf = append(buf, encodeF32(u.R1)...)
		buf = append(buf, encodeF32(u.R2)...)
		buf = append(buf, encodeF32(u.LearningRate)...)
		return buf
	default:
		return nil
	}
}

func encodeU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func encodeF32(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}
