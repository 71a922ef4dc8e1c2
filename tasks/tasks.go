// Package tasks implements the backend-agnostic high-level operations that
// drive a sequence of kernel dispatches against a NetworkResourceHandle
// (spec §4.6): Evaluate, EvaluateBatch, TrainMinibatch, ApplyRandomMutation.
package tasks

import (
	"encoding/binary"
	"math"

	"github.com/zbendefy/macademy-go/compute"
	"github.com/zbendefy/macademy-go/network"
	"github.com/zbendefy/macademy-go/resource"
)

// Evaluate runs a single sample through the network. It is EvaluateBatch
// with batch size 1 (spec §4.6).
func Evaluate(h *resource.Handle, input []float32) ([]float32, error) {
	out, err := EvaluateBatch(h, 1, input)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateBatch runs batchSize samples through the network in one pass,
// ping-ponging eval_ping/eval_pong across layers (spec §4.6).
func EvaluateBatch(h *resource.Handle, batchSize uint32, input []float32) ([]float32, error) {
	n := h.Network()
	if uint32(len(input)) != batchSize*n.InputCount {
		return nil, compute.WrapInvalidArgument("tasks: input has %d elements, want batch_size*input_count=%d", len(input), batchSize*n.InputCount)
	}
	if err := h.AllocateEvalResources(batchSize); err != nil {
		return nil, err
	}

	d := h.Device()
	ping, pong := h.EvalBuffers()
	if err := d.QueueWrite(ping, floatsToBytes(input), 0); err != nil {
		return nil, compute.WrapBackendFailure("upload", err)
	}

	in, out := ping, pong
	for li, layer := range n.Layers {
		if err := d.QueueEvaluateLayer(compute.EvaluateLayerParams{
			Tensor:           h.Tensor(),
			Input:            in,
			Output:           out,
			Activation:       layer.Activation,
			LayerOffset:      n.LayerOffset(li),
			WeightsPerNeuron: n.WeightsPerNeuron(li),
			NeuronCount:      layer.NeuronCount,
			BatchSize:        batchSize,
		}); err != nil {
			return nil, compute.WrapBackendFailure("forward", err)
		}
		in, out = out, in
	}

	result := make([]float32, batchSize*n.OutputCount())
	raw := make([]byte, len(result)*4)
	if err := d.QueueRead(in, raw, 0); err != nil {
		return nil, compute.WrapBackendFailure("readback", err)
	}
	if err := d.Submit(); err != nil {
		return nil, compute.WrapBackendFailure("readback", err)
	}
	if err := d.WaitIdle(); err != nil {
		return nil, compute.WrapBackendFailure("readback", err)
	}
	bytesToFloats(raw, result)
	return result, nil
}

// Sample is one (input, desired_output) training pair.
type Sample struct {
	Input         []float32
	DesiredOutput []float32
}

// Params bundles the training hyperparameters a single TrainMinibatch call
// needs; TrainMinibatch derives the regularization terms and the scaled
// learning rate from them once per call (spec §4.6 step 6).
type Params struct {
	Cost            network.CostFunction
	Regularization  network.Regularization
	LearningRate    float32
	Lambda          float32
	TrainingSetSize int
}

// TrainMinibatch runs one forward/backward/apply cycle over samples[begin:end]
// (spec §4.6). samples is the full training set; begin/end select the
// minibatch within it.
func TrainMinibatch(h *resource.Handle, samples []Sample, begin, end int, p Params) error {
	if !(begin < end && end <= len(samples)) {
		return compute.WrapInvalidArgument("tasks: invalid minibatch range [%d, %d) over %d samples", begin, end, len(samples))
	}

	n := h.Network()
	d := h.Device()
	buf := h.TrainingBuffers()
	sampleCount := uint32(end - begin)

	gradLen := n.TotalWeightCount() * 4
	if err := d.QueueFill(buf.Gradient, 0, 0, gradLen); err != nil {
		return compute.WrapBackendFailure("forward", err)
	}

	inputBytes := make([]byte, int(sampleCount)*int(n.InputCount)*4)
	desiredBytes := make([]byte, int(sampleCount)*int(n.OutputCount())*4)
	for i, s := range samples[begin:end] {
		copy(inputBytes[i*int(n.InputCount)*4:], floatsToBytes(s.Input))
		copy(desiredBytes[i*int(n.OutputCount())*4:], floatsToBytes(s.DesiredOutput))
	}
	if err := d.QueueWrite(buf.Input, inputBytes, 0); err != nil {
		return compute.WrapBackendFailure("upload", err)
	}
	if err := d.QueueWrite(buf.DesiredOutput, desiredBytes, 0); err != nil {
		return compute.WrapBackendFailure("upload", err)
	}

	totalNeurons := uint32(0)
	layerNeuronOffset := make([]uint32, len(n.Layers))
	for li, l := range n.Layers {
		layerNeuronOffset[li] = totalNeurons
		totalNeurons += l.NeuronCount
	}

	// forward pass
	for li, layer := range n.Layers {
		var prev compute.Buffer
		var prevWidth, prevOffset uint32
		if li == 0 {
			prev, prevWidth, prevOffset = buf.Input, n.InputCount, 0
		} else {
			prev, prevWidth, prevOffset = buf.Activations, totalNeurons, layerNeuronOffset[li-1]
		}
		if err := d.QueueTrainForwardPass(compute.TrainForwardParams{
			Tensor:           h.Tensor(),
			PrevActivations:  prev,
			PrevRowWidth:     prevWidth,
			PrevRowOffset:    prevOffset,
			Activations:      buf.Activations,
			ZValues:          buf.ZValues,
			RowWidth:         totalNeurons,
			RowOffset:        layerNeuronOffset[li],
			Activation:       layer.Activation,
			LayerOffset:      n.LayerOffset(li),
			WeightsPerNeuron: n.WeightsPerNeuron(li),
			NeuronCount:      layer.NeuronCount,
			SampleCount:      sampleCount,
		}); err != nil {
			return compute.WrapBackendFailure("forward", err)
		}
	}

	// backward pass: ping-pong delta_k_a/delta_k_b, even layers read A write
	// B, odd layers the opposite (spec §4.6 step 5).
	layerCount := len(n.Layers)
	for li := layerCount - 1; li >= 0; li-- {
		layer := n.Layers[li]
		isOutput := li == layerCount-1

		var deltaWrite, deltaRead compute.Buffer
		if li%2 == 0 {
			deltaWrite, deltaRead = buf.DeltaB, buf.DeltaA
		} else {
			deltaWrite, deltaRead = buf.DeltaA, buf.DeltaB
		}

		var prev compute.Buffer
		var prevWidth, prevOffset uint32
		if li == 0 {
			prev, prevWidth, prevOffset = buf.Input, n.InputCount, 0
		} else {
			prev, prevWidth, prevOffset = buf.Activations, totalNeurons, layerNeuronOffset[li-1]
		}

		var nextLayerOffset int64
		var nextNeuronCount uint32
		if !isOutput {
			nextLayerOffset = n.LayerOffset(li + 1)
			nextNeuronCount = n.Layers[li+1].NeuronCount
		}

		if err := d.QueueTrainBackwardPass(compute.TrainBackwardParams{
			NextLayerTensor:  h.Tensor(),
			NextLayerOffset:  nextLayerOffset,
			PrevActivations:  prev,
			PrevRowWidth:     prevWidth,
			PrevRowOffset:    prevOffset,
			Activations:      buf.Activations,
			ZValues:          buf.ZValues,
			RowWidth:         totalNeurons,
			RowOffset:        layerNeuronOffset[li],
			DeltaWrite:       deltaWrite,
			DeltaRead:        deltaRead,
			LayerGradient:    buf.Gradient,
			DesiredOutput:    buf.DesiredOutput,
			Activation:       layer.Activation,
			Cost:             p.Cost,
			LayerOffset:      n.LayerOffset(li),
			WeightsPerNeuron: n.WeightsPerNeuron(li),
			NeuronCount:      layer.NeuronCount,
			NextNeuronCount:  nextNeuronCount,
			SampleCount:      sampleCount,
			IsOutput:         isOutput,
		}); err != nil {
			return compute.WrapBackendFailure("backward", err)
		}
	}

	r1, r2 := network.RegularizationTerms(p.Regularization, p.LearningRate, p.Lambda, p.TrainingSetSize)
	eta := p.LearningRate * (float32(end-begin) / float32(p.TrainingSetSize))

	for li, layer := range n.Layers {
		if err := d.QueueApplyGradients(compute.ApplyGradientsParams{
			Tensor:           h.Tensor(),
			Gradient:         buf.Gradient,
			LayerOffset:      n.LayerOffset(li),
			WeightsPerNeuron: n.WeightsPerNeuron(li),
			NeuronCount:      layer.NeuronCount,
			R1:               r1,
			R2:               r2,
			LearningRate:     eta,
		}); err != nil {
			return compute.WrapBackendFailure("apply", err)
		}
	}

	return d.Submit()
}

// ApplyRandomMutation draws a uniform perturbation for every weight and
// bias and folds it additively into the tensor (spec §4.6). dist draws one
// sample per weight via RandomWeight (given the neuron's number of incoming
// weights) and one per bias via RandomBias.
type MutationDistribution interface {
	RandomWeight(weightsPerNeuron int) float32
	RandomBias() float32
}

func ApplyRandomMutation(h *resource.Handle, dist MutationDistribution) error {
	if err := h.AllocateMutationResources(); err != nil {
		return err
	}
	n := h.Network()
	d := h.Device()

	mutation := make([]float32, n.TotalWeightCount())
	idx := 0
	for li, l := range n.Layers {
		wpn := int(n.WeightsPerNeuron(li))
		for k := uint32(0); k < l.NeuronCount; k++ {
			for j := 0; j < wpn; j++ {
				mutation[idx] = dist.RandomWeight(wpn)
				idx++
			}
			mutation[idx] = dist.RandomBias()
			idx++
		}
	}

	if err := d.QueueWrite(h.Mutation(), floatsToBytes(mutation), 0); err != nil {
		return compute.WrapBackendFailure("upload", err)
	}

	for li, layer := range n.Layers {
		if err := d.QueueApplyGradients(compute.ApplyGradientsParams{
			Tensor:           h.Tensor(),
			Gradient:         h.Mutation(),
			LayerOffset:      n.LayerOffset(li),
			WeightsPerNeuron: n.WeightsPerNeuron(li),
			NeuronCount:      layer.NeuronCount,
			R1:               1,
			R2:               0,
			LearningRate:     -1,
		}); err != nil {
			return compute.WrapBackendFailure("apply", err)
		}
	}

	if err := d.Submit(); err != nil {
		return compute.WrapBackendFailure("apply", err)
	}
	return d.WaitIdle()
}

func floatsToBytes(vs []float32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(v))
	}
	return out
}

func bytesToFloats(raw []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
}
