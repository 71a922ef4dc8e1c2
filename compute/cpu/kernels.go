package cpu

import (
	"github.com/zbendefy/macademy-go/compute"
	"github.com/zbendefy/macademy-go/network"
)

// QueueEvaluateLayer computes, for every sample in the batch and every
// neuron in the layer, sigma(sum(w_i * in_i) + bias) and writes the result
// into Output (spec §4.5 evaluate_layer).
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

	w := tensor.floats()
	in := input.floats()
	out := output.floats()
	weightsPerNeuron := int(p.WeightsPerNeuron)
	neuronCount := int(p.NeuronCount)
	stride := weightsPerNeuron + 1
	base := p.LayerOffset

	parallelFor(d.workers, int(p.BatchSize)*neuronCount, func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			sample := idx / neuronCount
			neuron := idx % neuronCount
			off := base + int64(neuron)*int64(stride)
			z := w[off+int64(weightsPerNeuron)] // bias
			inRow := in[sample*weightsPerNeuron : sample*weightsPerNeuron+weightsPerNeuron]
			wRow := w[off : off+int64(weightsPerNeuron)]
			for i, wi := range wRow {
				z += wi * inRow[i]
			}
			out[sample*neuronCount+neuron] = network.Apply(p.Activation, z)
		}
	})
	return nil
}

// QueueTrainForwardPass computes z and a for every (sample, neuron) in the
// layer and writes both into the shared activations/zvalues buffers at this
// layer's row slice (spec §4.5 train_forward_pass).
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

	w := tensor.floats()
	prevData := prev.floats()
	actData := acts.floats()
	zData := zvals.floats()

	weightsPerNeuron := int(p.WeightsPerNeuron)
	neuronCount := int(p.NeuronCount)
	stride := weightsPerNeuron + 1
	base := p.LayerOffset
	prevRowWidth := int(p.PrevRowWidth)
	prevRowOffset := int(p.PrevRowOffset)
	rowWidth := int(p.RowWidth)
	rowOffset := int(p.RowOffset)

	parallelFor(d.workers, int(p.SampleCount)*neuronCount, func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			sample := idx / neuronCount
			neuron := idx % neuronCount
			off := base + int64(neuron)*int64(stride)
			z := w[off+int64(weightsPerNeuron)] // bias
			prevRow := prevData[sample*prevRowWidth+prevRowOffset : sample*prevRowWidth+prevRowOffset+weightsPerNeuron]
			wRow := w[off : off+int64(weightsPerNeuron)]
			for i, wi := range wRow {
				z += wi * prevRow[i]
			}
			outIdx := sample*rowWidth + rowOffset + neuron
			zData[outIdx] = z
			actData[outIdx] = network.Apply(p.Activation, z)
		}
	})
	return nil
}

// QueueTrainBackwardPass computes per-neuron delta for this layer, writes it
// to DeltaWrite, and accumulates its contribution into LayerGradient at
// LayerOffset (spec §4.5 train_backward_pass). For an output layer,
// delta = cost_delta(a, target); for a hidden layer,
// delta = (sum_k w_{k,this} * delta_k) * activation_prime(z).
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

	var nextTensor *buffer
	var deltaRead *buffer
	if !p.IsOutput {
		nextTensor, err = d.asBuffer(p.NextLayerTensor)
		if err != nil {
			return err
		}
		deltaRead, err = d.asBuffer(p.DeltaRead)
		if err != nil {
			return err
		}
	}
	var desired *buffer
	if p.IsOutput {
		desired, err = d.asBuffer(p.DesiredOutput)
		if err != nil {
			return err
		}
	}

	prevData := prev.floats()
	actData := acts.floats()
	zData := zvals.floats()
	deltaWData := deltaWrite.floats()
	gradData := gradient.floats()

	weightsPerNeuron := int(p.WeightsPerNeuron)
	neuronCount := int(p.NeuronCount)
	nextNeuronCount := int(p.NextNeuronCount)
	nextStride := neuronCount + 1 // stride of the next layer's rows, indexed by THIS layer's neuron count
	nextBase := p.NextLayerOffset
	prevRowWidth := int(p.PrevRowWidth)
	prevRowOffset := int(p.PrevRowOffset)
	rowWidth := int(p.RowWidth)
	rowOffset := int(p.RowOffset)
	gradBase := p.LayerOffset
	gradStride := weightsPerNeuron + 1

	var nextW []float32
	var deltaRData []float32
	if !p.IsOutput {
		nextW = nextTensor.floats()
		deltaRData = deltaRead.floats()
	}
	var desiredData []float32
	if p.IsOutput {
		desiredData = desired.floats()
	}

	// delta[sample][neuron] computed first so the gradient accumulation
	// below can read it back; ping-pong delta buffers are sized
	// max_neurons wide per sample, so rows here are neuronCount-wide.
	parallelFor(d.workers, int(p.SampleCount)*neuronCount, func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			sample := idx / neuronCount
			neuron := idx % neuronCount
			outIdx := sample*rowWidth + rowOffset + neuron
			z := zData[outIdx]
			a := actData[outIdx]

			var delta float32
			if p.IsOutput {
				target := desiredData[sample*neuronCount+neuron]
				delta = network.CostDelta(p.Cost, p.Activation, z, a, target)
			} else {
				var sum float32
				for k := 0; k < nextNeuronCount; k++ {
					// next layer's weight from this neuron to next-neuron k
					wOff := nextBase + int64(k)*int64(nextStride) + int64(neuron)
					sum += nextW[wOff] * deltaRData[sample*nextNeuronCount+k]
				}
				delta = sum * network.ApplyPrime(p.Activation, z, a)
			}
			deltaWData[sample*neuronCount+neuron] = delta
		}
	})

	// gradient accumulation: sum over the minibatch of delta * input, plus
	// delta itself for the bias term (spec §4.5 step "accumulate
	// gradient").
	parallelFor(d.workers, neuronCount, func(lo, hi int) {
		for neuron := lo; neuron < hi; neuron++ {
			gOff := gradBase + int64(neuron)*int64(gradStride)
			for sample := 0; sample < int(p.SampleCount); sample++ {
				delta := deltaWData[sample*neuronCount+neuron]
				prevRow := prevData[sample*prevRowWidth+prevRowOffset : sample*prevRowWidth+prevRowOffset+weightsPerNeuron]
				for i, pv := range prevRow {
					gradData[gOff+int64(i)] += delta * pv
				}
				gradData[gOff+int64(weightsPerNeuron)] += delta
			}
		}
	})
	return nil
}

// QueueApplyGradients updates every weight and bias in the layer in place
// (spec §4.5 apply_gradients). For weight j of neuron k:
// w <- r1*w - LearningRate*gradient[idx]; if R2 != 0, w <- w - R2*sign(w)
// (the L1 decay term). Biases are updated as b <- b - LearningRate*grad[idx],
// unaffected by R1/R2.
func (d *Device) QueueApplyGradients(p compute.ApplyGradientsParams) error {
	tensor, err := d.asBuffer(p.Tensor)
	if err != nil {
		return err
	}
	gradient, err := d.asBuffer(p.Gradient)
	if err != nil {
		return err
	}

	w := tensor.floats()
	g := gradient.floats()
	weightsPerNeuron := int(p.WeightsPerNeuron)
	neuronCount := int(p.NeuronCount)
	stride := weightsPerNeuron + 1
	base := p.LayerOffset

	parallelFor(d.workers, neuronCount, func(lo, hi int) {
		for neuron := lo; neuron < hi; neuron++ {
			off := base + int64(neuron)*int64(stride)
			for j := 0; j < weightsPerNeuron; j++ {
				v := p.R1*w[off+int64(j)] - p.LearningRate*g[off+int64(j)]
				if p.R2 != 0 {
					v -= p.R2 * sign32(v)
				}
				w[off+int64(j)] = v
			}
			biasOff := off + int64(weightsPerNeuron)
			w[biasOff] -= p.LearningRate * g[biasOff]
		}
	})
	return nil
}

func sign32(v float32) float32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
