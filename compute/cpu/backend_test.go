package cpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zbendefy/macademy-go/compute"
	"github.com/zbendefy/macademy-go/network"
)

func floatsToBytes(vs []float32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(v))
	}
	return out
}

func readFloats(t *testing.T, d *Device, b compute.Buffer, n int) []float32 {
	t.Helper()
	raw := make([]byte, n*4)
	require.NoError(t, d.QueueRead(b, raw, 0))
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return out
}

// buildTestTensor builds a 2-input, 1-hidden-layer(2 neurons, Identity),
// 1-output-layer(1 neuron, Identity) network with every weight set to 1 and
// every bias to 0, so evaluate_layer's output is hand-checkable.
func buildTestTensor(t *testing.T, d *Device) (compute.Buffer, *network.Network) {
	t.Helper()
	n, err := network.NetworkFactory{}.Build("t", 2, []network.LayerConfig{
		{Activation: network.Identity, NeuronCount: 2},
		{Activation: network.Identity, NeuronCount: 1},
	}, nil)
	require.NoError(t, err)
	for i := range n.Data {
		n.Data[i] = 1
	}
	for li := range n.Layers {
		wpn := int64(n.WeightsPerNeuron(li))
		for k := int64(0); k < int64(n.Layers[li].NeuronCount); k++ {
			n.Data[n.LayerOffset(li)+k*(wpn+1)+wpn] = 0
		}
	}
	buf, err := d.CreateBuffer(n.TotalWeightCount()*4, compute.ReadWrite, "tensor")
	require.NoError(t, err)
	require.NoError(t, d.QueueWrite(buf, floatsToBytes(n.Data), 0))
	return buf, n
}

func TestEvaluateLayerIdentity(t *testing.T) {
	d := New(0, 2, nil)
	tensor, n := buildTestTensor(t, d)

	input, err := d.CreateBuffer(2*4, compute.ReadOnly, "in")
	require.NoError(t, err)
	require.NoError(t, d.QueueWrite(input, floatsToBytes([]float32{1.0, 2.0}), 0))

	output, err := d.CreateBuffer(2*4, compute.WriteOnly, "out")
	require.NoError(t, err)

	require.NoError(t, d.QueueEvaluateLayer(compute.EvaluateLayerParams{
		Tensor:           tensor,
		Input:            input,
		Output:           output,
		Activation:       network.Identity,
		LayerOffset:      n.LayerOffset(0),
		WeightsPerNeuron: n.WeightsPerNeuron(0),
		NeuronCount:      n.Layers[0].NeuronCount,
		BatchSize:        1,
	}))

	got := readFloats(t, d, output, 2)
	require.InDelta(t, 3.0, got[0], 1e-6) // 1*1 + 1*2 + 0 bias
	require.InDelta(t, 3.0, got[1], 1e-6)
}

func TestApplyGradientsZeroIsIdempotent(t *testing.T) {
	d := New(0, 1, nil)
	tensor, n := buildTestTensor(t, d)
	before := readFloats(t, d, tensor, int(n.TotalWeightCount()))

	stride := int(n.WeightsPerNeuron(0)) + 1
	grad, err := d.CreateBuffer(int64(stride*int(n.Layers[0].NeuronCount))*4, compute.ReadOnly, "grad")
	require.NoError(t, err)

	require.NoError(t, d.QueueApplyGradients(compute.ApplyGradientsParams{
		Tensor:           tensor,
		Gradient:         grad,
		LayerOffset:      n.LayerOffset(0),
		WeightsPerNeuron: n.WeightsPerNeuron(0),
		NeuronCount:      n.Layers[0].NeuronCount,
		R1:               1,
		R2:               0,
		LearningRate:     0.5,
	}))

	after := readFloats(t, d, tensor, int(n.TotalWeightCount()))
	require.Equal(t, before, after)
}

func TestApplyGradientsMutationIsAdditive(t *testing.T) {
	d := New(0, 1, nil)
	tensor, n := buildTestTensor(t, d)
	before := readFloats(t, d, tensor, int(n.TotalWeightCount()))

	stride := int(n.WeightsPerNeuron(0)) + 1
	count := stride * int(n.Layers[0].NeuronCount)
	vs := make([]float32, count)
	for i := range vs {
		vs[i] = 0.1
	}
	mutation, err := d.CreateBuffer(int64(count)*4, compute.ReadOnly, "mutation")
	require.NoError(t, err)
	require.NoError(t, d.QueueWrite(mutation, floatsToBytes(vs), 0))

	// per spec: mutation is applied by invoking apply_gradients with
	// (r1=1, r2=0, learning_rate=-1), which folds the mutation buffer
	// additively into the tensor.
	require.NoError(t, d.QueueApplyGradients(compute.ApplyGradientsParams{
		Tensor:           tensor,
		Gradient:         mutation,
		LayerOffset:      n.LayerOffset(0),
		WeightsPerNeuron: n.WeightsPerNeuron(0),
		NeuronCount:      n.Layers[0].NeuronCount,
		R1:               1,
		R2:               0,
		LearningRate:     -1,
	}))

	after := readFloats(t, d, tensor, int(n.TotalWeightCount()))
	// only layer 0 (the first count elements) was mutated
	for i := range before {
		want := before[i]
		if i < count {
			want += 0.1
		}
		require.InDelta(t, want, after[i], 1e-5)
	}
}

func TestTrainForwardPassMatchesEvaluate(t *testing.T) {
	d := New(0, 2, nil)
	tensor, n := buildTestTensor(t, d)

	totalNeurons := int(n.Layers[0].NeuronCount + n.Layers[1].NeuronCount)
	acts, err := d.CreateBuffer(int64(totalNeurons)*4, compute.ReadWrite, "acts")
	require.NoError(t, err)
	zvals, err := d.CreateBuffer(int64(totalNeurons)*4, compute.ReadWrite, "zvals")
	require.NoError(t, err)
	input, err := d.CreateBuffer(2*4, compute.ReadOnly, "in")
	require.NoError(t, err)
	require.NoError(t, d.QueueWrite(input, floatsToBytes([]float32{1.0, 2.0}), 0))

	require.NoError(t, d.QueueTrainForwardPass(compute.TrainForwardParams{
		Tensor:           tensor,
		PrevActivations:  input,
		PrevRowWidth:     2,
		PrevRowOffset:    0,
		Activations:      acts,
		ZValues:          zvals,
		RowWidth:         uint32(totalNeurons),
		RowOffset:        0,
		Activation:       network.Identity,
		LayerOffset:      n.LayerOffset(0),
		WeightsPerNeuron: n.WeightsPerNeuron(0),
		NeuronCount:      n.Layers[0].NeuronCount,
		SampleCount:      1,
	}))
	require.NoError(t, d.QueueTrainForwardPass(compute.TrainForwardParams{
		Tensor:           tensor,
		PrevActivations:  acts,
		PrevRowWidth:     uint32(totalNeurons),
		PrevRowOffset:    0,
		Activations:      acts,
		ZValues:          zvals,
		RowWidth:         uint32(totalNeurons),
		RowOffset:        n.Layers[0].NeuronCount,
		Activation:       network.Identity,
		LayerOffset:      n.LayerOffset(1),
		WeightsPerNeuron: n.WeightsPerNeuron(1),
		NeuronCount:      n.Layers[1].NeuronCount,
		SampleCount:      1,
	}))

	got := readFloats(t, d, acts, totalNeurons)
	require.InDelta(t, 3.0, got[0], 1e-6)
	require.InDelta(t, 3.0, got[1], 1e-6)
	require.InDelta(t, 6.0, got[2], 1e-6) // output = 1*3 + 1*3 + 0 bias
}
