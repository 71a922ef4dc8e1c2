package tasks_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zbendefy/macademy-go/compute/cpu"
	"github.com/zbendefy/macademy-go/network"
	"github.com/zbendefy/macademy-go/resource"
	"github.com/zbendefy/macademy-go/tasks"
)

func TestEvaluateIdentityNetwork(t *testing.T) {
	n, err := network.NetworkFactory{}.Build("t", 2, []network.LayerConfig{
		{Activation: network.Identity, NeuronCount: 2},
		{Activation: network.Identity, NeuronCount: 1},
	}, nil)
	require.NoError(t, err)
	for i := range n.Data {
		n.Data[i] = 1
	}

	d := cpu.New(0, 2, nil)
	h, err := resource.Register(d, n)
	require.NoError(t, err)

	out, err := tasks.Evaluate(h, []float32{1.0, 2.0})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.InDelta(t, 9.0, out[0], 1e-5) // hidden: 1*1+1*2+1 = 4,4 -> output: 1*4+1*4+1
}

func TestEvaluateBatchMatchesConcatenatedSingleCalls(t *testing.T) {
	n, err := network.NetworkFactory{}.Build("t", 2, []network.LayerConfig{
		{Activation: network.Sigmoid, NeuronCount: 3},
		{Activation: network.Sigmoid, NeuronCount: 2},
	}, nil)
	require.NoError(t, err)
	n.GenerateRandomWeights(constInit{})

	d := cpu.New(0, 2, nil)
	h, err := resource.Register(d, n)
	require.NoError(t, err)

	inputs := [][]float32{{1, -2}, {0.5, 0.5}, {-1, 3}}
	var concatInput []float32
	for _, in := range inputs {
		concatInput = append(concatInput, in...)
	}

	batched, err := tasks.EvaluateBatch(h, 3, concatInput)
	require.NoError(t, err)

	for i, in := range inputs {
		single, err := tasks.Evaluate(h, in)
		require.NoError(t, err)
		for j := range single {
			require.InDelta(t, single[j], batched[i*2+j], 1e-5)
		}
	}
}

type constInit struct{}

func (constInit) RandomWeight(int) float32 { return 0.3 }
func (constInit) RandomBias() float32      { return -0.1 }

func TestTrainMinibatchReducesLossOnOneHot(t *testing.T) {
	n, err := network.NetworkFactory{}.Build("t", 4, []network.LayerConfig{
		{Activation: network.Sigmoid, NeuronCount: 4},
		{Activation: network.Sigmoid, NeuronCount: 4},
	}, nil)
	require.NoError(t, err)
	n.GenerateRandomWeights(constInit{})

	d := cpu.New(0, 2, nil)
	h, err := resource.Register(d, n)
	require.NoError(t, err)
	require.NoError(t, h.AllocateTrainingResources(4))

	samples := []tasks.Sample{
		{Input: []float32{1, 0, 0, 0}, DesiredOutput: []float32{1, 0, 0, 0}},
		{Input: []float32{0, 1, 0, 0}, DesiredOutput: []float32{0, 1, 0, 0}},
		{Input: []float32{0, 0, 1, 0}, DesiredOutput: []float32{0, 0, 1, 0}},
		{Input: []float32{0, 0, 0, 1}, DesiredOutput: []float32{0, 0, 0, 1}},
	}

	lossBefore := mse(t, h, samples)

	for epoch := 0; epoch < 200; epoch++ {
		require.NoError(t, tasks.TrainMinibatch(h, samples, 0, len(samples), tasks.Params{
			Cost:            network.CrossEntropySigmoid,
			Regularization:  network.L2,
			LearningRate:    0.5,
			Lambda:          0.01,
			TrainingSetSize: len(samples),
		}))
		require.NoError(t, d.WaitIdle())
	}

	lossAfter := mse(t, h, samples)
	require.Less(t, lossAfter, lossBefore)
}

func mse(t *testing.T, h *resource.Handle, samples []tasks.Sample) float32 {
	t.Helper()
	var sum float32
	for _, s := range samples {
		out, err := tasks.Evaluate(h, s.Input)
		require.NoError(t, err)
		for i := range out {
			d := out[i] - s.DesiredOutput[i]
			sum += d * d
		}
	}
	return sum
}

func TestApplyRandomMutationIsAdditive(t *testing.T) {
	n, err := network.NetworkFactory{}.Build("t", 2, []network.LayerConfig{
		{Activation: network.Sigmoid, NeuronCount: 3},
	}, nil)
	require.NoError(t, err)
	n.GenerateRandomWeights(constInit{})

	d := cpu.New(0, 1, nil)
	h, err := resource.Register(d, n)
	require.NoError(t, err)

	before := append([]float32(nil), n.Data...)
	require.NoError(t, tasks.ApplyRandomMutation(h, constDist{0.2}))
	require.NoError(t, h.SynchronizeNetworkData())

	for i := range before {
		require.InDelta(t, before[i]+0.2, n.Data[i], 1e-5)
	}
}

type constDist struct{ v float32 }

func (c constDist) RandomWeight(int) float32 { return c.v }
func (c constDist) RandomBias() float32      { return c.v }
