package training_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zbendefy/macademy-go/compute/cpu"
	"github.com/zbendefy/macademy-go/network"
	"github.com/zbendefy/macademy-go/resource"
	"github.com/zbendefy/macademy-go/tasks"
	"github.com/zbendefy/macademy-go/training"
)

func buildOneHotSuite() ([]tasks.Sample, *network.Network) {
	n, _ := network.NetworkFactory{}.Build("t", 4, []network.LayerConfig{
		{Activation: network.Sigmoid, NeuronCount: 4},
		{Activation: network.Sigmoid, NeuronCount: 4},
	}, nil)
	n.GenerateRandomWeights(initializerStub{})

	samples := make([]tasks.Sample, 0, 40)
	for i := 0; i < 10; i++ {
		for pos := 0; pos < 4; pos++ {
			v := make([]float32, 4)
			v[pos] = 1
			samples = append(samples, tasks.Sample{Input: v, DesiredOutput: append([]float32(nil), v...)})
		}
	}
	return samples, n
}

type initializerStub struct{}

func (initializerStub) RandomWeight(int) float32 { return 0.2 }
func (initializerStub) RandomBias() float32      { return -0.05 }

func TestTrainCompletesAllEpochs(t *testing.T) {
	samples, n := buildOneHotSuite()
	d := cpu.New(0, 2, nil)
	h, err := resource.Register(d, n)
	require.NoError(t, err)

	bs := uint64(8)
	suite := training.Suite{
		TrainingData:         samples,
		MiniBatchSize:        &bs,
		LearningRate:         0.3,
		Epochs:               5,
		ShuffleTrainingData:  true,
		CostFunction:         network.CrossEntropySigmoid,
		Regularization:       network.L2,
		RegularizationLambda: 0.01,
	}

	tracker, err := training.Train(h, suite, rand.New(rand.NewSource(42)), nil, nil)
	require.NoError(t, err)

	select {
	case <-tracker.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("training did not complete in time")
	}

	result := tracker.Result()
	require.NoError(t, result.Err)
	require.False(t, result.Cancelled)
	require.Equal(t, uint32(5), result.EpochsCompleted)
	require.Equal(t, uint64(5), tracker.EpochsFinished())
}

func TestTrainCooperativeCancellation(t *testing.T) {
	samples, n := buildOneHotSuite()
	d := cpu.New(0, 2, nil)
	h, err := resource.Register(d, n)
	require.NoError(t, err)

	bs := uint64(8)
	epochsSeen := 0
	var tr *training.Tracker

	suite := training.Suite{
		TrainingData:         samples,
		MiniBatchSize:        &bs,
		LearningRate:         0.3,
		Epochs:               1000,
		ShuffleTrainingData:  false,
		CostFunction:         network.CrossEntropySigmoid,
		Regularization:       network.NoRegularization,
		RegularizationLambda: 0,
	}

	onEpoch := func(epoch uint32, tracker *training.Tracker) {
		epochsSeen++
		if tracker.EpochsFinished() >= 2 {
			tracker.RequestStop()
		}
	}

	tr, err = training.Train(h, suite, rand.New(rand.NewSource(1)), onEpoch, nil)
	require.NoError(t, err)

	select {
	case <-tr.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("training did not terminate after cancellation")
	}

	result := tr.Result()
	require.NoError(t, result.Err)
	require.True(t, result.Cancelled)
	require.Less(t, result.EpochsCompleted, suite.Epochs)
	require.GreaterOrEqual(t, tr.EpochsFinished(), uint64(2))
}
