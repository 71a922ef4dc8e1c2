package resource_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zbendefy/macademy-go/compute/cpu"
	"github.com/zbendefy/macademy-go/network"
	"github.com/zbendefy/macademy-go/resource"
)

func buildNet(t *testing.T) *network.Network {
	t.Helper()
	n, err := network.NetworkFactory{}.Build("t", 3, []network.LayerConfig{
		{Activation: network.Sigmoid, NeuronCount: 4},
		{Activation: network.Sigmoid, NeuronCount: 2},
	}, nil)
	require.NoError(t, err)
	n.GenerateRandomWeights(mustConstInitializer(t))
	return n
}

type constInit struct{}

func (constInit) RandomWeight(int) float32 { return 0.5 }
func (constInit) RandomBias() float32      { return 0.1 }

func mustConstInitializer(t *testing.T) network.WeightInitializer {
	t.Helper()
	return constInit{}
}

func TestRegistrationPreservesWeights(t *testing.T) {
	n := buildNet(t)
	before := append([]float32(nil), n.Data...)

	d := cpu.New(0, 2, nil)
	h, err := resource.Register(d, n)
	require.NoError(t, err)

	require.NoError(t, h.SynchronizeNetworkData())
	require.Equal(t, before, n.Data)
}

func TestFreeCachedResourcesReturnsToRegistered(t *testing.T) {
	n := buildNet(t)
	d := cpu.New(0, 1, nil)
	h, err := resource.Register(d, n)
	require.NoError(t, err)

	require.NoError(t, h.AllocateEvalResources(4))
	require.True(t, h.State(resource.EvalReady))
	require.NoError(t, h.AllocateTrainingResources(8))
	require.True(t, h.State(resource.TrainingReady))
	require.NoError(t, h.AllocateMutationResources())
	require.True(t, h.State(resource.MutationReady))

	h.FreeCachedResources()
	require.False(t, h.State(resource.EvalReady))
	require.False(t, h.State(resource.TrainingReady))
	require.False(t, h.State(resource.MutationReady))
	require.True(t, h.State(resource.Registered))
}

func TestAllocateEvalResourcesIdempotentForSameBatchSize(t *testing.T) {
	n := buildNet(t)
	d := cpu.New(0, 1, nil)
	h, err := resource.Register(d, n)
	require.NoError(t, err)

	require.NoError(t, h.AllocateEvalResources(4))
	ping1, pong1 := h.EvalBuffers()
	require.NoError(t, h.AllocateEvalResources(4))
	ping2, pong2 := h.EvalBuffers()
	require.Same(t, ping1, ping2)
	require.Same(t, pong1, pong2)
}
