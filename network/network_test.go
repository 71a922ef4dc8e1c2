package network

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constInitializer struct {
	weight float32
	bias   float32
}

func (c constInitializer) RandomWeight(int) float32 { return c.weight }
func (c constInitializer) RandomBias() float32      { return c.bias }

func buildTestNetwork(t *testing.T) *Network {
	t.Helper()
	n, err := NetworkFactory{}.Build("test-net", 3, []LayerConfig{
		{Activation: Sigmoid, NeuronCount: 4},
		{Activation: ReLU, NeuronCount: 2},
	}, nil)
	require.NoError(t, err)
	return n
}

func TestLayoutLaw(t *testing.T) {
	n := buildTestNetwork(t)
	var want int64
	for i := range n.Layers {
		want += int64(n.Layers[i].NeuronCount) * (int64(n.WeightsPerNeuron(i)) + 1)
	}
	assert.EqualValues(t, want, len(n.Data))
	assert.EqualValues(t, want, n.TotalWeightCount())
}

func TestLayerOffsets(t *testing.T) {
	n := buildTestNetwork(t)
	assert.EqualValues(t, 0, n.LayerOffset(0))
	// layer 0: 4 neurons * (3 weights + 1 bias) = 16
	assert.EqualValues(t, 16, n.LayerOffset(1))
	// layer 1: 2 neurons * (4 weights + 1 bias) = 10 -> total 26
	assert.EqualValues(t, 26, n.LayerOffset(2))
	assert.EqualValues(t, 26, n.TotalWeightCount())
}

func TestBuildValidation(t *testing.T) {
	_, err := NetworkFactory{}.Build("bad", 0, []LayerConfig{{Activation: Sigmoid, NeuronCount: 1}}, nil)
	assert.Error(t, err)

	_, err = NetworkFactory{}.Build("bad", 1, nil, nil)
	assert.Error(t, err)

	_, err = NetworkFactory{}.Build("bad", 1, []LayerConfig{{Activation: Sigmoid, NeuronCount: 0}}, nil)
	assert.Error(t, err)

	_, err = NetworkFactory{}.Build("bad", 1, []LayerConfig{{Activation: Sigmoid, NeuronCount: 1}}, []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestGenerateRandomWeightsOrder(t *testing.T) {
	n := buildTestNetwork(t)
	n.GenerateRandomWeights(constInitializer{weight: 0.5, bias: 1.5})
	for li := range n.Layers {
		off := n.LayerOffset(li)
		wpn := int64(n.WeightsPerNeuron(li))
		for k := int64(0); k < int64(n.Layers[li].NeuronCount); k++ {
			base := off + k*(wpn+1)
			for j := int64(0); j < wpn; j++ {
				assert.Equal(t, float32(0.5), n.Data[base+j])
			}
			assert.Equal(t, float32(1.5), n.Data[base+wpn])
		}
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	n := buildTestNetwork(t)
	n.GenerateRandomWeights(constInitializer{weight: 0.25, bias: -0.75})

	var buf bytes.Buffer
	require.NoError(t, n.WriteBinary(&buf))

	got, err := ReadBinary(&buf)
	require.NoError(t, err)

	assert.Equal(t, n.Name, got.Name)
	assert.Equal(t, n.InputCount, got.InputCount)
	assert.Equal(t, n.Layers, got.Layers)
	assert.Equal(t, n.Data, got.Data)
}

func TestReadBinaryRejectsWrongVersion(t *testing.T) {
	n := buildTestNetwork(t)
	var buf bytes.Buffer
	require.NoError(t, n.WriteBinary(&buf))

	raw := buf.Bytes()
	raw[0] ^= 0xFF // corrupt the version field

	_, err := ReadBinary(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestLayerConfigBuffer(t *testing.T) {
	n := buildTestNetwork(t)
	buf := n.LayerConfigBuffer()
	assert.Equal(t, []uint32{3, 0, 4, uint32(Sigmoid), 2, uint32(ReLU)}, buf)
}

func TestExportJSON(t *testing.T) {
	n := buildTestNetwork(t)
	n.Description = "a test network"
	var buf bytes.Buffer
	require.NoError(t, n.ExportJSON(&buf))
	assert.Contains(t, buf.String(), `"name": "test-net"`)
	assert.Contains(t, buf.String(), `"description": "a test network"`)
}
