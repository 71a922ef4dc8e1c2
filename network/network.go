// Package network defines the in-memory representation of a dense
// feed-forward multi-layer perceptron and the packed float32 tensor layout
// that every compute backend must address identically (spec §3).
package network

import "fmt"

// LayerConfig describes one layer of a Network: its neuron count and the
// activation function applied to every neuron in the layer.
type LayerConfig struct {
	Activation  Activation
	NeuronCount uint32
}

// Network is an immutable layer topology plus a mutable packed weight/bias
// buffer on the host (spec §3). The zero value is not valid; construct one
// with NetworkFactory.
type Network struct {
	Name        string
	Description string
	InputCount  uint32
	Layers      []LayerConfig
	Data        []float32
}

// WeightsPerNeuron returns the number of incoming weights each neuron in
// layer index li has: the input count for layer 0, or the previous layer's
// neuron count otherwise (spec §3).
func (n *Network) WeightsPerNeuron(li int) uint32 {
	if li == 0 {
		return n.InputCount
	}
	return n.Layers[li-1].NeuronCount
}

// LayerOffset returns the 64-bit offset, in floats, to the start of layer
// li's packed weights+biases within Data (spec §3, §9: offsets must be
// computed in 64-bit arithmetic to survive large networks).
func (n *Network) LayerOffset(li int) int64 {
	var off int64
	for j := 0; j < li; j++ {
		off += int64(n.Layers[j].NeuronCount) * (int64(n.WeightsPerNeuron(j)) + 1)
	}
	return off
}

// TotalWeightCount returns Σ neurons_i * (weights_per_neuron_i + 1), the
// required length of Data (spec §3 layout law, spec §8).
func (n *Network) TotalWeightCount() int64 {
	return n.LayerOffset(len(n.Layers))
}

// OutputCount returns the neuron count of the final layer.
func (n *Network) OutputCount() uint32 {
	return n.Layers[len(n.Layers)-1].NeuronCount
}

// MaxNeuronCount returns the largest neuron count across all layers, used to
// size ping-pong scratch buffers (spec §3).
func (n *Network) MaxNeuronCount() uint32 {
	var m uint32
	for _, l := range n.Layers {
		if l.NeuronCount > m {
			m = l.NeuronCount
		}
	}
	return m
}

// LayerConfigBuffer returns the device-side mirror of the topology: a flat
// uint32 array shaped [input_count, 0, neurons_0, activation_0, neurons_1,
// activation_1, ...] (spec §3).
func (n *Network) LayerConfigBuffer() []uint32 {
	buf := make([]uint32, 0, 2+2*len(n.Layers))
	buf = append(buf, n.InputCount, 0)
	for _, l := range n.Layers {
		buf = append(buf, l.NeuronCount, uint32(l.Activation))
	}
	return buf
}

// WeightInitializer produces initial weights and biases for a layer being
// built (spec §4.1). Implementations need not import this package; any type
// with these two methods satisfies the interface.
type WeightInitializer interface {
	// RandomWeight draws one weight for a neuron with the given number of
	// incoming weights.
	RandomWeight(weightsPerNeuron int) float32
	// RandomBias draws one bias value.
	RandomBias() float32
}

// NetworkFactory builds validated Networks (spec §4.1).
type NetworkFactory struct{}

// Build validates the topology and allocates a zero-initialized (or, if
// initialData is non-nil, caller-supplied) packed weight buffer. initialData
// must be passed as nil when not needed; if non-nil its length must equal
// the computed total weight count exactly.
func (NetworkFactory) Build(name string, inputCount uint32, layers []LayerConfig, initialData []float32) (*Network, error) {
	if inputCount < 1 {
		return nil, fmt.Errorf("network: input_count must be >= 1, got %d", inputCount)
	}
	if len(layers) < 1 {
		return nil, fmt.Errorf("network: at least one layer is required")
	}
	for i, l := range layers {
		if l.NeuronCount < 1 {
			return nil, fmt.Errorf("network: layer %d has neuron_count %d, must be >= 1", i, l.NeuronCount)
		}
		if !l.Activation.IsValid() {
			return nil, fmt.Errorf("network: layer %d has invalid activation %d", i, l.Activation)
		}
	}

	n := &Network{
		Name:       name,
		InputCount: inputCount,
		Layers:     append([]LayerConfig(nil), layers...),
	}
	total := n.TotalWeightCount()

	if initialData != nil {
		if int64(len(initialData)) != total {
			return nil, fmt.Errorf("network: initial_data has %d elements, expected %d", len(initialData), total)
		}
		n.Data = append([]float32(nil), initialData...)
	} else {
		n.Data = make([]float32, total)
	}
	return n, nil
}

// GenerateRandomWeights fills Data in layer-then-neuron order, calling
// initializer.RandomWeight for each weight and initializer.RandomBias for
// each bias. This order is mandatory (spec §4.1): it is what makes seeded
// initializers reproducible.
func (n *Network) GenerateRandomWeights(initializer WeightInitializer) {
	idx := int64(0)
	for li, l := range n.Layers {
		wpn := int(n.WeightsPerNeuron(li))
		for k := uint32(0); k < l.NeuronCount; k++ {
			for j := 0; j < wpn; j++ {
				n.Data[idx] = initializer.RandomWeight(wpn)
				idx++
			}
			n.Data[idx] = initializer.RandomBias()
			idx++
		}
	}
}

// Clone returns a deep copy of the network, including its weight buffer.
func (n *Network) Clone() *Network {
	return &Network{
		Name:        n.Name,
		Description: n.Description,
		InputCount:  n.InputCount,
		Layers:      append([]LayerConfig(nil), n.Layers...),
		Data:        append([]float32(nil), n.Data...),
	}
}
