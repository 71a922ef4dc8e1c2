package network

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// BinaryVersion is the format constant written to and checked against every
// binary network file (spec §6). Bump this if the on-disk layout changes.
const BinaryVersion uint32 = 1

// WriteBinary serializes n to w in the little-endian layout of spec §6:
// version, name, input_count, layer_count, per-layer {activation, neuron
// count}, total_weight_count, then the packed float32 weights in §3 order.
func (n *Network) WriteBinary(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, BinaryVersion); err != nil {
		return err
	}
	nameBytes := []byte(n.Name)
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(nameBytes))); err != nil {
		return err
	}
	if _, err := bw.Write(nameBytes); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, n.InputCount); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(n.Layers))); err != nil {
		return err
	}
	for _, l := range n.Layers {
		if err := binary.Write(bw, binary.LittleEndian, uint32(l.Activation)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, l.NeuronCount); err != nil {
			return err
		}
	}
	total := n.TotalWeightCount()
	if err := binary.Write(bw, binary.LittleEndian, uint64(total)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, n.Data); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadBinary decodes a network previously written by WriteBinary. Read
// failures (wrong version, truncated stream, a weight-count mismatch against
// the declared topology) return a nil Network and a non-nil error, per §6's
// "null/absent network" failure contract.
func ReadBinary(r io.Reader) (*Network, error) {
	br := bufio.NewReader(r)

	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("network: reading binary_version: %w", err)
	}
	if version != BinaryVersion {
		return nil, fmt.Errorf("network: unsupported binary_version %d (expected %d)", version, BinaryVersion)
	}

	var nameLen uint32
	if err := binary.Read(br, binary.LittleEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("network: reading name_length: %w", err)
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(br, nameBytes); err != nil {
		return nil, fmt.Errorf("network: reading name: %w", err)
	}

	var inputCount uint32
	if err := binary.Read(br, binary.LittleEndian, &inputCount); err != nil {
		return nil, fmt.Errorf("network: reading input_count: %w", err)
	}

	var layerCount uint32
	if err := binary.Read(br, binary.LittleEndian, &layerCount); err != nil {
		return nil, fmt.Errorf("network: reading layer_count: %w", err)
	}
	if layerCount == 0 {
		return nil, fmt.Errorf("network: layer_count must be >= 1")
	}

	layers := make([]LayerConfig, layerCount)
	for i := range layers {
		var actID, neurons uint32
		if err := binary.Read(br, binary.LittleEndian, &actID); err != nil {
			return nil, fmt.Errorf("network: reading layer %d activation_id: %w", i, err)
		}
		if err := binary.Read(br, binary.LittleEndian, &neurons); err != nil {
			return nil, fmt.Errorf("network: reading layer %d neuron_count: %w", i, err)
		}
		layers[i] = LayerConfig{Activation: Activation(actID), NeuronCount: neurons}
	}

	var totalWeightCount uint64
	if err := binary.Read(br, binary.LittleEndian, &totalWeightCount); err != nil {
		return nil, fmt.Errorf("network: reading total_weight_count: %w", err)
	}

	n := &Network{
		Name:       string(nameBytes),
		InputCount: inputCount,
		Layers:     layers,
	}
	expected := n.TotalWeightCount()
	if int64(totalWeightCount) != expected {
		return nil, fmt.Errorf("network: total_weight_count %d does not match topology (expected %d)", totalWeightCount, expected)
	}

	data := make([]float32, totalWeightCount)
	if err := binary.Read(br, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("network: reading weights: %w", err)
	}
	n.Data = data
	return n, nil
}

// jsonLayer is the wire shape of one layer in ExportJSON's output.
type jsonLayer struct {
	Activation  string `json:"activation"`
	NeuronCount uint32 `json:"neuron_count"`
}

// jsonNetwork is the wire shape ExportJSON writes. Per spec §6, only `name`
// and `description` are required; round-tripping through JSON is not
// required to be bit-exact, so Weights/Layers/InputCount are a superset
// convenience, not a contract.
type jsonNetwork struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputCount  uint32      `json:"input_count"`
	Layers      []jsonLayer `json:"layers"`
	Weights     []float32   `json:"weights"`
}

// ExportJSON writes a human-readable JSON representation of n to w.
func (n *Network) ExportJSON(w io.Writer) error {
	jn := jsonNetwork{
		Name:        n.Name,
		Description: n.Description,
		InputCount:  n.InputCount,
		Weights:     n.Data,
	}
	for _, l := range n.Layers {
		jn.Layers = append(jn.Layers, jsonLayer{Activation: l.Activation.String(), NeuronCount: l.NeuronCount})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jn)
}
