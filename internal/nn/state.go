package nn

import (
	"encoding/json"
	"fmt"
)

// State is the serializable form of a network's parameters.
type State struct {
	LayerSizes []int         `json:"layer_sizes"`
	Weights    [][][]float64 `json:"weights"`
	Biases     [][]float64   `json:"biases"`
}

// Export deep-copies the current parameters.
func (n *Network) Export() State {
	s := State{
		LayerSizes: n.LayerSizes(),
		Weights:    make([][][]float64, len(n.weights)),
		Biases:     make([][]float64, len(n.biases)),
	}
	for l, w := range n.weights {
		s.Weights[l] = copyMatrix(w)
		s.Biases[l] = append([]float64(nil), n.biases[l]...)
	}
	return s
}

// Import replaces layer sizes, weights and biases with s. Nothing is changed
// when s is inconsistent.
func (n *Network) Import(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}
	weights := make([][][]float64, len(s.Weights))
	biases := make([][]float64, len(s.Biases))
	for l := range s.Weights {
		weights[l] = copyMatrix(s.Weights[l])
		biases[l] = append([]float64(nil), s.Biases[l]...)
	}
	n.layerSizes = append([]int(nil), s.LayerSizes...)
	n.weights = weights
	n.biases = biases
	return nil
}

// Validate checks that every matrix and bias vector matches the layer sizes.
func (s State) Validate() error {
	if len(s.LayerSizes) < 2 {
		return fmt.Errorf("%w: need at least 2 layer sizes, got %d", ErrShapeMismatch, len(s.LayerSizes))
	}
	for i, size := range s.LayerSizes {
		if size <= 0 {
			return fmt.Errorf("%w: layer %d has width %d", ErrShapeMismatch, i, size)
		}
	}
	layers := len(s.LayerSizes) - 1
	if len(s.Weights) != layers || len(s.Biases) != layers {
		return fmt.Errorf("%w: %d layer sizes imply %d weight layers, got %d weights and %d biases",
			ErrShapeMismatch, len(s.LayerSizes), layers, len(s.Weights), len(s.Biases))
	}
	for l := 0; l < layers; l++ {
		in, out := s.LayerSizes[l], s.LayerSizes[l+1]
		if len(s.Weights[l]) != out {
			return fmt.Errorf("%w: layer %d weights have %d rows, want %d", ErrShapeMismatch, l, len(s.Weights[l]), out)
		}
		for o, row := range s.Weights[l] {
			if len(row) != in {
				return fmt.Errorf("%w: layer %d row %d has %d columns, want %d", ErrShapeMismatch, l, o, len(row), in)
			}
		}
		if len(s.Biases[l]) != out {
			return fmt.Errorf("%w: layer %d has %d biases, want %d", ErrShapeMismatch, l, len(s.Biases[l]), out)
		}
	}
	return nil
}

func (s State) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

func (s *State) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
