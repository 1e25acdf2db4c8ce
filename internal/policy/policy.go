package policy

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
)

// Network is a fixed-topology feed-forward policy mapping an observation
// vector to action scores. Hidden layers use tanh, the output layer is
// linear. The action is the argmax over the output scores.
type Network struct {
	Sizes   []int       `json:"sizes"`
	Weights [][]float64 `json:"weights"`
	Biases  [][]float64 `json:"biases"`
}

// NewRandom builds a network with the given layer sizes (input first, output
// last) and Gaussian-initialized parameters from a dedicated seed.
func NewRandom(sizes []int, seed int64) (*Network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("network requires at least input and output layers, got %d", len(sizes))
	}
	for i, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("layer size must be > 0 at index %d", i)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	n := &Network{Sizes: append([]int(nil), sizes...)}
	for layer := 0; layer < len(sizes)-1; layer++ {
		in, out := sizes[layer], sizes[layer+1]
		scale := 1.0 / math.Sqrt(float64(in))
		weights := make([]float64, in*out)
		for i := range weights {
			weights[i] = rng.NormFloat64() * scale
		}
		biases := make([]float64, out)
		n.Weights = append(n.Weights, weights)
		n.Biases = append(n.Biases, biases)
	}
	return n, nil
}

// Predict returns the index of the highest-scoring action for the
// observation vector.
func (n *Network) Predict(observation []float64) (int, error) {
	if len(observation) != n.Sizes[0] {
		return 0, fmt.Errorf("observation size mismatch: got=%d want=%d", len(observation), n.Sizes[0])
	}

	values := observation
	last := len(n.Weights) - 1
	for layer := range n.Weights {
		in, out := n.Sizes[layer], n.Sizes[layer+1]
		next := make([]float64, out)
		for j := 0; j < out; j++ {
			total := n.Biases[layer][j]
			for i := 0; i < in; i++ {
				total += values[i] * n.Weights[layer][i*out+j]
			}
			if layer != last {
				total = math.Tanh(total)
			}
			next[j] = total
		}
		values = next
	}

	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best, nil
}

// Tensors returns the mutable parameter tensors in a stable order: each
// layer's weight matrix followed by its bias vector.
func (n *Network) Tensors() [][]float64 {
	tensors := make([][]float64, 0, 2*len(n.Weights))
	for layer := range n.Weights {
		tensors = append(tensors, n.Weights[layer], n.Biases[layer])
	}
	return tensors
}

// Mutate perturbs each parameter tensor independently with the given
// probability by adding power times one standard normal sample to every
// element of the selected tensor. Unselected tensors pass through unchanged.
func (n *Network) Mutate(rng *rand.Rand, probability, power float64) {
	for _, tensor := range n.Tensors() {
		if rng.Float64() >= probability {
			continue
		}
		noise := power * rng.NormFloat64()
		for i := range tensor {
			tensor[i] += noise
		}
	}
}

// Clone returns a deep copy.
func (n *Network) Clone() *Network {
	out := &Network{Sizes: append([]int(nil), n.Sizes...)}
	for layer := range n.Weights {
		out.Weights = append(out.Weights, append([]float64(nil), n.Weights[layer]...))
		out.Biases = append(out.Biases, append([]float64(nil), n.Biases[layer]...))
	}
	return out
}

// Equal reports whether two networks hold identical parameters.
func (n *Network) Equal(other *Network) bool {
	if other == nil || len(n.Sizes) != len(other.Sizes) {
		return false
	}
	for i := range n.Sizes {
		if n.Sizes[i] != other.Sizes[i] {
			return false
		}
	}
	for layer := range n.Weights {
		for i := range n.Weights[layer] {
			if n.Weights[layer][i] != other.Weights[layer][i] {
				return false
			}
		}
		for i := range n.Biases[layer] {
			if n.Biases[layer][i] != other.Biases[layer][i] {
				return false
			}
		}
	}
	return true
}

// Save serializes the network to path as JSON.
func (n *Network) Save(path string) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a network previously written by Save.
func Load(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode policy %s: %w", path, err)
	}
	if len(n.Sizes) < 2 || len(n.Weights) != len(n.Sizes)-1 || len(n.Biases) != len(n.Sizes)-1 {
		return nil, fmt.Errorf("decode policy %s: malformed layer layout", path)
	}
	return &n, nil
}
