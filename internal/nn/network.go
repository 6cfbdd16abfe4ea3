// Package nn is a small fully connected feed-forward network trained with
// per-example gradient descent. Hidden layers use ReLU, the output layer
// uses a logistic sigmoid.
//
// A Network is not safe for concurrent use.
package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	ErrInvalidWidth  = errors.New("nn: layer width must be positive")
	ErrInvalidRate   = errors.New("nn: invalid rate")
	ErrShapeMismatch = errors.New("nn: state shape mismatch")
)

const (
	sigmoidClamp = 500.0
	// Training stops once the epoch's mean squared error per example drops below this.
	earlyStopMSE = 0.001
)

type Config struct {
	InputSize    int
	HiddenSizes  []int
	OutputSize   int
	LearningRate float64
	DropoutRate  float64
}

type Network struct {
	layerSizes []int
	// weights[l][out][in] maps layer l activations to layer l+1.
	weights [][][]float64
	biases  [][]float64

	learningRate float64
	dropoutRate  float64
	rng          *rand.Rand
}

// New builds a network with He-scaled gaussian weights and small positive
// biases drawn from rng. rng is retained for dropout; pass a seeded source
// for reproducible training.
func New(cfg Config, rng *rand.Rand) (*Network, error) {
	if cfg.InputSize <= 0 || cfg.OutputSize <= 0 {
		return nil, fmt.Errorf("%w: input=%d output=%d", ErrInvalidWidth, cfg.InputSize, cfg.OutputSize)
	}
	for i, h := range cfg.HiddenSizes {
		if h <= 0 {
			return nil, fmt.Errorf("%w: hidden[%d]=%d", ErrInvalidWidth, i, h)
		}
	}
	if cfg.LearningRate <= 0 || math.IsNaN(cfg.LearningRate) || math.IsInf(cfg.LearningRate, 0) {
		return nil, fmt.Errorf("%w: learning rate %v", ErrInvalidRate, cfg.LearningRate)
	}
	if cfg.DropoutRate < 0 || cfg.DropoutRate >= 1 || math.IsNaN(cfg.DropoutRate) {
		return nil, fmt.Errorf("%w: dropout rate %v", ErrInvalidRate, cfg.DropoutRate)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	sizes := make([]int, 0, len(cfg.HiddenSizes)+2)
	sizes = append(sizes, cfg.InputSize)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, cfg.OutputSize)

	n := &Network{
		layerSizes:   sizes,
		learningRate: cfg.LearningRate,
		dropoutRate:  cfg.DropoutRate,
		rng:          rng,
	}
	for l := 0; l < len(sizes)-1; l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		std := math.Sqrt(2 / float64(fanIn))
		w := make([][]float64, fanOut)
		for o := range w {
			w[o] = make([]float64, fanIn)
			for i := range w[o] {
				w[o][i] = rng.NormFloat64() * std
			}
		}
		b := make([]float64, fanOut)
		for o := range b {
			b[o] = rng.Float64() * 0.1
		}
		n.weights = append(n.weights, w)
		n.biases = append(n.biases, b)
	}
	return n, nil
}

// LayerSizes returns a copy of the layer widths, input first.
func (n *Network) LayerSizes() []int {
	return append([]int(nil), n.layerSizes...)
}

func (n *Network) InputSize() int  { return n.layerSizes[0] }
func (n *Network) OutputSize() int { return n.layerSizes[len(n.layerSizes)-1] }

// forward returns the activations of every layer, input included. With
// training set, hidden units are zeroed with probability dropoutRate and the
// survivors are left unscaled.
func (n *Network) forward(input []float64, training bool) [][]float64 {
	acts := make([][]float64, len(n.layerSizes))
	acts[0] = input
	last := len(n.weights) - 1

	for l, w := range n.weights {
		prev := acts[l]
		out := make([]float64, len(w))
		for o, row := range w {
			sum := n.biases[l][o]
			for i, x := range prev {
				sum += row[i] * x
			}
			if l == last {
				out[o] = sigmoid(sum)
				continue
			}
			out[o] = relu(sum)
			if training && n.dropoutRate > 0 && n.rng.Float64() < n.dropoutRate {
				out[o] = 0
			}
		}
		acts[l+1] = out
	}
	return acts
}

// Forward runs inference. Inputs shorter than the input layer are treated as
// zero padded; extra inputs are ignored.
func (n *Network) Forward(input []float64) []float64 {
	acts := n.forward(n.fitInput(input), false)
	return acts[len(acts)-1]
}

// Predict is Forward with dropout disabled. Outputs are raw sigmoid values.
func (n *Network) Predict(input []float64) []float64 {
	return n.Forward(input)
}

// TrainExample runs one forward and backward pass and updates the weights in
// place. It returns the example's summed squared error.
func (n *Network) TrainExample(input, target []float64) float64 {
	acts := n.forward(n.fitInput(input), true)
	out := acts[len(acts)-1]

	deltas := make([][]float64, len(n.weights))
	last := len(n.weights) - 1

	loss := 0.0
	deltas[last] = make([]float64, len(out))
	for o, y := range out {
		t := 0.0
		if o < len(target) {
			t = target[o]
		}
		diff := y - t
		loss += diff * diff
		deltas[last][o] = diff * y * (1 - y)
	}

	for l := last - 1; l >= 0; l-- {
		next := n.weights[l+1]
		a := acts[l+1]
		d := make([]float64, len(a))
		for j := range a {
			if a[j] <= 0 {
				continue
			}
			sum := 0.0
			for k, row := range next {
				sum += row[j] * deltas[l+1][k]
			}
			d[j] = sum
		}
		deltas[l] = d
	}

	for l, w := range n.weights {
		in := acts[l]
		for o, row := range w {
			g := n.learningRate * deltas[l][o]
			if g == 0 {
				continue
			}
			for i, x := range in {
				row[i] -= g * x
			}
			n.biases[l][o] -= g
		}
	}
	return loss
}

type Example struct {
	Input  []float64
	Target []float64
}

type TrainResult struct {
	Epochs int
	// Loss is the final epoch's mean squared error per example.
	Loss    float64
	Stopped bool
}

// Train runs up to epochs passes over examples in the given order, one
// update per example, and stops early when the epoch loss falls below 0.001.
func (n *Network) Train(examples []Example, epochs int) TrainResult {
	var res TrainResult
	if len(examples) == 0 {
		return res
	}
	for e := 0; e < epochs; e++ {
		total := 0.0
		for _, ex := range examples {
			total += n.TrainExample(ex.Input, ex.Target)
		}
		res.Epochs = e + 1
		res.Loss = total / float64(len(examples))
		if res.Loss < earlyStopMSE {
			res.Stopped = true
			break
		}
	}
	return res
}

func (n *Network) fitInput(input []float64) []float64 {
	size := n.layerSizes[0]
	if len(input) == size {
		return input
	}
	out := make([]float64, size)
	copy(out, input)
	return out
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func sigmoid(x float64) float64 {
	if x > sigmoidClamp {
		x = sigmoidClamp
	} else if x < -sigmoidClamp {
		x = -sigmoidClamp
	}
	return 1 / (1 + math.Exp(-x))
}
