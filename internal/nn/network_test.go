package nn

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNetwork(t *testing.T, cfg Config, seed int64) *Network {
	t.Helper()
	n, err := New(cfg, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return n
}

func defaultConfig() Config {
	return Config{
		InputSize:    4,
		HiddenSizes:  []int{8, 6},
		OutputSize:   3,
		LearningRate: 0.05,
		DropoutRate:  0.1,
	}
}

func TestNew_Shapes(t *testing.T) {
	n := newTestNetwork(t, defaultConfig(), 1)

	assert.Equal(t, []int{4, 8, 6, 3}, n.LayerSizes())
	require.Len(t, n.weights, 3)
	assert.Len(t, n.weights[0], 8)
	assert.Len(t, n.weights[0][0], 4)
	assert.Len(t, n.weights[2], 3)
	assert.Len(t, n.weights[2][0], 6)
	for _, b := range n.biases {
		for _, v := range b {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 0.1)
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cases := map[string]Config{
		"zero input":      {InputSize: 0, OutputSize: 1, LearningRate: 0.1},
		"negative output": {InputSize: 2, OutputSize: -1, LearningRate: 0.1},
		"zero hidden":     {InputSize: 2, HiddenSizes: []int{3, 0}, OutputSize: 1, LearningRate: 0.1},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg, nil)
			assert.ErrorIs(t, err, ErrInvalidWidth)
		})
	}

	_, err := New(Config{InputSize: 2, OutputSize: 1, LearningRate: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = New(Config{InputSize: 2, OutputSize: 1, LearningRate: 0.1, DropoutRate: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestNew_NoHiddenLayers(t *testing.T) {
	n := newTestNetwork(t, Config{InputSize: 3, OutputSize: 2, LearningRate: 0.1}, 1)
	assert.Equal(t, []int{3, 2}, n.LayerSizes())
	assert.Len(t, n.Predict([]float64{1, 2, 3}), 2)
}

func TestForward_SigmoidRange(t *testing.T) {
	n := newTestNetwork(t, defaultConfig(), 7)
	rng := rand.New(rand.NewSource(99))

	for i := 0; i < 200; i++ {
		in := make([]float64, 4)
		for j := range in {
			in[j] = rng.Float64()*10 - 5
		}
		for _, y := range n.Forward(in) {
			assert.Greater(t, y, 0.0)
			assert.Less(t, y, 1.0)
		}
	}
}

func TestSigmoid_Clamped(t *testing.T) {
	assert.False(t, isNaN(sigmoid(1e308)))
	assert.False(t, isNaN(sigmoid(-1e308)))
	assert.Greater(t, sigmoid(-1e308), 0.0)
	assert.Equal(t, sigmoid(-500), sigmoid(-1e6))
}

func isNaN(f float64) bool { return f != f }

func TestPredict_ShortInputIsPadded(t *testing.T) {
	n := newTestNetwork(t, defaultConfig(), 3)
	assert.Equal(t, n.Predict([]float64{0.5, 0.25, 0, 0}), n.Predict([]float64{0.5, 0.25}))
}

func TestPredict_NoDropout(t *testing.T) {
	n := newTestNetwork(t, Config{InputSize: 4, HiddenSizes: []int{16}, OutputSize: 2, LearningRate: 0.1, DropoutRate: 0.5}, 5)
	in := []float64{0.1, 0.2, 0.3, 0.4}
	first := n.Predict(in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, n.Predict(in))
	}
}

func TestTrain_ConvergesOnSingleExample(t *testing.T) {
	for name, hidden := range map[string][]int{"direct": nil, "hidden": {16}} {
		t.Run(name, func(t *testing.T) {
			n := newTestNetwork(t, Config{
				InputSize:    3,
				HiddenSizes:  hidden,
				OutputSize:   2,
				LearningRate: 0.5,
			}, 11)
			ex := Example{Input: []float64{0.5, 0.2, 0.9}, Target: []float64{0.2, 0.8}}

			res := n.Train([]Example{ex}, 20000)

			assert.True(t, res.Stopped)
			assert.Less(t, res.Loss, 0.001)
			out := n.Predict(ex.Input)
			assert.InDelta(t, 0.2, out[0], 0.05)
			assert.InDelta(t, 0.8, out[1], 0.05)
		})
	}
}

func TestTrain_DeterministicWithSeed(t *testing.T) {
	examples := []Example{
		{Input: []float64{0.1, 0.9, 0.3, 0.5}, Target: []float64{1, 0, 0.5}},
		{Input: []float64{0.7, 0.2, 0.8, 0.1}, Target: []float64{0, 1, 0.25}},
		{Input: []float64{0.4, 0.4, 0.4, 0.4}, Target: []float64{0.5, 0.5, 0.5}},
	}

	a := newTestNetwork(t, defaultConfig(), 42)
	b := newTestNetwork(t, defaultConfig(), 42)
	ra := a.Train(examples, 50)
	rb := b.Train(examples, 50)

	assert.Equal(t, ra, rb)
	assert.Equal(t, a.Export(), b.Export())
	assert.Equal(t, a.Predict(examples[0].Input), b.Predict(examples[0].Input))
}

func TestTrain_Empty(t *testing.T) {
	n := newTestNetwork(t, defaultConfig(), 1)
	before := n.Export()

	res := n.Train(nil, 100)

	assert.Equal(t, TrainResult{}, res)
	assert.Equal(t, before, n.Export())
}

func TestTrainExample_ReducesError(t *testing.T) {
	n := newTestNetwork(t, Config{InputSize: 2, HiddenSizes: []int{4}, OutputSize: 1, LearningRate: 0.2}, 8)
	in, target := []float64{1, 0}, []float64{1}

	first := n.TrainExample(in, target)
	var last float64
	for i := 0; i < 200; i++ {
		last = n.TrainExample(in, target)
	}
	assert.Less(t, last, first)
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := newTestNetwork(t, defaultConfig(), 21)
	src.Train([]Example{{Input: []float64{1, 0, 1, 0}, Target: []float64{0.3, 0.6, 0.9}}}, 25)
	in := []float64{0.3, 0.1, 0.7, 0.2}
	want := src.Predict(in)

	data, err := json.Marshal(src.Export())
	require.NoError(t, err)

	var state State
	require.NoError(t, json.Unmarshal(data, &state))

	dst := newTestNetwork(t, defaultConfig(), 999)
	require.NoError(t, dst.Import(state))

	assert.Equal(t, want, dst.Predict(in))
	assert.Equal(t, src.LayerSizes(), dst.LayerSizes())
}

func TestExport_IsDeepCopy(t *testing.T) {
	n := newTestNetwork(t, defaultConfig(), 2)
	s := n.Export()
	s.Weights[0][0][0] = 1234
	s.Biases[0][0] = 1234
	assert.NotEqual(t, 1234.0, n.weights[0][0][0])
	assert.NotEqual(t, 1234.0, n.biases[0][0])
}

func TestImport_RejectsMalformedState(t *testing.T) {
	n := newTestNetwork(t, defaultConfig(), 4)
	good := n.Export()

	mutations := map[string]func(s *State){
		"too few sizes":    func(s *State) { s.LayerSizes = []int{4} },
		"missing layer":    func(s *State) { s.Weights = s.Weights[:2] },
		"bias count":       func(s *State) { s.Biases[1] = s.Biases[1][:3] },
		"row count":        func(s *State) { s.Weights[0] = s.Weights[0][:7] },
		"column count":     func(s *State) { s.Weights[2][1] = append(s.Weights[2][1], 0) },
		"size disagrees":   func(s *State) { s.LayerSizes[1] = 9 },
		"nonpositive size": func(s *State) { s.LayerSizes[3] = 0 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := n.Export()
			mutate(&s)

			err := n.Import(s)

			assert.ErrorIs(t, err, ErrShapeMismatch)
			assert.Equal(t, good, n.Export(), "failed import must leave the network untouched")
		})
	}
}

func TestState_BinaryRoundTrip(t *testing.T) {
	n := newTestNetwork(t, defaultConfig(), 6)
	s := n.Export()

	data, err := s.MarshalBinary()
	require.NoError(t, err)

	var got State
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, s, got)
}
