package model

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gotest.tools/v3/assert"
)

func separable(rng *rand.Rand, n int) ([][]float32, []int) {
	features := make([][]float32, n)
	labels := make([]int, n)
	for i := range features {
		c := i % 4
		f := make([]float32, 4)
		for j := range f {
			f[j] = float32(rng.Float64() * 0.1)
		}
		f[c] += 1
		features[i] = f
		labels[i] = c
	}
	return features, labels
}

func TestHeadForwardSumsToOne(t *testing.T) {
	h := NewHead(4, 3, rand.New(rand.NewSource(1)))
	probs, err := h.Forward([][]float32{{1, 2, 3}, {0, 0, 0}})
	assert.NilError(t, err)
	assert.Equal(t, len(probs), 2)
	for _, p := range probs {
		assert.Equal(t, len(p), 4)
		var sum float64
		for _, v := range p {
			assert.Assert(t, v >= 0 && v <= 1)
			sum += v
		}
		assert.Assert(t, math.Abs(sum-1) < 1e-9)
	}
}

func TestHeadZeroWeightsIsUniform(t *testing.T) {
	h := &Head{Classes: 4, Features: 2, Weights: make([]float64, 8), Bias: make([]float64, 4)}
	probs, err := h.Forward([][]float32{{5, -3}})
	assert.NilError(t, err)
	for _, v := range probs[0] {
		assert.Assert(t, math.Abs(v-0.25) < 1e-12)
	}
}

func TestHeadShapeMismatch(t *testing.T) {
	h := NewHead(4, 3, rand.New(rand.NewSource(1)))

	_, err := h.Forward([][]float32{{1, 2}})
	assert.Assert(t, errors.Is(err, ErrShapeMismatch))

	_, err = h.Forward(nil)
	assert.Assert(t, errors.Is(err, ErrShapeMismatch))

	_, err = h.Evaluate([][]float32{{1, 2, 3}}, []int{4})
	assert.Assert(t, errors.Is(err, ErrShapeMismatch))

	_, err = h.Step([][]float32{{1, 2, 3}}, []int{0, 1}, 0.1)
	assert.Assert(t, errors.Is(err, ErrShapeMismatch))
}

func TestHeadLearnsSeparableData(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	features, labels := separable(rng, 64)
	h := NewHead(4, 4, rng)

	before, err := h.Evaluate(features, labels)
	assert.NilError(t, err)

	for epoch := 0; epoch < 200; epoch++ {
		for i := 0; i < len(features); i += 16 {
			_, err := h.Step(features[i:i+16], labels[i:i+16], 0.5)
			assert.NilError(t, err)
		}
	}

	after, err := h.Evaluate(features, labels)
	assert.NilError(t, err)
	assert.Assert(t, after.Loss < before.Loss, "loss %v -> %v", before.Loss, after.Loss)
	assert.Equal(t, after.Accuracy, 1.0)
}

func TestNewHeadDeterministic(t *testing.T) {
	a := NewHead(4, 8, rand.New(rand.NewSource(42)))
	b := NewHead(4, 8, rand.New(rand.NewSource(42)))
	assert.DeepEqual(t, a, b)

	limit := math.Sqrt(6.0 / 12)
	for _, w := range a.Weights {
		assert.Assert(t, math.Abs(w) <= limit)
	}
}
