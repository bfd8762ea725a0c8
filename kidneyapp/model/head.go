package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch 입력 크기가 모델과 맞지 않음
var ErrShapeMismatch = errors.New("shape mismatch")

// Head backbone 특징 벡터 위의 dense + softmax 분류층
type Head struct {
	Classes  int       `cbor:"classes"`
	Features int       `cbor:"features"`
	Weights  []float64 `cbor:"weights"` // Classes x Features (row-major)
	Bias     []float64 `cbor:"bias"`
}

// NewHead Glorot uniform 초기화된 분류층 생성
func NewHead(classes, features int, rng *rand.Rand) *Head {
	limit := math.Sqrt(6 / float64(classes+features))

	w := make([]float64, classes*features)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}

	return &Head{
		Classes:  classes,
		Features: features,
		Weights:  w,
		Bias:     make([]float64, classes),
	}
}

func (h *Head) weights() *mat.Dense {
	return mat.NewDense(h.Classes, h.Features, h.Weights)
}

func (h *Head) inputs(features [][]float32) (*mat.Dense, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}

	x := mat.NewDense(len(features), h.Features, nil)
	for i, f := range features {
		if len(f) != h.Features {
			return nil, fmt.Errorf("%w: features %d, head expects %d", ErrShapeMismatch, len(f), h.Features)
		}
		row := x.RawRowView(i)
		for j, v := range f {
			row[j] = float64(v)
		}
	}
	return x, nil
}

// probabilities softmax(X Wᵀ + b)
func (h *Head) probabilities(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()

	var p mat.Dense
	p.Mul(x, h.weights().T())
	for i := 0; i < n; i++ {
		row := p.RawRowView(i)
		floats.Add(row, h.Bias)
		softmax(row)
	}
	return &p
}

func softmax(row []float64) {
	max := floats.Max(row)
	var sum float64
	for i, v := range row {
		row[i] = math.Exp(v - max)
		sum += row[i]
	}
	floats.Scale(1/sum, row)
}

// Forward 배치의 클래스별 확률 반환
func (h *Head) Forward(features [][]float32) ([][]float64, error) {
	x, err := h.inputs(features)
	if err != nil {
		return nil, err
	}

	p := h.probabilities(x)
	n, _ := p.Dims()
	probs := make([][]float64, n)
	for i := range probs {
		probs[i] = mat.Row(nil, i, p)
	}
	return probs, nil
}

// Metrics 손실과 정확도
type Metrics struct {
	Loss     float64 `json:"loss" yaml:"loss"`
	Accuracy float64 `json:"accuracy" yaml:"accuracy"`
}

func (h *Head) checkLabels(labels []int, n int) error {
	if len(labels) != n {
		return fmt.Errorf("%w: %d labels for %d samples", ErrShapeMismatch, len(labels), n)
	}
	for _, l := range labels {
		if l < 0 || l >= h.Classes {
			return fmt.Errorf("%w: label %d out of %d classes", ErrShapeMismatch, l, h.Classes)
		}
	}
	return nil
}

func metrics(p *mat.Dense, labels []int) Metrics {
	var m Metrics
	for i, l := range labels {
		row := p.RawRowView(i)
		m.Loss -= math.Log(math.Max(row[l], 1e-12))
		if floats.MaxIdx(row) == l {
			m.Accuracy++
		}
	}
	n := float64(len(labels))
	m.Loss /= n
	m.Accuracy /= n
	return m
}

// Evaluate 배치의 cross-entropy 손실과 정확도
func (h *Head) Evaluate(features [][]float32, labels []int) (Metrics, error) {
	x, err := h.inputs(features)
	if err != nil {
		return Metrics{}, err
	}
	if err := h.checkLabels(labels, len(features)); err != nil {
		return Metrics{}, err
	}
	return metrics(h.probabilities(x), labels), nil
}

// Step 배치 하나로 SGD 갱신. 갱신 전 기준 손실과 정확도 반환
func (h *Head) Step(features [][]float32, labels []int, lr float64) (Metrics, error) {
	x, err := h.inputs(features)
	if err != nil {
		return Metrics{}, err
	}
	if err := h.checkLabels(labels, len(features)); err != nil {
		return Metrics{}, err
	}

	p := h.probabilities(x)
	m := metrics(p, labels)

	// dL/dlogits = (p - onehot) / n
	n := float64(len(labels))
	for i, l := range labels {
		row := p.RawRowView(i)
		row[l]--
		floats.Scale(1/n, row)
	}

	var gw mat.Dense
	gw.Mul(p.T(), x)
	w := h.weights()
	w.Sub(w, scaled(lr, &gw))

	for c := 0; c < h.Classes; c++ {
		h.Bias[c] -= lr * floats.Sum(mat.Col(nil, c, p))
	}

	return m, nil
}

func scaled(f float64, m mat.Matrix) *mat.Dense {
	var s mat.Dense
	s.Scale(f, m)
	return &s
}
