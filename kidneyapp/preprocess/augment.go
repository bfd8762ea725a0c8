package preprocess

import (
	"image"
	"math"
	"math/rand"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Augmentation 학습 이미지 변형 범위
type Augmentation struct {
	// RotationRange 회전 각도 범위 (도)
	RotationRange float64
	// WidthShift, HeightShift 이미지 크기 대비 이동 비율
	WidthShift  float64
	HeightShift float64
	// ShearRange 전단 각도 범위 (도)
	ShearRange float64
	// ZoomRange [1-z, 1+z] 배율
	ZoomRange      float64
	HorizontalFlip bool
}

// DefaultAugmentation 기본 변형 범위
func DefaultAugmentation() Augmentation {
	return Augmentation{
		RotationRange:  40,
		WidthShift:     0.2,
		HeightShift:    0.2,
		ShearRange:     0.2,
		ZoomRange:      0.2,
		HorizontalFlip: true,
	}
}

func (a Augmentation) identity() bool {
	return a.RotationRange == 0 && a.WidthShift == 0 && a.HeightShift == 0 &&
		a.ShearRange == 0 && a.ZoomRange == 0 && !a.HorizontalFlip
}

// Augmenter 임의의 아핀 변환 적용. 동시 사용 불가
type Augmenter struct {
	aug Augmentation
	rng *rand.Rand
}

// NewAugmenter Augmenter 생성
func NewAugmenter(aug Augmentation, rng *rand.Rand) *Augmenter {
	return &Augmenter{
		aug: aug,
		rng: rng,
	}
}

func (a *Augmenter) uniform(r float64) float64 {
	if r == 0 {
		return 0
	}
	return (a.rng.Float64()*2 - 1) * r
}

// Apply src와 같은 크기의 변형 이미지 반환. 원본 밖의 영역은 0으로 채움
func (a *Augmenter) Apply(src *image.RGBA) *image.RGBA {
	if a.aug.identity() {
		return src
	}

	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	cx, cy := w/2, h/2

	theta := a.uniform(a.aug.RotationRange) * math.Pi / 180
	shear := a.uniform(a.aug.ShearRange) * math.Pi / 180
	tx := a.uniform(a.aug.WidthShift) * w
	ty := a.uniform(a.aug.HeightShift) * h
	zx := 1 + a.uniform(a.aug.ZoomRange)
	zy := 1 + a.uniform(a.aug.ZoomRange)
	flip := 1.0
	if a.aug.HorizontalFlip && a.rng.Intn(2) == 1 {
		flip = -1
	}

	// 중심 이동 -> 반전 -> 확대 -> 전단 -> 회전 -> 이동 순서
	m := translate(-cx, -cy)
	m = mul(scale(flip, 1), m)
	m = mul(scale(zx, zy), m)
	m = mul(f64.Aff3{1, -math.Sin(shear), 0, 0, math.Cos(shear), 0}, m)
	m = mul(rotate(theta), m)
	m = mul(translate(cx+tx, cy+ty), m)

	dst := image.NewRGBA(b)
	draw.BiLinear.Transform(dst, m, src, b, draw.Src, nil)
	return dst
}

func translate(x, y float64) f64.Aff3 {
	return f64.Aff3{1, 0, x, 0, 1, y}
}

func scale(x, y float64) f64.Aff3 {
	return f64.Aff3{x, 0, 0, 0, y, 0}
}

func rotate(theta float64) f64.Aff3 {
	c, s := math.Cos(theta), math.Sin(theta)
	return f64.Aff3{c, -s, 0, s, c, 0}
}

// mul a∘b (b를 먼저 적용)
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}
}
