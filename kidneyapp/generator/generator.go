// Package generator 클래스별 디렉토리로 구성된 이미지 데이터셋의 배치 생성
package generator

import (
	"errors"
	"fmt"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/preprocess"
)

// ErrClassMismatch 데이터셋의 클래스 디렉토리가 라벨과 다름
var ErrClassMismatch = errors.New("class directories do not match labels")

// ErrEmptySubset 학습 또는 검증 데이터가 없음
var ErrEmptySubset = errors.New("empty subset")

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Sample 이미지 경로와 라벨 인덱스
type Sample struct {
	Path  string
	Label int
}

// Dataset 클래스별로 정렬된 이미지 목록
type Dataset struct {
	Classes []string
	// byClass 클래스 인덱스별 파일 경로 (이름순)
	byClass [][]string
}

// Scan dir의 하위 디렉토리를 클래스로 하는 데이터셋 구성.
// 하위 디렉토리 이름은 classes와 정확히 일치해야 함
func Scan(dir string, classes []string) (*Dataset, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var found []string
	for _, e := range entries {
		if e.IsDir() {
			found = append(found, e.Name())
		}
	}
	sort.Strings(found)

	want := append([]string(nil), classes...)
	sort.Strings(want)
	if strings.Join(found, ",") != strings.Join(want, ",") {
		return nil, fmt.Errorf("%w: %s has %v, labels are %v", ErrClassMismatch, dir, found, classes)
	}

	d := &Dataset{
		Classes: classes,
		byClass: make([][]string, len(classes)),
	}
	for idx, class := range classes {
		files, err := ioutil.ReadDir(filepath.Join(dir, class))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || !imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			d.byClass[idx] = append(d.byClass[idx], filepath.Join(dir, class, f.Name()))
		}
	}

	return d, nil
}

// Len 전체 이미지 수
func (d *Dataset) Len() int {
	n := 0
	for _, files := range d.byClass {
		n += len(files)
	}
	return n
}

// Split 클래스마다 앞쪽 validation 비율을 검증용, 나머지를 학습용으로 분할
func (d *Dataset) Split(validation float64) (train []Sample, valid []Sample, err error) {
	for label, files := range d.byClass {
		n := int(validation * float64(len(files)))
		for i, path := range files {
			s := Sample{Path: path, Label: label}
			if i < n {
				valid = append(valid, s)
			} else {
				train = append(train, s)
			}
		}
	}

	if len(train) == 0 {
		return nil, nil, fmt.Errorf("%w: no training images", ErrEmptySubset)
	}
	if len(valid) == 0 {
		return nil, nil, fmt.Errorf("%w: no validation images (split %v)", ErrEmptySubset, validation)
	}
	return train, valid, nil
}

// Config 배치 생성 설정
type Config struct {
	Height    int
	Width     int
	BatchSize int
	Shuffle   bool
	// Augmentation nil이면 변형하지 않음
	Augmentation *preprocess.Augmentation
	Seed         int64
}

// Generator 배치 단위로 이미지를 읽어 모델 입력으로 변환
type Generator struct {
	cfg     Config
	samples []Sample
	order   []int
	rng     *rand.Rand
	aug     *preprocess.Augmenter
}

// New Generator 생성. Shuffle이면 첫 epoch 순서도 섞음
func New(samples []Sample, cfg Config) *Generator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	g := &Generator{
		cfg:     cfg,
		samples: samples,
		order:   make([]int, len(samples)),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
	for i := range g.order {
		g.order[i] = i
	}
	if cfg.Augmentation != nil {
		g.aug = preprocess.NewAugmenter(*cfg.Augmentation, rand.New(rand.NewSource(cfg.Seed+1)))
	}
	g.shuffle()

	return g
}

func (g *Generator) shuffle() {
	if !g.cfg.Shuffle {
		return
	}
	g.rng.Shuffle(len(g.order), func(i, j int) {
		g.order[i], g.order[j] = g.order[j], g.order[i]
	})
}

// Samples 이미지 수
func (g *Generator) Samples() int {
	return len(g.samples)
}

// BatchSize 배치 크기
func (g *Generator) BatchSize() int {
	return g.cfg.BatchSize
}

// Len 한 epoch의 배치 수 (마지막 배치는 작을 수 있음)
func (g *Generator) Len() int {
	return (len(g.samples) + g.cfg.BatchSize - 1) / g.cfg.BatchSize
}

// StepsPerEpoch 학습 시 epoch당 배치 수. samples / batch, 최소 1
func (g *Generator) StepsPerEpoch() int {
	steps := len(g.samples) / g.cfg.BatchSize
	if steps < 1 {
		steps = 1
	}
	return steps
}

// Batch i번째 배치의 이미지와 라벨
func (g *Generator) Batch(i int) ([]preprocess.Image, []int, error) {
	if i < 0 || i >= g.Len() {
		return nil, nil, fmt.Errorf("batch index %d out of range [0, %d)", i, g.Len())
	}

	start := i * g.cfg.BatchSize
	end := start + g.cfg.BatchSize
	if end > len(g.order) {
		end = len(g.order)
	}

	images := make([]preprocess.Image, 0, end-start)
	labels := make([]int, 0, end-start)
	for _, idx := range g.order[start:end] {
		s := g.samples[idx]
		img, err := g.load(s.Path)
		if err != nil {
			return nil, nil, err
		}
		images = append(images, img)
		labels = append(labels, s.Label)
	}

	return images, labels, nil
}

func (g *Generator) load(path string) (preprocess.Image, error) {
	src, err := preprocess.DecodeFile(path)
	if err != nil {
		return preprocess.Image{}, err
	}
	img := preprocess.Resize(src, g.cfg.Height, g.cfg.Width)
	if g.aug != nil {
		img = g.aug.Apply(img)
	}
	return preprocess.Normalize(img), nil
}

// OnEpochEnd epoch 종료 시 순서 재배치
func (g *Generator) OnEpochEnd() {
	g.shuffle()
}
