package model

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/preprocess"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

const multiClass = "multi"

// TrainingResult 학습 결과
type TrainingResult struct {
	Epochs             int       `yaml:"epochs"`
	InitLoss           float64   `yaml:"initLoss"`
	InitAccuracy       float64   `yaml:"initAccuracy"`
	TrainLoss          []float64 `yaml:"trainLoss,omitempty"`
	TrainAccuracy      []float64 `yaml:"trainAccuracy,omitempty"`
	ValidationLoss     []float64 `yaml:"validationLoss,omitempty"`
	ValidationAccuracy []float64 `yaml:"validationAccuracy,omitempty"`
}

// Config 모델 디렉토리의 config.yaml
type Config struct {
	Name                string          `yaml:"name"`
	Type                string          `yaml:"type"`
	Tags                []string        `yaml:"tags"`
	Classification      string          `yaml:"classification"`
	InputShape          []int32         `yaml:"inputShape"`
	InputOperationName  string          `yaml:"inputOperationName"`
	OutputOperationName string          `yaml:"outputOperationName"`
	LabelsFile          string          `yaml:"labelsFile"`
	HeadFile            string          `yaml:"headFile,omitempty"`
	BackboneDir         string          `yaml:"backboneDir"`
	Seed                int64           `yaml:"seed,omitempty"`
	LearningRate        float64         `yaml:"learningRate,omitempty"`
	TrainingResult      *TrainingResult `yaml:"trainingResult,omitempty"`
	Description         string          `yaml:"description"`
}

// Backbone 가중치가 고정된 사전학습 특징 추출기
type Backbone interface {
	// Features 이미지 배치의 특징 벡터 반환
	Features(images []preprocess.Image) ([][]float32, error)
	Close() error
}

// BackboneOpener backbone 디렉토리를 열어 Backbone 생성
type BackboneOpener func(dir string, cfg Config) (Backbone, error)

// Model backbone과 분류층으로 구성된 모델 산출물
type Model struct {
	Cfg    Config
	Labels []string
	// Head 분류층을 붙이기 전 기본 모델은 nil
	Head *Head

	path        string
	backboneSrc string
	backbone    Backbone
}

// New 새 모델. backboneSrc의 SavedModel은 저장 시 모델 디렉토리로 복사
func New(cfg Config, labels []string, backboneSrc string) *Model {
	if cfg.Classification == "" {
		cfg.Classification = multiClass
	}
	if cfg.LabelsFile == "" {
		cfg.LabelsFile = constants.LabelsFile
	}
	cfg.BackboneDir = constants.BackboneDir

	return &Model{
		Cfg:         cfg,
		Labels:      labels,
		backboneSrc: backboneSrc,
	}
}

// Load 모델 디렉토리 로드. open이 nil이면 backbone은 열지 않음
func Load(path string, open BackboneOpener) (*Model, error) {
	var (
		cfgBytes []byte
		cfg      Config
		labels   []string
		err      error
	)

	// config 로드
	cfgFile := filepath.Join(path, constants.ModelConfigFile)
	if cfgBytes, err = ioutil.ReadFile(cfgFile); err != nil {
		return nil, fmt.Errorf("Fail to load model: %w", err)
	}
	if err := yaml.Unmarshal(cfgBytes, &cfg); err != nil {
		return nil, fmt.Errorf("Fail to parse model config: %s: %w", cfgFile, err)
	}
	if len(cfg.InputShape) < 2 {
		return nil, fmt.Errorf("%w: inputShape %v", ErrShapeMismatch, cfg.InputShape)
	}

	// labels 로드
	if labels, err = readLabels(filepath.Join(path, cfg.LabelsFile)); err != nil {
		return nil, err
	}

	m := &Model{
		Cfg:         cfg,
		Labels:      labels,
		path:        path,
		backboneSrc: filepath.Join(path, cfg.BackboneDir),
	}

	// head 로드
	if cfg.HeadFile != "" {
		var head Head
		if err := utils.LoadBin(nil, filepath.Join(path, cfg.HeadFile), &head); err != nil {
			return nil, err
		}
		if head.Classes != len(labels) || len(head.Weights) != head.Classes*head.Features {
			return nil, fmt.Errorf("%w: head %dx%d, %d labels",
				ErrShapeMismatch, head.Classes, head.Features, len(labels))
		}
		m.Head = &head
	}

	if open != nil {
		if err := m.Open(open); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func readLabels(path string) ([]string, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	var labels []string
	scanner := bufio.NewScanner(fp)
	for scanner.Scan() {
		if l := strings.TrimSpace(scanner.Text()); l != "" {
			labels = append(labels, l)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// Open backbone 열기
func (m *Model) Open(open BackboneOpener) error {
	if m.backbone != nil {
		return nil
	}
	b, err := open(m.backboneSrc, m.Cfg)
	if err != nil {
		return fmt.Errorf("Fail to open backbone: %s: %w", m.backboneSrc, err)
	}
	m.backbone = b
	return nil
}

// InputSize 입력 이미지 크기 (height, width)
func (m *Model) InputSize() (int, int) {
	return int(m.Cfg.InputShape[0]), int(m.Cfg.InputShape[1])
}

// Features backbone 특징 벡터
func (m *Model) Features(images []preprocess.Image) ([][]float32, error) {
	if m.backbone == nil {
		return nil, fmt.Errorf("backbone is not opened: %s", m.backboneSrc)
	}
	h, w := m.InputSize()
	for _, img := range images {
		if img.Height != h || img.Width != w || len(img.Data) != h*w*3 {
			return nil, fmt.Errorf("%w: image %dx%d, model input %dx%d",
				ErrShapeMismatch, img.Height, img.Width, h, w)
		}
	}
	return m.backbone.Features(images)
}

// PredictBatch 이미지 배치의 클래스별 확률
func (m *Model) PredictBatch(images []preprocess.Image) ([][]float64, error) {
	if m.Head == nil {
		return nil, fmt.Errorf("model has no classification head: %s", m.Cfg.Name)
	}
	features, err := m.Features(images)
	if err != nil {
		return nil, err
	}
	return m.Head.Forward(features)
}

// Predict 이미지 한 장의 클래스별 확률
func (m *Model) Predict(img preprocess.Image) ([]float64, error) {
	probs, err := m.PredictBatch([]preprocess.Image{img})
	if err != nil {
		return nil, err
	}
	return probs[0], nil
}

// Save 모델 디렉토리 저장. config.yaml을 마지막에 기록하므로
// 중간에 실패한 디렉토리는 Load 되지 않음
func (m *Model) Save(log *zap.Logger, path string) error {
	if log == nil {
		log = zap.NewNop()
	}

	same, err := samePath(m.path, path)
	if err != nil {
		return err
	}

	if !same {
		if err := os.RemoveAll(path); err != nil {
			return err
		}
		if err := os.MkdirAll(path, os.ModePerm); err != nil {
			return err
		}
		if err := utils.CopyDir(m.backboneSrc, filepath.Join(path, constants.BackboneDir)); err != nil {
			return fmt.Errorf("Fail to copy backbone: %w", err)
		}
	}

	cfg := m.Cfg
	cfg.BackboneDir = constants.BackboneDir
	cfg.HeadFile = ""
	if m.Head != nil {
		cfg.HeadFile = constants.HeadFile
		if err := utils.SaveBin(log, filepath.Join(path, cfg.HeadFile), m.Head); err != nil {
			return err
		}
	}

	labels := strings.Join(m.Labels, "\n") + "\n"
	if err := ioutil.WriteFile(filepath.Join(path, cfg.LabelsFile), []byte(labels), 0644); err != nil {
		return err
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(filepath.Join(path, constants.ModelConfigFile), b, 0644); err != nil {
		return err
	}

	log.Info("Model saved", zap.String("model", cfg.Name), zap.String("path", path))
	return nil
}

func samePath(a, b string) (bool, error) {
	if a == "" {
		return false, nil
	}
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

// Close backbone 해제
func (m *Model) Close() error {
	if m.backbone == nil {
		return nil
	}
	err := m.backbone.Close()
	m.backbone = nil
	return err
}
