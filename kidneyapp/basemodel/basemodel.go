// Package basemodel 사전학습 backbone 준비 및 분류층 추가
package basemodel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/ingestion"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/preprocess"
	"go.uber.org/zap"
)

// savedModelFile SavedModel 디렉토리 식별 파일
const savedModelFile = "saved_model.pb"

// ErrNoPretrainedModel 사전학습 모델이 없고 다운로드 주소도 없음
var ErrNoPretrainedModel = errors.New("no pretrained model")

// PrepareBaseModel 기본 모델 준비 단계
type PrepareBaseModel struct {
	cfg     config.PrepareBaseModelConfig
	open    model.BackboneOpener
	fetcher *ingestion.Fetcher
	log     *zap.Logger
}

// New 기본 모델 준비 단계 생성
func New(log *zap.Logger, cfg config.PrepareBaseModelConfig, open model.BackboneOpener, fetcher *ingestion.Fetcher) *PrepareBaseModel {
	if log == nil {
		log = zap.NewNop()
	}
	if fetcher == nil {
		fetcher = ingestion.NewFetcher(log)
	}
	return &PrepareBaseModel{
		cfg:     cfg,
		open:    open,
		fetcher: fetcher,
		log:     log,
	}
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// pretrained SavedModel 디렉토리. 없으면 pretrained_model_url에서 받아 압축 해제
func (p *PrepareBaseModel) pretrained(ctx context.Context) (string, error) {
	dir := p.cfg.PretrainedModelDir

	ok, err := exists(filepath.Join(dir, savedModelFile))
	if err != nil || ok {
		return dir, err
	}

	if p.cfg.PretrainedModelURL == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPretrainedModel, dir)
	}

	archive := dir + ".tar.gz"
	if err := p.fetcher.Fetch(ctx, p.cfg.PretrainedModelURL, archive); err != nil {
		return "", err
	}
	if err := ingestion.Extract(archive, dir); err != nil {
		return "", err
	}
	if err := os.Remove(archive); err != nil {
		return "", err
	}

	if ok, err := exists(filepath.Join(dir, savedModelFile)); err != nil {
		return "", err
	} else if !ok {
		return "", fmt.Errorf("%w: %s has no %s", ErrNoPretrainedModel, dir, savedModelFile)
	}

	return dir, nil
}

func (p *PrepareBaseModel) modelConfig() model.Config {
	shape := make([]int32, len(p.cfg.ImageSize))
	for i, v := range p.cfg.ImageSize {
		shape[i] = int32(v)
	}

	return model.Config{
		Name:                fmt.Sprintf("kidney-%s", uuid.New().String()[:8]),
		Type:                "transfer-learning",
		Tags:                p.cfg.Tags,
		InputShape:          shape,
		InputOperationName:  p.cfg.InputOperation,
		OutputOperationName: p.cfg.OutputOperation,
		LearningRate:        p.cfg.LearningRate,
		Description:         "Frozen pretrained backbone for kidney CT classification",
	}
}

// GetBaseModel 사전학습 backbone을 base_model_path에 저장
func (p *PrepareBaseModel) GetBaseModel(ctx context.Context) error {
	src, err := p.pretrained(ctx)
	if err != nil {
		return err
	}

	m := model.New(p.modelConfig(), constants.ClassNames, src)
	if err := m.Save(p.log, p.cfg.BaseModelPath); err != nil {
		return err
	}

	p.log.Info("Base model prepared",
		zap.String("model", m.Cfg.Name), zap.String("path", p.cfg.BaseModelPath))
	return nil
}

func (p *PrepareBaseModel) seed() int64 {
	if p.cfg.Seed != nil {
		return *p.cfg.Seed
	}
	seed := time.Now().UnixNano()
	p.log.Info("SEED is not set, generated", zap.Int64("seed", seed))
	return seed
}

// UpdateBaseModel backbone 특징 크기에 맞는 분류층을 붙여 updated_base_model_path에 저장
func (p *PrepareBaseModel) UpdateBaseModel() error {
	m, err := model.Load(p.cfg.BaseModelPath, p.open)
	if err != nil {
		return err
	}
	defer m.Close()

	// 검은 이미지로 backbone 출력 크기 확인
	h, w := m.InputSize()
	features, err := m.Features([]preprocess.Image{preprocess.Zero(h, w)})
	if err != nil {
		return err
	}
	if len(features) != 1 || len(features[0]) == 0 {
		return fmt.Errorf("%w: backbone returned no features", model.ErrShapeMismatch)
	}

	seed := p.seed()
	m.Head = model.NewHead(p.cfg.Classes, len(features[0]), rand.New(rand.NewSource(seed)))
	m.Cfg.Seed = seed
	m.Cfg.LearningRate = p.cfg.LearningRate

	if err := m.Save(p.log, p.cfg.UpdatedBaseModelPath); err != nil {
		return err
	}

	p.log.Info("Base model updated",
		zap.String("model", m.Cfg.Name),
		zap.Int("features", m.Head.Features),
		zap.Int("classes", m.Head.Classes),
		zap.String("path", p.cfg.UpdatedBaseModelPath))
	return nil
}

// Main 기본 모델 준비 후 분류층 추가
func (p *PrepareBaseModel) Main(ctx context.Context) error {
	if err := p.GetBaseModel(ctx); err != nil {
		return err
	}
	return p.UpdateBaseModel()
}
