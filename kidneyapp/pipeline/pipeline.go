// Package pipeline 단계별 실행 구성 및 순차 실행
package pipeline

import (
	"context"
	"fmt"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/basemodel"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/evaluation"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/ingestion"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/training"
	"go.uber.org/zap"
)

// Stage 실행 단계
type Stage interface {
	Main(ctx context.Context) error
}

// Pipeline 이름과 단계 생성 함수
type Pipeline struct {
	Name  string
	Build func() (Stage, error)
}

// Deps 단계 생성에 필요한 공통 의존성
type Deps struct {
	Log        *zap.Logger
	ConfigFile string
	ParamsFile string
	Open       model.BackboneOpener
	// Fetcher nil이면 기본 Fetcher
	Fetcher *ingestion.Fetcher
}

func (d Deps) manager() (*config.Manager, error) {
	return config.NewManager(d.Log, d.ConfigFile, d.ParamsFile)
}

// DataIngestion 데이터 수집 단계
func DataIngestion(d Deps) Pipeline {
	return Pipeline{
		Name: "Data Ingestion",
		Build: func() (Stage, error) {
			m, err := d.manager()
			if err != nil {
				return nil, err
			}
			cfg, err := m.DataIngestionConfig()
			if err != nil {
				return nil, err
			}
			return ingestion.New(d.Log, cfg, d.Fetcher), nil
		},
	}
}

// PrepareBaseModel 기본 모델 준비 단계
func PrepareBaseModel(d Deps) Pipeline {
	return Pipeline{
		Name: "Prepare Base Model",
		Build: func() (Stage, error) {
			m, err := d.manager()
			if err != nil {
				return nil, err
			}
			cfg, err := m.PrepareBaseModelConfig()
			if err != nil {
				return nil, err
			}
			return basemodel.New(d.Log, cfg, d.Open, d.Fetcher), nil
		},
	}
}

// Training 학습 단계
func Training(d Deps) Pipeline {
	return Pipeline{
		Name: "Training",
		Build: func() (Stage, error) {
			m, err := d.manager()
			if err != nil {
				return nil, err
			}
			cfg, err := m.TrainingConfig()
			if err != nil {
				return nil, err
			}
			return training.New(d.Log, cfg, d.Open), nil
		},
	}
}

// Evaluation 평가 단계
func Evaluation(d Deps) Pipeline {
	return Pipeline{
		Name: "Evaluation",
		Build: func() (Stage, error) {
			m, err := d.manager()
			if err != nil {
				return nil, err
			}
			cfg, err := m.EvaluationConfig()
			if err != nil {
				return nil, err
			}
			return evaluation.New(d.Log, cfg, d.Open), nil
		},
	}
}

// Stages 수집, 기본 모델 준비, 학습 순서의 전체 단계
func Stages(d Deps) []Pipeline {
	return []Pipeline{
		DataIngestion(d),
		PrepareBaseModel(d),
		Training(d),
	}
}

// Run 단계 하나 실행
func Run(ctx context.Context, log *zap.Logger, p Pipeline) error {
	if log == nil {
		log = zap.NewNop()
	}

	log.Info(fmt.Sprintf(">>>>>> stage %s started <<<<<<", p.Name))

	stage, err := p.Build()
	if err == nil {
		err = stage.Main(ctx)
	}
	if err != nil {
		log.Error("Stage failed", zap.String("stage", p.Name), zap.Error(err))
		return fmt.Errorf("%s: %w", p.Name, err)
	}

	log.Info(fmt.Sprintf(">>>>>> stage %s completed <<<<<<\n\nx==========x", p.Name))
	return nil
}

// RunAll 단계를 순서대로 실행. 첫 실패에서 중단
func RunAll(ctx context.Context, log *zap.Logger, pipelines ...Pipeline) error {
	for _, p := range pipelines {
		if err := Run(ctx, log, p); err != nil {
			return err
		}
	}
	return nil
}
