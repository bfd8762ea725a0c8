// Package evaluation 학습된 모델 평가 및 기록
package evaluation

import (
	"context"
	"path/filepath"
	"time"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/generator"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/tracking"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/training"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/utils"
	"go.uber.org/zap"
)

const defaultTrackingDB = "tracking.db"

// Evaluation 평가 단계
type Evaluation struct {
	cfg  config.EvaluationConfig
	open model.BackboneOpener
	log  *zap.Logger

	model *model.Model
	valid *generator.Generator
	score model.Metrics
}

// New 평가 단계 생성
func New(log *zap.Logger, cfg config.EvaluationConfig, open model.BackboneOpener) *Evaluation {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluation{
		cfg:  cfg,
		open: open,
		log:  log,
	}
}

// validGenerator 학습 때와 같은 분할의 검증 데이터
func (e *Evaluation) validGenerator() error {
	dataset, err := generator.Scan(e.cfg.TrainingData, constants.ClassNames)
	if err != nil {
		return err
	}
	_, valid, err := dataset.Split(e.cfg.ValidationSplit)
	if err != nil {
		return err
	}

	e.valid = generator.New(valid, generator.Config{
		Height:    e.cfg.ImageSize[0],
		Width:     e.cfg.ImageSize[1],
		BatchSize: e.cfg.BatchSize,
	})
	return nil
}

// Evaluate 학습된 모델의 검증 손실과 정확도 계산
func (e *Evaluation) Evaluate(ctx context.Context) (model.Metrics, error) {
	m, err := model.Load(e.cfg.ModelPath, e.open)
	if err != nil {
		return model.Metrics{}, err
	}
	defer m.Close()
	e.model = m

	if err := e.validGenerator(); err != nil {
		return model.Metrics{}, err
	}

	score, err := training.Evaluate(ctx, m, e.valid)
	if err != nil {
		return model.Metrics{}, err
	}
	e.score = score

	e.log.Info("Evaluated",
		zap.String("model", m.Cfg.Name),
		zap.Float64("loss", score.Loss),
		zap.Float64("accuracy", score.Accuracy))
	return score, nil
}

// SaveScore scores.json 저장
func (e *Evaluation) SaveScore() error {
	return utils.SaveJSON(e.log, e.cfg.ScoresFile, e.score)
}

// LogIntoTracking 평가 결과와 파라미터를 추적 테이블에 기록
func (e *Evaluation) LogIntoTracking() error {
	dsn := e.cfg.Tracking.DSN
	if dsn == "" {
		dsn = filepath.Join(e.cfg.RootDir, defaultTrackingDB)
	}

	conn, err := tracking.New(e.log, tracking.Config{
		DriverName: e.cfg.Tracking.Driver,
		ConnInfo:   dsn,
		TableName:  e.cfg.Tracking.Table,
	})
	if err != nil {
		return err
	}
	defer conn.Destroy()

	name := ""
	if e.model != nil {
		name = e.model.Cfg.Name
	}

	return conn.Insert(tracking.Score{
		Model:    name,
		Loss:     e.score.Loss,
		Accuracy: e.score.Accuracy,
		Params:   e.cfg.AllParams,
		CreateAt: time.Now(),
	})
}

// Main 평가, 점수 저장, 기록
func (e *Evaluation) Main(ctx context.Context) error {
	if _, err := e.Evaluate(ctx); err != nil {
		return err
	}
	if err := e.SaveScore(); err != nil {
		return err
	}
	return e.LogIntoTracking()
}
