// Package training 분류층 학습
package training

import (
	"context"
	"fmt"
	"time"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/generator"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/preprocess"
	"go.uber.org/zap"
)

// Training 학습 단계
type Training struct {
	cfg  config.TrainingConfig
	open model.BackboneOpener
	log  *zap.Logger

	model *model.Model
	train *generator.Generator
	valid *generator.Generator
}

// New 학습 단계 생성
func New(log *zap.Logger, cfg config.TrainingConfig, open model.BackboneOpener) *Training {
	if log == nil {
		log = zap.NewNop()
	}
	return &Training{
		cfg:  cfg,
		open: open,
		log:  log,
	}
}

// GetBaseModel 분류층이 추가된 기본 모델 로드
func (t *Training) GetBaseModel() error {
	m, err := model.Load(t.cfg.UpdatedBaseModelPath, t.open)
	if err != nil {
		return err
	}
	if m.Head == nil {
		m.Close()
		return fmt.Errorf("model has no classification head: %s", t.cfg.UpdatedBaseModelPath)
	}

	t.model = m
	return nil
}

func (t *Training) seed() int64 {
	if t.cfg.Seed != nil {
		return *t.cfg.Seed
	}
	if t.model != nil && t.model.Cfg.Seed != 0 {
		return t.model.Cfg.Seed
	}
	return time.Now().UnixNano()
}

// TrainValidGenerator 학습/검증 배치 생성기 구성
func (t *Training) TrainValidGenerator() error {
	dataset, err := generator.Scan(t.cfg.TrainingData, constants.ClassNames)
	if err != nil {
		return err
	}

	train, valid, err := dataset.Split(t.cfg.ValidationSplit)
	if err != nil {
		return err
	}

	seed := t.seed()
	base := generator.Config{
		Height:    t.cfg.ImageSize[0],
		Width:     t.cfg.ImageSize[1],
		BatchSize: t.cfg.BatchSize,
		Seed:      seed,
	}

	t.valid = generator.New(valid, base)

	trainCfg := base
	trainCfg.Shuffle = true
	if t.cfg.Augmentation {
		aug := preprocess.DefaultAugmentation()
		trainCfg.Augmentation = &aug
	}
	t.train = generator.New(train, trainCfg)

	t.log.Info("Found images",
		zap.Int("train", len(train)),
		zap.Int("validation", len(valid)),
		zap.Strings("classes", constants.ClassNames),
		zap.Bool("augmentation", t.cfg.Augmentation))
	return nil
}

// Evaluate 생성기의 전체 데이터에 대한 평균 손실과 정확도
func Evaluate(ctx context.Context, m *model.Model, g *generator.Generator) (model.Metrics, error) {
	if m.Head == nil {
		return model.Metrics{}, fmt.Errorf("model has no classification head: %s", m.Cfg.Name)
	}
	if g.Samples() == 0 {
		return model.Metrics{}, generator.ErrEmptySubset
	}

	var (
		total model.Metrics
		n     int
	)

	for i := 0; i < g.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return model.Metrics{}, err
		}

		images, labels, err := g.Batch(i)
		if err != nil {
			return model.Metrics{}, err
		}
		features, err := m.Features(images)
		if err != nil {
			return model.Metrics{}, err
		}
		metrics, err := m.Head.Evaluate(features, labels)
		if err != nil {
			return model.Metrics{}, err
		}

		total.Loss += metrics.Loss * float64(len(labels))
		total.Accuracy += metrics.Accuracy * float64(len(labels))
		n += len(labels)
	}

	total.Loss /= float64(n)
	total.Accuracy /= float64(n)
	return total, nil
}

func (t *Training) epoch(ctx context.Context) (model.Metrics, error) {
	var (
		total model.Metrics
		n     int
	)

	for step := 0; step < t.train.StepsPerEpoch(); step++ {
		if err := ctx.Err(); err != nil {
			return model.Metrics{}, err
		}

		images, labels, err := t.train.Batch(step)
		if err != nil {
			return model.Metrics{}, err
		}
		features, err := t.model.Features(images)
		if err != nil {
			return model.Metrics{}, err
		}
		metrics, err := t.model.Head.Step(features, labels, t.cfg.LearningRate)
		if err != nil {
			return model.Metrics{}, err
		}

		total.Loss += metrics.Loss * float64(len(labels))
		total.Accuracy += metrics.Accuracy * float64(len(labels))
		n += len(labels)
	}
	t.train.OnEpochEnd()

	total.Loss /= float64(n)
	total.Accuracy /= float64(n)
	return total, nil
}

// Train EPOCHS 동안 분류층 학습 후 trained_model_path와 final_model_path에 저장
func (t *Training) Train(ctx context.Context) error {
	if t.model == nil || t.train == nil {
		return fmt.Errorf("training is not prepared: call GetBaseModel and TrainValidGenerator")
	}

	init, err := Evaluate(ctx, t.model, t.valid)
	if err != nil {
		return err
	}
	t.log.Info("Initial validation", zap.Float64("loss", init.Loss), zap.Float64("accuracy", init.Accuracy))

	result := &model.TrainingResult{
		Epochs:       t.cfg.Epochs,
		InitLoss:     init.Loss,
		InitAccuracy: init.Accuracy,
	}

	for e := 1; e <= t.cfg.Epochs; e++ {
		t0 := time.Now()

		train, err := t.epoch(ctx)
		if err != nil {
			return err
		}
		valid, err := Evaluate(ctx, t.model, t.valid)
		if err != nil {
			return err
		}

		result.TrainLoss = append(result.TrainLoss, train.Loss)
		result.TrainAccuracy = append(result.TrainAccuracy, train.Accuracy)
		result.ValidationLoss = append(result.ValidationLoss, valid.Loss)
		result.ValidationAccuracy = append(result.ValidationAccuracy, valid.Accuracy)

		t.log.Info("Epoch",
			zap.Int("epoch", e),
			zap.Int("epochs", t.cfg.Epochs),
			zap.Int("steps", t.train.StepsPerEpoch()),
			zap.Float64("loss", train.Loss),
			zap.Float64("accuracy", train.Accuracy),
			zap.Float64("val_loss", valid.Loss),
			zap.Float64("val_accuracy", valid.Accuracy),
			zap.Duration("elapsed", time.Since(t0)))
	}

	t.model.Cfg.TrainingResult = result
	t.model.Cfg.LearningRate = t.cfg.LearningRate

	if err := t.model.Save(t.log, t.cfg.TrainedModelPath); err != nil {
		return err
	}
	return t.model.Save(t.log, t.cfg.FinalModelPath)
}

// Main 기본 모델 로드, 생성기 구성, 학습
func (t *Training) Main(ctx context.Context) error {
	if err := t.GetBaseModel(); err != nil {
		return err
	}
	defer t.model.Close()

	if err := t.TrainValidGenerator(); err != nil {
		return err
	}
	return t.Train(ctx)
}
