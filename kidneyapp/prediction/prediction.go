// Package prediction 학습된 모델로 이미지 한 장 분류
package prediction

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/preprocess"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Result 분류 결과. Confidence는 [0, 100] 백분율
type Result struct {
	PredictedClass string  `json:"predicted_class"`
	Confidence     float64 `json:"confidence"`
}

// Classify 확률이 가장 높은 클래스와 그 확률(%) 반환
func Classify(probs []float64) Result {
	if len(probs) == 0 {
		return Result{PredictedClass: constants.UnknownClass}
	}

	idx := floats.MaxIdx(probs)
	return Result{
		PredictedClass: constants.ClassName(idx),
		Confidence:     probs[idx] * 100,
	}
}

// PredictionPipeline 최종 모델 추론
type PredictionPipeline struct {
	cfg  config.PredictionConfig
	open model.BackboneOpener
	log  *zap.Logger
}

// New 추론 파이프라인 생성
func New(log *zap.Logger, cfg config.PredictionConfig, open model.BackboneOpener) *PredictionPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &PredictionPipeline{
		cfg:  cfg,
		open: open,
		log:  log,
	}
}

// Predict imagePath 이미지 분류. 호출마다 모델을 새로 로드
func (p *PredictionPipeline) Predict(imagePath string) (Result, error) {
	m, err := model.Load(p.cfg.ModelPath, p.open)
	if err != nil {
		return Result{}, err
	}
	defer m.Close()

	img, err := preprocess.Load(imagePath, p.cfg.ImageSize[0], p.cfg.ImageSize[1])
	if err != nil {
		return Result{}, err
	}

	probs, err := m.Predict(img)
	if err != nil {
		return Result{}, err
	}

	result := Classify(probs)
	p.log.Info("Predicted",
		zap.String("image", imagePath),
		zap.String("class", result.PredictedClass),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}

// ModelID 최종 모델 식별자. 모델 config.yaml의 수정 시각
func (p *PredictionPipeline) ModelID() (string, error) {
	info, err := os.Stat(filepath.Join(p.cfg.ModelPath, constants.ModelConfigFile))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 36), nil
}
