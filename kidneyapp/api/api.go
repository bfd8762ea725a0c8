// Package api 추론 및 학습 HTTP 핸들러
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/cache"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/prediction"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/preprocess"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/utils"
	"go.uber.org/zap"
)

// Predictor 이미지 파일 분류
type Predictor interface {
	Predict(imagePath string) (prediction.Result, error)
	// ModelID 현재 모델 식별자. 재학습 후 바뀜
	ModelID() (string, error)
}

// Trainer 학습 파이프라인 실행
type Trainer func(ctx context.Context) error

// APIs api 핸들러
type APIs struct {
	P Predictor
	T Trainer
	// C nil이면 캐시 사용 안 함
	C           cache.Cache
	UploadsPath string
	Log         *zap.Logger

	trainMu sync.Mutex
}

// PredictRequest base64 이미지 추론 요청
type PredictRequest struct {
	Image string `json:"image" binding:"required"`
}

func (a *APIs) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// Health 상태 확인
func (a *APIs) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Predict base64 이미지 추론
func (a *APIs) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		Error(c, http.StatusBadRequest, fmt.Errorf("Fail to decode base64 image: %w", err))
		return
	}

	key := a.cacheKey(utils.BytesMD5(data))
	if a.cached(c, key) {
		return
	}

	filePath := filepath.Join(a.UploadsPath, fmt.Sprintf("%s-inputImage.jpg", uuid.New().String()[:8]))
	if err := utils.DecodeImage(a.logger(), req.Image, filePath); err != nil {
		Error(c, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(filePath)

	a.predict(c, filePath, key)
}

// PredictUpload multipart 이미지 추론
func (a *APIs) PredictUpload(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		Error(c, http.StatusBadRequest, err)
		return
	}

	fileName := fmt.Sprintf("%s-%s", uuid.New().String()[:8], filepath.Base(header.Filename))
	filePath := filepath.Join(a.UploadsPath, fileName)
	if err := c.SaveUploadedFile(header, filePath); err != nil {
		Error(c, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(filePath)

	md5, err := utils.FileMD5(filePath)
	if err != nil {
		Error(c, http.StatusInternalServerError, err)
		return
	}
	key := a.cacheKey(md5)
	if a.cached(c, key) {
		return
	}

	a.predict(c, filePath, key)
}

// cacheKey 캐시를 쓰지 않거나 모델이 없으면 빈 문자열
func (a *APIs) cacheKey(md5 string) string {
	if a.C == nil {
		return ""
	}

	id, err := a.P.ModelID()
	if err != nil {
		a.logger().Warn("failed to get model id", zap.Error(err))
		return ""
	}
	return cache.Key(id, md5)
}

func (a *APIs) cached(c *gin.Context, key string) bool {
	if key == "" {
		return false
	}

	result, err := a.C.Get(c.Request.Context(), key)
	if err != nil {
		a.logger().Warn("failed to get cache", zap.String("key", key), zap.Error(err))
		return false
	}
	if result == nil {
		return false
	}

	a.logger().Info("cache hit", zap.String("key", key))
	c.JSON(http.StatusOK, result)
	return true
}

func (a *APIs) predict(c *gin.Context, filePath, key string) {
	t0 := time.Now()
	result, err := a.P.Predict(filePath)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, preprocess.ErrInvalidImage) {
			status = http.StatusBadRequest
		}
		Error(c, status, err)
		return
	}

	a.logger().Info("Predicted",
		zap.String("key", key),
		zap.String("class", result.PredictedClass),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(t0)))

	if key != "" {
		if err := a.C.Set(c.Request.Context(), key, &result); err != nil {
			a.logger().Warn("failed to set cache", zap.String("key", key), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, result)
}

// Train 학습 파이프라인 실행. 실행 중이면 409
func (a *APIs) Train(c *gin.Context) {
	if !a.trainMu.TryLock() {
		Error(c, http.StatusConflict, errors.New("Training is already in progress"))
		return
	}
	defer a.trainMu.Unlock()

	t0 := time.Now()
	if err := a.T(c.Request.Context()); err != nil {
		Error(c, http.StatusInternalServerError, err)
		return
	}

	// 이전 모델의 추론 결과 제거
	if a.C != nil {
		if err := a.C.Clear(c.Request.Context()); err != nil {
			a.logger().Warn("failed to clear cache", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "Training done successfully!",
		"elapsed(ms)": time.Since(t0).Milliseconds(),
	})
}

// HTTPError api 에러 메시지
type HTTPError struct {
	Error string `json:"error"`
}

// Error api 에러를 담은 json 응답 생성
func Error(c *gin.Context, status int, err error) {
	c.JSON(status, HTTPError{
		Error: err.Error(),
	})
}
