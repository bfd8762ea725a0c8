package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger zap 요청 로그 미들웨어
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("cost", time.Since(start)),
		)
	}
}

// NewRouter 라우트 등록
func NewRouter(a *APIs) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(a.logger()))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", a.Health)

	predictGroup := r.Group("/predict")
	{
		predictGroup.POST("", a.Predict)
		predictGroup.POST("/upload", a.PredictUpload)
	}

	r.POST("/train", a.Train)

	return r
}
