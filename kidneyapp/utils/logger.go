package utils

import (
	"os"
	"path/filepath"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger 로거 생성. release 모드는 json, 그 외는 개발용 콘솔 포맷.
// logDir가 주어지면 stdout과 함께 running_logs.log에 기록
func NewLogger(mode, level, logDir string) (*zap.Logger, error) {
	var cfg zap.Config

	if mode == "release" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
			return nil, err
		}
		cfg.OutputPaths = []string{"stdout", filepath.Join(logDir, constants.LogFile)}
	}

	return cfg.Build()
}
