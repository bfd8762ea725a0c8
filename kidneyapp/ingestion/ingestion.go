// Package ingestion 학습 데이터셋 다운로드 및 압축 해제
package ingestion

import (
	"context"
	"io/ioutil"
	"os"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/utils"
	"go.uber.org/zap"
)

// DataIngestion 데이터 수집 단계
type DataIngestion struct {
	cfg     config.DataIngestionConfig
	fetcher *Fetcher
	log     *zap.Logger
}

// New 데이터 수집 단계 생성. fetcher가 nil이면 기본 Fetcher 사용
func New(log *zap.Logger, cfg config.DataIngestionConfig, fetcher *Fetcher) *DataIngestion {
	if log == nil {
		log = zap.NewNop()
	}
	if fetcher == nil {
		fetcher = NewFetcher(log)
	}
	return &DataIngestion{
		cfg:     cfg,
		fetcher: fetcher,
		log:     log,
	}
}

// datasetReady 압축 해제된 데이터셋이 이미 있는지 확인
func (d *DataIngestion) datasetReady() bool {
	entries, err := ioutil.ReadDir(d.cfg.DatasetDir)
	return err == nil && len(entries) > 0
}

func (d *DataIngestion) skip(step string) bool {
	if d.cfg.SkipIfExists && d.datasetReady() {
		d.log.Info("Dataset already exists, skip "+step, zap.String("dataset", d.cfg.DatasetDir))
		return true
	}
	return false
}

// DownloadFile local_data_file이 없으면 source_URL에서 다운로드
func (d *DataIngestion) DownloadFile(ctx context.Context) error {
	if d.skip("download") {
		return nil
	}

	if _, err := os.Stat(d.cfg.LocalDataFile); err == nil {
		size, err := utils.GetSize(d.log, d.cfg.LocalDataFile)
		if err != nil {
			return err
		}
		d.log.Info("File already exists",
			zap.String("file", d.cfg.LocalDataFile), zap.String("size", size))
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	return d.fetcher.Fetch(ctx, d.cfg.SourceURL, d.cfg.LocalDataFile)
}

// ExtractZipFile local_data_file을 unzip_dir에 압축 해제
func (d *DataIngestion) ExtractZipFile() error {
	if d.skip("extraction") {
		return nil
	}

	if err := utils.CreateDirectories(d.log, []string{d.cfg.UnzipDir}, false); err != nil {
		return err
	}
	if err := Extract(d.cfg.LocalDataFile, d.cfg.UnzipDir); err != nil {
		return err
	}

	d.log.Info("Extracted", zap.String("file", d.cfg.LocalDataFile), zap.String("dir", d.cfg.UnzipDir))
	return nil
}

// Main 다운로드 후 압축 해제
func (d *DataIngestion) Main(ctx context.Context) error {
	if err := d.DownloadFile(ctx); err != nil {
		return err
	}
	return d.ExtractZipFile()
}
