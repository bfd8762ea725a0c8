package ingestion

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/utils"
	"go.uber.org/zap"
)

// Fetcher 원격 파일 다운로드
type Fetcher struct {
	Client *http.Client
	// Progress 진행 표시 출력. nil이면 os.Stderr
	Progress io.Writer

	log *zap.Logger
}

// NewFetcher 기본 http.Client를 사용하는 Fetcher 생성
func NewFetcher(log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		Client: http.DefaultClient,
		log:    log,
	}
}

// Fetch url을 dest로 다운로드. 임시 파일에 받은 뒤 완료되면 dest로 이동
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	res, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("Fail to download %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("Fail to download %s: %s", url, res.Status)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	tmp, err := ioutil.TempFile(dir, filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	done := false
	defer func() {
		if !done {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	progress := f.Progress
	if progress == nil {
		progress = os.Stderr
	}

	f.log.Info("Downloading", zap.String("url", url), zap.String("dest", dest))

	bar := pb.New64(res.ContentLength)
	bar.Set(pb.Bytes, true)
	bar.SetWriter(progress)
	bar.Start()
	_, err = io.Copy(tmp, bar.NewProxyReader(res.Body))
	bar.Finish()
	if err != nil {
		return fmt.Errorf("Fail to download %s: %w", url, err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return err
	}
	done = true

	size, err := utils.GetSize(f.log, dest)
	if err != nil {
		return err
	}
	f.log.Info("Downloaded", zap.String("dest", dest), zap.String("size", size))

	return nil
}
