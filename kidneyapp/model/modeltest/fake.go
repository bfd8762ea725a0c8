// Package modeltest TensorFlow 없이 모델을 다루기 위한 테스트용 backbone
package modeltest

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/preprocess"
)

// FeatureSize 사분면별 RGB 평균
const FeatureSize = 12

// ErrFailed Features 실패 주입
var ErrFailed = errors.New("backbone failed")

// Backbone 이미지의 사분면별 채널 평균을 특징으로 반환
type Backbone struct {
	Fail   bool
	closed int32
}

// Features 사분면별 채널 평균
func (b *Backbone) Features(images []preprocess.Image) ([][]float32, error) {
	if b.Fail {
		return nil, ErrFailed
	}

	out := make([][]float32, len(images))
	for n, img := range images {
		var (
			sums   [FeatureSize]float32
			counts [4]float32
		)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				q := 0
				if y >= img.Height/2 {
					q += 2
				}
				if x >= img.Width/2 {
					q++
				}
				p := img.Data[(y*img.Width+x)*3:]
				sums[q*3] += p[0]
				sums[q*3+1] += p[1]
				sums[q*3+2] += p[2]
				counts[q]++
			}
		}
		f := make([]float32, FeatureSize)
		for i := range f {
			if c := counts[i/3]; c > 0 {
				f[i] = sums[i] / c
			}
		}
		out[n] = f
	}
	return out, nil
}

// Closed Close 호출 여부
func (b *Backbone) Closed() bool {
	return atomic.LoadInt32(&b.closed) == 1
}

// Close backbone 해제
func (b *Backbone) Close() error {
	atomic.StoreInt32(&b.closed, 1)
	return nil
}

// Open backbone 디렉토리가 있으면 Backbone 반환
func Open(dir string, cfg model.Config) (model.Backbone, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	return &Backbone{}, nil
}

// WriteSavedModel SavedModel 형태의 빈 디렉토리 생성
func WriteSavedModel(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "variables"), os.ModePerm); err != nil {
		return err
	}
	return ioutil.WriteFile(filepath.Join(dir, "saved_model.pb"), []byte("fake"), 0644)
}

// Config 테스트용 모델 설정
func Config(height, width int) model.Config {
	return model.Config{
		Name:                "kidney-test",
		Type:                "user-defined",
		Tags:                []string{"serve"},
		InputShape:          []int32{int32(height), int32(width), 3},
		InputOperationName:  "serving_default_input",
		OutputOperationName: "StatefulPartitionedCall",
	}
}
