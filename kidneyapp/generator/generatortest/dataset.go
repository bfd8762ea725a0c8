// Package generatortest 테스트용 이미지 데이터셋 생성
package generatortest

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// Size 생성 이미지 한 변의 길이
const Size = 16

// ClassImage 클래스 인덱스에 해당하는 사분면만 밝은 이미지
func ClassImage(class int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			q := 0
			if y >= Size/2 {
				q += 2
			}
			if x >= Size/2 {
				q++
			}
			c := color.RGBA{20, 20, 20, 255}
			if q == class%4 {
				c = color.RGBA{230, 230, 230, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// WritePNG 이미지를 png 파일로 저장
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteDataset dir/<class>/NNN.png 형태로 클래스마다 perClass장 생성
func WriteDataset(dir string, classes []string, perClass int) error {
	for idx, class := range classes {
		classDir := filepath.Join(dir, class)
		if err := os.MkdirAll(classDir, os.ModePerm); err != nil {
			return err
		}
		for i := 0; i < perClass; i++ {
			path := filepath.Join(classDir, fmt.Sprintf("%03d.png", i))
			if err := WritePNG(path, ClassImage(idx)); err != nil {
				return err
			}
		}
	}
	return nil
}
