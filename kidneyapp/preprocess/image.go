package preprocess

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // jpeg 디코더 등록
	_ "image/png"  // png 디코더 등록
	"io"
	"os"

	"golang.org/x/image/draw"
)

// ErrInvalidImage 디코딩할 수 없는 이미지
var ErrInvalidImage = errors.New("Fail to decode image")

// Image 모델 입력 이미지. RGB 순서의 HWC 배열이며 값은 [0, 1]
type Image struct {
	Height int
	Width  int
	Data   []float32
}

// Zero 입력 크기의 검은 이미지
func Zero(height, width int) Image {
	return Image{
		Height: height,
		Width:  width,
		Data:   make([]float32, height*width*3),
	}
}

// Decode jpeg/png 이미지 디코딩
func Decode(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, fmt.Errorf("%w: unsupported format %s", ErrInvalidImage, format)
	}
	return img, nil
}

// DecodeFile 이미지 파일 디코딩
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Resize 이중선형보간법으로 (height, width) 크기로 조정
func Resize(img image.Image, height, width int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Normalize [0, 255] 픽셀값을 [0, 1]로 조정
func Normalize(img *image.RGBA) Image {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	out := Image{
		Height: h,
		Width:  w,
		Data:   make([]float32, h*w*3),
	}

	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4:]
			out.Data[i] = float32(p[0]) / 255
			out.Data[i+1] = float32(p[1]) / 255
			out.Data[i+2] = float32(p[2]) / 255
			i += 3
		}
	}

	return out
}

// Load 이미지 파일을 읽어 모델 입력으로 변환
func Load(path string, height, width int) (Image, error) {
	img, err := DecodeFile(path)
	if err != nil {
		return Image{}, err
	}
	return Normalize(Resize(img, height, width)), nil
}
