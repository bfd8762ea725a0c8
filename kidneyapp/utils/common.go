package utils

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"
)

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// CreateDirectories 디렉토리 목록 생성. 이미 존재하는 경우 무시
func CreateDirectories(log *zap.Logger, paths []string, verbose bool) error {
	log = orNop(log)
	for _, path := range paths {
		if err := os.MkdirAll(path, os.ModePerm); err != nil {
			return err
		}
		if verbose {
			log.Info("Created directory", zap.String("path", path))
		}
	}
	return nil
}

// SaveJSON json 파일 저장
func SaveJSON(log *zap.Logger, path string, data interface{}) error {
	b, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(path, b, 0644); err != nil {
		return err
	}
	orNop(log).Info("json file saved", zap.String("path", path))
	return nil
}

// LoadJSON json 파일 로드
func LoadJSON(log *zap.Logger, path string, out interface{}) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("Fail to decode json: %s: %w", path, err)
	}
	orNop(log).Info("json file loaded successfully", zap.String("path", path))
	return nil
}

// SaveBin 바이너리(CBOR) 파일 저장
func SaveBin(log *zap.Logger, path string, data interface{}) error {
	b, err := cbor.Marshal(data)
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(path, b, 0644); err != nil {
		return err
	}
	orNop(log).Info("binary file saved", zap.String("path", path))
	return nil
}

// LoadBin 바이너리(CBOR) 파일 로드
func LoadBin(log *zap.Logger, path string, out interface{}) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(b, out); err != nil {
		return fmt.Errorf("Fail to decode binary: %s: %w", path, err)
	}
	orNop(log).Info("binary file loaded successfully", zap.String("path", path))
	return nil
}

// GetSize 파일 크기(KB) 반환
func GetSize(log *zap.Logger, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	kb := int64(math.RoundToEven(float64(info.Size()) / 1024))
	orNop(log).Info("file size", zap.String("path", path), zap.Int64("kb", kb))
	return fmt.Sprintf("~ %d KB", kb), nil
}

// DecodeImage base64 이미지 문자열을 디코딩하여 파일로 저장
func DecodeImage(log *zap.Logger, imgString, fileName string) error {
	data, err := base64.StdEncoding.DecodeString(imgString)
	if err != nil {
		return fmt.Errorf("Fail to decode base64 image: %w", err)
	}

	orNop(log).Info("Decoding image", zap.String("path", fileName))
	return ioutil.WriteFile(fileName, data, 0644)
}

// EncodeImageIntoBase64 이미지 파일을 base64로 인코딩
func EncodeImageIntoBase64(log *zap.Logger, imagePath string) ([]byte, error) {
	data, err := ioutil.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}

	orNop(log).Info("Encoding image into base64", zap.String("path", imagePath))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out, nil
}

// FileMD5 파일 MD5
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BytesMD5 바이트 MD5
func BytesMD5(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}

// CopyDir src 디렉토리를 dst로 복사. dst가 이미 존재하면 덮어씀
func CopyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, os.ModePerm)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
