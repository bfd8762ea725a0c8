package ingestion

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// ErrUnsupportedArchive 확장자로 압축 형식을 알 수 없음
var ErrUnsupportedArchive = errors.New("unsupported archive")

// ErrUnsafePath 압축 해제 경로를 벗어나는 항목
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract 확장자에 따라 zip, tar.gz, tar.xz, tar 압축 해제
func Extract(src, dst string) error {
	if err := os.MkdirAll(dst, os.ModePerm); err != nil {
		return err
	}

	name := strings.ToLower(src)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return extractZip(src, dst)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return extractTar(src, dst, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return extractTar(src, dst, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case strings.HasSuffix(name, ".tar"):
		return extractTar(src, dst, func(r io.Reader) (io.Reader, error) {
			return r, nil
		})
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedArchive, src)
}

// target dst 아래의 항목 경로. 벗어나면 ErrUnsafePath
func target(dst, name string) (string, error) {
	path := filepath.Join(dst, name)
	rel, err := filepath.Rel(dst, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return path, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	if mode&0600 == 0 {
		mode = 0644
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func extractZip(src, dst string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		path, err := target(dst, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, os.ModePerm); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(path, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func extractTar(src, dst string, decompress func(io.Reader) (io.Reader, error)) error {
	fp, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fp.Close()

	r, err := decompress(fp)
	if err != nil {
		return fmt.Errorf("Fail to open archive: %s: %w", src, err)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("Fail to read archive: %s: %w", src, err)
		}

		path, err := target(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, os.ModePerm); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(path, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			// 링크 등은 무시
		}
	}
}
