package ingestion

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/ulikunitz/xz"
	"gotest.tools/v3/assert"
)

var entries = map[string]string{
	"kidney/Cyst/a.jpg":   "cyst",
	"kidney/Normal/b.jpg": "normal",
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		assert.NilError(t, err)
		_, err = w.Write([]byte(body))
		assert.NilError(t, err)
	}
	assert.NilError(t, zw.Close())
	return buf.Bytes()
}

func tarArchive(t *testing.T, w io.Writer, files map[string]string) {
	t.Helper()
	tw := tar.NewWriter(w)
	for name, body := range files {
		assert.NilError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		assert.NilError(t, err)
	}
	assert.NilError(t, tw.Close())
}

func assertExtracted(t *testing.T, dir string) {
	t.Helper()
	for name, body := range entries {
		b, err := os.ReadFile(filepath.Join(dir, name))
		assert.NilError(t, err)
		assert.Equal(t, string(b), body)
	}
}

func testConfig(dir string) config.DataIngestionConfig {
	return config.DataIngestionConfig{
		RootDir:       dir,
		LocalDataFile: filepath.Join(dir, "data.zip"),
		UnzipDir:      dir,
		DatasetDir:    filepath.Join(dir, "kidney"),
		SkipIfExists:  true,
	}
}

func quietFetcher() *Fetcher {
	f := NewFetcher(nil)
	f.Progress = io.Discard
	return f
}

func TestMainDownloadsAndExtracts(t *testing.T) {
	archive := zipArchive(t, entries)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write(archive)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.SourceURL = srv.URL

	d := New(nil, cfg, quietFetcher())
	assert.NilError(t, d.Main(context.Background()))
	assertExtracted(t, dir)

	// 데이터셋이 있으면 다시 받지 않음
	assert.NilError(t, d.Main(context.Background()))
	assert.Equal(t, atomic.LoadInt32(&hits), int32(1))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.part"))
	assert.NilError(t, err)
	assert.Equal(t, len(leftovers), 0)
}

func TestDownloadSkipsExistingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected download")
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.SourceURL = srv.URL
	cfg.SkipIfExists = false
	assert.NilError(t, os.WriteFile(cfg.LocalDataFile, zipArchive(t, entries), 0644))

	d := New(nil, cfg, quietFetcher())
	assert.NilError(t, d.DownloadFile(context.Background()))
	assert.NilError(t, d.ExtractZipFile())
	assertExtracted(t, dir)
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.SourceURL = srv.URL

	err := New(nil, cfg, quietFetcher()).DownloadFile(context.Background())
	assert.ErrorContains(t, err, "404")
	_, err = os.Stat(cfg.LocalDataFile)
	assert.Assert(t, os.IsNotExist(err))
}

func TestDownloadCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.SourceURL = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(nil, cfg, quietFetcher()).DownloadFile(ctx)
	assert.Assert(t, errors.Is(err, context.Canceled))
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.tar.gz")

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tarArchive(t, gw, entries)
	assert.NilError(t, gw.Close())
	assert.NilError(t, os.WriteFile(src, buf.Bytes(), 0644))

	out := filepath.Join(dir, "out")
	assert.NilError(t, Extract(src, out))
	assertExtracted(t, out)
}

func TestExtractTarXz(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.tar.xz")

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	assert.NilError(t, err)
	tarArchive(t, xw, entries)
	assert.NilError(t, xw.Close())
	assert.NilError(t, os.WriteFile(src, buf.Bytes(), 0644))

	out := filepath.Join(dir, "out")
	assert.NilError(t, Extract(src, out))
	assertExtracted(t, out)
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	assert.NilError(t, os.WriteFile(src, zipArchive(t, map[string]string{"../evil.txt": "x"}), 0644))

	err := Extract(src, filepath.Join(dir, "out"))
	assert.Assert(t, errors.Is(err, ErrUnsafePath))
	_, err = os.Stat(filepath.Join(dir, "evil.txt"))
	assert.Assert(t, os.IsNotExist(err))
}

func TestExtractUnsupported(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.rar")
	assert.NilError(t, os.WriteFile(src, []byte("x"), 0644))

	err := Extract(src, dir)
	assert.Assert(t, errors.Is(err, ErrUnsupportedArchive))
}
