package utils

import (
	"errors"
	"io/fs"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadYAML(t *testing.T) {
	t.Run("values equal the source", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `
artifacts_root: artifacts
data_ingestion:
  root_dir: artifacts/data_ingestion
  skip_if_exists: true
IMAGE_SIZE: [224, 224, 3]
LEARNING_RATE: 0.01
EPOCHS: 5
`)
		box, err := ReadYAML(nil, path)
		assert.NilError(t, err)

		want := ConfigBox{
			"artifacts_root": "artifacts",
			"data_ingestion": map[string]interface{}{
				"root_dir":       "artifacts/data_ingestion",
				"skip_if_exists": true,
			},
			"IMAGE_SIZE":    []interface{}{224, 224, 3},
			"LEARNING_RATE": 0.01,
			"EPOCHS":        5,
		}
		if diff := cmp.Diff(want, box); diff != "" {
			t.Errorf("ReadYAML mismatch (-want +got):\n%s", diff)
		}

		dir, err := box.String("data_ingestion.root_dir")
		assert.NilError(t, err)
		assert.Equal(t, dir, "artifacts/data_ingestion")

		size, err := box.Ints("IMAGE_SIZE")
		assert.NilError(t, err)
		assert.DeepEqual(t, size, []int{224, 224, 3})

		lr, err := box.Float("LEARNING_RATE")
		assert.NilError(t, err)
		assert.Equal(t, lr, 0.01)

		epochs, err := box.Float("EPOCHS")
		assert.NilError(t, err)
		assert.Equal(t, epochs, 5.0)

		sub, err := box.Sub("data_ingestion")
		assert.NilError(t, err)
		skip, err := sub.Bool("skip_if_exists")
		assert.NilError(t, err)
		assert.Assert(t, skip)
	})

	t.Run("empty file", func(t *testing.T) {
		for _, content := range []string{"", "\n\n", "---\n", "# only a comment\n"} {
			_, err := ReadYAML(nil, writeFile(t, "empty.yaml", content))
			assert.Assert(t, errors.Is(err, ErrEmptyFile), "content %q: %v", content, err)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		for _, content := range []string{"a: [1, 2", "just a scalar", "- a\n- b\n"} {
			_, err := ReadYAML(nil, writeFile(t, "bad.yaml", content))
			assert.Assert(t, errors.Is(err, ErrMalformedFile), "content %q: %v", content, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadYAML(nil, filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Assert(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("missing key", func(t *testing.T) {
		box, err := ReadYAML(nil, writeFile(t, "c.yaml", "a:\n  b: 1\n"))
		assert.NilError(t, err)

		_, err = box.String("a.c")
		assert.Assert(t, errors.Is(err, ErrMissingKey))
		_, err = box.Int("a.b.c")
		assert.Assert(t, errors.Is(err, ErrMissingKey))
		assert.Assert(t, !box.Has("x"))
	})
}

func TestConfigBoxDecode(t *testing.T) {
	box := ConfigBox{
		"root_dir": "artifacts/training",
		"epochs":   3,
	}
	var out struct {
		RootDir string `yaml:"root_dir"`
		Epochs  int    `yaml:"epochs"`
	}
	assert.NilError(t, box.Decode(&out))
	assert.Equal(t, out.RootDir, "artifacts/training")
	assert.Equal(t, out.Epochs, 3)
}

func TestCreateDirectories(t *testing.T) {
	root := t.TempDir()
	paths := []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "b", "c"),
	}

	assert.NilError(t, CreateDirectories(nil, paths, true))
	assert.NilError(t, CreateDirectories(nil, paths, false))

	entries, err := os.ReadDir(root)
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 2)
	for _, p := range paths {
		info, err := os.Stat(p)
		assert.NilError(t, err)
		assert.Assert(t, info.IsDir())
	}
}

type record struct {
	Name    string
	Values  []float64
	Labels  map[string]int
	Enabled bool
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	in := map[string]interface{}{
		"loss":     0.25,
		"accuracy": 0.875,
		"classes":  []interface{}{"Cyst", "Normal"},
	}
	assert.NilError(t, SaveJSON(nil, path, in))

	var out map[string]interface{}
	assert.NilError(t, LoadJSON(nil, path, &out))
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("json round trip (-want +got):\n%s", diff)
	}
}

func TestBinRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.bin")
	in := record{
		Name:    "head",
		Values:  []float64{0.1, -2.5, 3e-9},
		Labels:  map[string]int{"Cyst": 0, "Tumor": 3},
		Enabled: true,
	}
	assert.NilError(t, SaveBin(nil, path, in))

	var out record
	assert.NilError(t, LoadBin(nil, path, &out))
	assert.DeepEqual(t, in, out)
}

func TestGetSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	assert.NilError(t, ioutil.WriteFile(path, make([]byte, 2048), 0644))

	size, err := GetSize(nil, path)
	assert.NilError(t, err)
	assert.Equal(t, size, "~ 2 KB")

	_, err = GetSize(nil, filepath.Join(t.TempDir(), "missing"))
	assert.Assert(t, errors.Is(err, fs.ErrNotExist))
}

func TestGetSizeRoundsHalfToEven(t *testing.T) {
	for bytes, want := range map[int]string{
		2560: "~ 2 KB",
		3584: "~ 4 KB",
		2600: "~ 3 KB",
		0:    "~ 0 KB",
	} {
		path := filepath.Join(t.TempDir(), "blob")
		assert.NilError(t, ioutil.WriteFile(path, make([]byte, bytes), 0644))

		size, err := GetSize(nil, path)
		assert.NilError(t, err)
		assert.Equal(t, size, want, bytes)
	}
}

func TestBase64RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.jpg")
	content := []byte{0xff, 0xd8, 0xff, 0x00, 0x01, 0x02, 0xfe, 0xff, 0xd9}
	assert.NilError(t, ioutil.WriteFile(src, content, 0644))

	encoded, err := EncodeImageIntoBase64(nil, src)
	assert.NilError(t, err)

	dst := filepath.Join(dir, "out.jpg")
	assert.NilError(t, DecodeImage(nil, string(encoded), dst))

	got, err := ioutil.ReadFile(dst)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, content)
}

func TestDecodeImageInvalid(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.jpg")
	err := DecodeImage(nil, "not base64 !!!", dst)
	assert.Assert(t, err != nil)

	_, err = os.Stat(dst)
	assert.Assert(t, errors.Is(err, fs.ErrNotExist))
}

func TestEncodeMissingFile(t *testing.T) {
	_, err := EncodeImageIntoBase64(nil, filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Assert(t, errors.Is(err, fs.ErrNotExist))
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	assert.NilError(t, os.MkdirAll(filepath.Join(src, "variables"), 0755))
	assert.NilError(t, ioutil.WriteFile(filepath.Join(src, "saved_model.pb"), []byte("pb"), 0644))
	assert.NilError(t, ioutil.WriteFile(filepath.Join(src, "variables", "variables.index"), []byte("idx"), 0644))

	dst := filepath.Join(t.TempDir(), "backbone")
	assert.NilError(t, CopyDir(src, dst))

	b, err := ioutil.ReadFile(filepath.Join(dst, "variables", "variables.index"))
	assert.NilError(t, err)
	assert.Equal(t, string(b), "idx")
}

func TestMD5(t *testing.T) {
	path := writeFile(t, "f", "hello")
	sum, err := FileMD5(path)
	assert.NilError(t, err)
	assert.Equal(t, sum, "5d41402abc4b2a76b9719d911017c592")
	assert.Equal(t, BytesMD5([]byte("hello")), sum)
}
