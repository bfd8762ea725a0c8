package config

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

const testParams = `
AUGMENTATION: True
IMAGE_SIZE: [224, 224, 3]
BATCH_SIZE: 16
EPOCHS: 2
CLASSES: 4
LEARNING_RATE: 0.01
FREEZE_ALL: True
SEED: 7
`

func testConfig(root string) string {
	return strings.ReplaceAll(`
artifacts_root: ROOT
data_ingestion:
  root_dir: ROOT/data_ingestion
  source_URL: http://example.invalid/data.zip
  local_data_file: ROOT/data_ingestion/data.zip
  unzip_dir: ROOT/data_ingestion
  dataset_name: kidney
prepare_base_model:
  root_dir: ROOT/prepare_base_model
  base_model_path: ROOT/prepare_base_model/base_model
  updated_base_model_path: ROOT/prepare_base_model/base_model_updated
  pretrained_model_dir: ROOT/prepare_base_model/pretrained
  tags: [serve]
  input_operation: input
  output_operation: output
training:
  root_dir: ROOT/training
  trained_model_path: ROOT/training/model
evaluation:
  root_dir: ROOT/evaluation
  scores_file: ROOT/evaluation/scores.json
`, "ROOT", root)
}

func newTestManager(t *testing.T, config, params string) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "artifacts")
	if config == "" {
		config = testConfig(root)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	paramsPath := filepath.Join(dir, "params.yaml")
	assert.NilError(t, ioutil.WriteFile(cfgPath, []byte(config), 0644))
	assert.NilError(t, ioutil.WriteFile(paramsPath, []byte(params), 0644))

	m, err := NewManager(nil, cfgPath, paramsPath)
	assert.NilError(t, err)
	return m, root
}

func TestManagerStageConfigs(t *testing.T) {
	m, root := newTestManager(t, "", testParams)

	di, err := m.DataIngestionConfig()
	assert.NilError(t, err)
	assert.Equal(t, di.DatasetDir, filepath.Join(root, "data_ingestion", "kidney"))
	assert.Assert(t, di.SkipIfExists)
	_, err = os.Stat(di.RootDir)
	assert.NilError(t, err)

	bm, err := m.PrepareBaseModelConfig()
	assert.NilError(t, err)
	assert.Equal(t, bm.Classes, 4)
	assert.DeepEqual(t, bm.ImageSize, []int{224, 224, 3})
	assert.DeepEqual(t, bm.Tags, []string{"serve"})
	assert.Assert(t, bm.Seed != nil)
	assert.Equal(t, *bm.Seed, int64(7))

	tr, err := m.TrainingConfig()
	assert.NilError(t, err)
	assert.Equal(t, tr.Epochs, 2)
	assert.Equal(t, tr.BatchSize, 16)
	assert.Assert(t, tr.Augmentation)
	assert.Equal(t, tr.ValidationSplit, 0.2)
	assert.Equal(t, tr.FinalModelPath, "model/final_model")
	assert.Equal(t, tr.TrainingData, di.DatasetDir)

	ev, err := m.EvaluationConfig()
	assert.NilError(t, err)
	assert.Equal(t, ev.Tracking.Driver, "sqlite3")
	assert.Equal(t, ev.ModelPath, tr.TrainedModelPath)

	pr, err := m.PredictionConfig()
	assert.NilError(t, err)
	assert.Equal(t, pr.ModelPath, "model/final_model")
}

func TestManagerMissingKey(t *testing.T) {
	params := strings.Replace(testParams, "BATCH_SIZE: 16\n", "", 1)
	m, _ := newTestManager(t, "", params)

	_, err := m.TrainingConfig()
	assert.Assert(t, errors.Is(err, ErrMissingKey), "%v", err)
	assert.ErrorContains(t, err, "BATCH_SIZE")
}

func TestManagerRejectsUnfrozenBackbone(t *testing.T) {
	params := strings.Replace(testParams, "FREEZE_ALL: True", "FREEZE_ALL: False", 1)
	m, _ := newTestManager(t, "", params)

	_, err := m.PrepareBaseModelConfig()
	assert.Assert(t, errors.Is(err, ErrUnsupported), "%v", err)
}

func TestManagerRejectsClassCount(t *testing.T) {
	params := strings.Replace(testParams, "CLASSES: 4", "CLASSES: 3", 1)
	m, _ := newTestManager(t, "", params)

	_, err := m.PrepareBaseModelConfig()
	assert.Assert(t, errors.Is(err, ErrUnsupported), "%v", err)
}

func TestNewManagerEmptyParams(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	paramsPath := filepath.Join(dir, "params.yaml")
	assert.NilError(t, ioutil.WriteFile(cfgPath, []byte(testConfig(filepath.Join(dir, "a"))), 0644))
	assert.NilError(t, ioutil.WriteFile(paramsPath, nil, 0644))

	_, err := NewManager(nil, cfgPath, paramsPath)
	assert.ErrorContains(t, err, "empty")
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("KIDNEY_LOG_LEVEL", "debug")
	t.Setenv("KIDNEY_PARAMS", "other/params.yaml")

	s, err := LoadSettings()
	assert.NilError(t, err)
	assert.Equal(t, s.LogLevel, "debug")
	assert.Equal(t, s.ParamsFile, "other/params.yaml")
	assert.Equal(t, s.ConfigFile, "config/config.yaml")
	assert.Equal(t, s.Mode, "debug")
}
