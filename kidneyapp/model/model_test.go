package model_test

import (
	"errors"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model/modeltest"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/preprocess"
	"gotest.tools/v3/assert"
)

func newModel(t *testing.T) (*model.Model, string) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "pretrained")
	assert.NilError(t, modeltest.WriteSavedModel(src))

	m := model.New(modeltest.Config(8, 8), constants.ClassNames, src)
	m.Head = model.NewHead(len(constants.ClassNames), modeltest.FeatureSize, rand.New(rand.NewSource(1)))
	return m, root
}

func TestSaveLoad(t *testing.T) {
	m, root := newModel(t)
	m.Cfg.TrainingResult = &model.TrainingResult{Epochs: 1, TrainLoss: []float64{0.5}}

	dir := filepath.Join(root, "model")
	assert.NilError(t, m.Save(nil, dir))

	for _, f := range []string{constants.ModelConfigFile, constants.LabelsFile, constants.HeadFile,
		filepath.Join(constants.BackboneDir, "saved_model.pb")} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NilError(t, err, f)
	}

	loaded, err := model.Load(dir, modeltest.Open)
	assert.NilError(t, err)
	defer loaded.Close()

	assert.DeepEqual(t, loaded.Labels, constants.ClassNames)
	assert.DeepEqual(t, loaded.Head, m.Head)
	if diff := cmp.Diff(m.Cfg.TrainingResult, loaded.Cfg.TrainingResult); diff != "" {
		t.Errorf("training result (-want +got):\n%s", diff)
	}
	assert.Equal(t, loaded.Cfg.HeadFile, constants.HeadFile)
	assert.Equal(t, loaded.Cfg.BackboneDir, constants.BackboneDir)

	h, w := loaded.InputSize()
	probs, err := loaded.Predict(preprocess.Zero(h, w))
	assert.NilError(t, err)
	assert.Equal(t, len(probs), len(constants.ClassNames))
}

func TestSaveInPlace(t *testing.T) {
	m, root := newModel(t)
	dir := filepath.Join(root, "model")
	assert.NilError(t, m.Save(nil, dir))

	loaded, err := model.Load(dir, nil)
	assert.NilError(t, err)
	loaded.Cfg.Description = "updated"
	assert.NilError(t, loaded.Save(nil, dir))

	again, err := model.Load(dir, nil)
	assert.NilError(t, err)
	assert.Equal(t, again.Cfg.Description, "updated")
	_, err = os.Stat(filepath.Join(dir, constants.BackboneDir, "saved_model.pb"))
	assert.NilError(t, err)
}

func TestSaveWithoutHead(t *testing.T) {
	m, root := newModel(t)
	m.Head = nil
	dir := filepath.Join(root, "base")
	assert.NilError(t, m.Save(nil, dir))

	loaded, err := model.Load(dir, modeltest.Open)
	assert.NilError(t, err)
	assert.Assert(t, loaded.Head == nil)

	_, err = loaded.Predict(preprocess.Zero(8, 8))
	assert.ErrorContains(t, err, "no classification head")
}

func TestLoadMissing(t *testing.T) {
	_, err := model.Load(filepath.Join(t.TempDir(), "none"), modeltest.Open)
	assert.Assert(t, errors.Is(err, fs.ErrNotExist))
}

func TestPredictShapeMismatch(t *testing.T) {
	m, root := newModel(t)
	dir := filepath.Join(root, "model")
	assert.NilError(t, m.Save(nil, dir))

	loaded, err := model.Load(dir, modeltest.Open)
	assert.NilError(t, err)

	_, err = loaded.Predict(preprocess.Zero(4, 4))
	assert.Assert(t, errors.Is(err, model.ErrShapeMismatch))
}

func TestLoadRejectsHeadLabelMismatch(t *testing.T) {
	m, root := newModel(t)
	m.Labels = []string{"a", "b"}
	dir := filepath.Join(root, "model")
	assert.NilError(t, m.Save(nil, dir))

	_, err := model.Load(dir, nil)
	assert.Assert(t, errors.Is(err, model.ErrShapeMismatch))
}

func TestClose(t *testing.T) {
	m, root := newModel(t)
	dir := filepath.Join(root, "model")
	assert.NilError(t, m.Save(nil, dir))

	var fake *modeltest.Backbone
	loaded, err := model.Load(dir, func(d string, cfg model.Config) (model.Backbone, error) {
		fake = &modeltest.Backbone{}
		return fake, nil
	})
	assert.NilError(t, err)
	assert.NilError(t, loaded.Close())
	assert.Assert(t, fake.Closed())
}
