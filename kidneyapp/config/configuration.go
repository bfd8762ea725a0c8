package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/utils"
	"go.uber.org/zap"
)

// ErrMissingKey 필수 설정값 누락
var ErrMissingKey = utils.ErrMissingKey

// ErrUnsupported 지원하지 않는 설정값
var ErrUnsupported = errors.New("unsupported configuration")

// Manager config.yaml과 params.yaml을 읽어 단계별 설정 생성
type Manager struct {
	config utils.ConfigBox
	params utils.ConfigBox
	log    *zap.Logger
}

// NewManager 설정 파일을 읽고 artifacts_root 생성
func NewManager(log *zap.Logger, configPath, paramsPath string) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cfg, err := utils.ReadYAML(log, configPath)
	if err != nil {
		return nil, err
	}
	params, err := utils.ReadYAML(log, paramsPath)
	if err != nil {
		return nil, err
	}

	root, err := cfg.String("artifacts_root")
	if err != nil {
		return nil, err
	}
	if err := utils.CreateDirectories(log, []string{root}, true); err != nil {
		return nil, err
	}

	return &Manager{
		config: cfg,
		params: params,
		log:    log,
	}, nil
}

// 첫 에러를 기억하고 이후 조회는 무시
type reader struct {
	box utils.ConfigBox
	err error
}

func (r *reader) str(key string) string {
	if r.err != nil {
		return ""
	}
	v, err := r.box.String(key)
	r.err = err
	return v
}

func (r *reader) integer(key string) int {
	if r.err != nil {
		return 0
	}
	v, err := r.box.Int(key)
	r.err = err
	return v
}

func (r *reader) float(key string) float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.box.Float(key)
	r.err = err
	return v
}

func (r *reader) boolean(key string) bool {
	if r.err != nil {
		return false
	}
	v, err := r.box.Bool(key)
	r.err = err
	return v
}

func (r *reader) ints(key string) []int {
	if r.err != nil {
		return nil
	}
	v, err := r.box.Ints(key)
	r.err = err
	return v
}

func (r *reader) strings(key string) []string {
	if r.err != nil {
		return nil
	}
	v, err := r.box.Strings(key)
	r.err = err
	return v
}

// 선택 항목
func (r *reader) boolOr(key string, dflt bool) bool {
	if !r.box.Has(key) {
		return dflt
	}
	return r.boolean(key)
}

func (r *reader) strOr(key, dflt string) string {
	if !r.box.Has(key) {
		return dflt
	}
	return r.str(key)
}

func (r *reader) floatOr(key string, dflt float64) float64 {
	if !r.box.Has(key) {
		return dflt
	}
	return r.float(key)
}

func (r *reader) seed(key string) *int64 {
	if !r.box.Has(key) {
		return nil
	}
	v := int64(r.integer(key))
	return &v
}

func (m *Manager) prepareRoot(section string, rootDir string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", section, err)
	}
	return utils.CreateDirectories(m.log, []string{rootDir}, true)
}

func validImageSize(size []int) error {
	if len(size) != 3 || size[0] <= 0 || size[1] <= 0 || size[2] != 3 {
		return fmt.Errorf("%w: IMAGE_SIZE must be [height, width, 3]: %v", ErrUnsupported, size)
	}
	return nil
}

// DataIngestionConfig 데이터 수집 설정
func (m *Manager) DataIngestionConfig() (DataIngestionConfig, error) {
	c := &reader{box: m.config}

	cfg := DataIngestionConfig{
		RootDir:       c.str("data_ingestion.root_dir"),
		SourceURL:     c.str("data_ingestion.source_URL"),
		LocalDataFile: c.str("data_ingestion.local_data_file"),
		UnzipDir:      c.str("data_ingestion.unzip_dir"),
		SkipIfExists:  c.boolOr("data_ingestion.skip_if_exists", true),
	}
	cfg.DatasetDir = filepath.Join(cfg.UnzipDir, c.str("data_ingestion.dataset_name"))

	if err := m.prepareRoot("data_ingestion", cfg.RootDir, c.err); err != nil {
		return DataIngestionConfig{}, err
	}
	return cfg, nil
}

// PrepareBaseModelConfig 기본 모델 준비 설정
func (m *Manager) PrepareBaseModelConfig() (PrepareBaseModelConfig, error) {
	c := &reader{box: m.config}
	p := &reader{box: m.params}

	cfg := PrepareBaseModelConfig{
		RootDir:              c.str("prepare_base_model.root_dir"),
		BaseModelPath:        c.str("prepare_base_model.base_model_path"),
		UpdatedBaseModelPath: c.str("prepare_base_model.updated_base_model_path"),
		PretrainedModelURL:   c.strOr("prepare_base_model.pretrained_model_url", ""),
		PretrainedModelDir:   c.str("prepare_base_model.pretrained_model_dir"),
		Tags:                 c.strings("prepare_base_model.tags"),
		InputOperation:       c.str("prepare_base_model.input_operation"),
		OutputOperation:      c.str("prepare_base_model.output_operation"),

		ImageSize:    p.ints("IMAGE_SIZE"),
		LearningRate: p.float("LEARNING_RATE"),
		FreezeAll:    p.boolOr("FREEZE_ALL", true),
		Classes:      p.integer("CLASSES"),
		Seed:         p.seed("SEED"),
	}

	err := c.err
	if err == nil {
		err = p.err
	}
	if err := m.prepareRoot("prepare_base_model", cfg.RootDir, err); err != nil {
		return PrepareBaseModelConfig{}, err
	}

	if err := validImageSize(cfg.ImageSize); err != nil {
		return PrepareBaseModelConfig{}, err
	}
	if !cfg.FreezeAll {
		return PrepareBaseModelConfig{}, fmt.Errorf("%w: FREEZE_ALL=false, backbone fine-tuning is not available", ErrUnsupported)
	}
	if cfg.Classes != len(constants.ClassNames) {
		return PrepareBaseModelConfig{}, fmt.Errorf(
			"%w: CLASSES=%d, labels are %v", ErrUnsupported, cfg.Classes, constants.ClassNames)
	}

	return cfg, nil
}

// TrainingConfig 학습 설정
func (m *Manager) TrainingConfig() (TrainingConfig, error) {
	c := &reader{box: m.config}
	p := &reader{box: m.params}

	cfg := TrainingConfig{
		RootDir:              c.str("training.root_dir"),
		TrainedModelPath:     c.str("training.trained_model_path"),
		FinalModelPath:       c.strOr("training.final_model_path", constants.FinalModelPath),
		UpdatedBaseModelPath: c.str("prepare_base_model.updated_base_model_path"),
		TrainingData: filepath.Join(
			c.str("data_ingestion.unzip_dir"),
			c.str("data_ingestion.dataset_name")),

		Epochs:          p.integer("EPOCHS"),
		BatchSize:       p.integer("BATCH_SIZE"),
		Augmentation:    p.boolean("AUGMENTATION"),
		ImageSize:       p.ints("IMAGE_SIZE"),
		LearningRate:    p.float("LEARNING_RATE"),
		ValidationSplit: p.floatOr("VALIDATION_SPLIT", 0.2),
		Seed:            p.seed("SEED"),
	}

	err := c.err
	if err == nil {
		err = p.err
	}
	if err := m.prepareRoot("training", cfg.RootDir, err); err != nil {
		return TrainingConfig{}, err
	}

	if err := validImageSize(cfg.ImageSize); err != nil {
		return TrainingConfig{}, err
	}
	if cfg.Epochs <= 0 || cfg.BatchSize <= 0 {
		return TrainingConfig{}, fmt.Errorf(
			"%w: EPOCHS=%d, BATCH_SIZE=%d", ErrUnsupported, cfg.Epochs, cfg.BatchSize)
	}
	if cfg.ValidationSplit <= 0 || cfg.ValidationSplit >= 1 {
		return TrainingConfig{}, fmt.Errorf("%w: VALIDATION_SPLIT=%v", ErrUnsupported, cfg.ValidationSplit)
	}

	return cfg, nil
}

// EvaluationConfig 평가 설정
func (m *Manager) EvaluationConfig() (EvaluationConfig, error) {
	c := &reader{box: m.config}
	p := &reader{box: m.params}

	cfg := EvaluationConfig{
		RootDir:    c.str("evaluation.root_dir"),
		ModelPath:  c.str("training.trained_model_path"),
		ScoresFile: c.str("evaluation.scores_file"),
		TrainingData: filepath.Join(
			c.str("data_ingestion.unzip_dir"),
			c.str("data_ingestion.dataset_name")),

		ImageSize:       p.ints("IMAGE_SIZE"),
		BatchSize:       p.integer("BATCH_SIZE"),
		ValidationSplit: p.floatOr("VALIDATION_SPLIT", 0.2),
		AllParams:       map[string]interface{}(m.params),

		Tracking: TrackingConfig{
			Driver: c.strOr("evaluation.tracking.driver", "sqlite3"),
			DSN:    c.strOr("evaluation.tracking.dsn", ""),
			Table:  c.strOr("evaluation.tracking.table", "scores_tab"),
		},
	}

	err := c.err
	if err == nil {
		err = p.err
	}
	if err := m.prepareRoot("evaluation", cfg.RootDir, err); err != nil {
		return EvaluationConfig{}, err
	}
	if err := validImageSize(cfg.ImageSize); err != nil {
		return EvaluationConfig{}, err
	}

	return cfg, nil
}

// PredictionConfig 추론 설정. 모델 경로는 학습 단계의 final_model_path
func (m *Manager) PredictionConfig() (PredictionConfig, error) {
	c := &reader{box: m.config}
	p := &reader{box: m.params}

	cfg := PredictionConfig{
		ModelPath: c.strOr("training.final_model_path", constants.FinalModelPath),
		ImageSize: p.ints("IMAGE_SIZE"),
	}

	err := c.err
	if err == nil {
		err = p.err
	}
	if err != nil {
		return PredictionConfig{}, fmt.Errorf("prediction: %w", err)
	}
	if err := validImageSize(cfg.ImageSize); err != nil {
		return PredictionConfig{}, err
	}

	return cfg, nil
}
