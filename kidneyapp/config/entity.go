package config

// DataIngestionConfig 데이터 수집 단계 설정
type DataIngestionConfig struct {
	RootDir       string
	SourceURL     string
	LocalDataFile string
	UnzipDir      string
	// DatasetDir 압축 해제 후 클래스별 디렉토리가 위치하는 경로
	DatasetDir   string
	SkipIfExists bool
}

// PrepareBaseModelConfig 기본 모델 준비 단계 설정
type PrepareBaseModelConfig struct {
	RootDir              string
	BaseModelPath        string
	UpdatedBaseModelPath string

	PretrainedModelURL string
	PretrainedModelDir string
	Tags               []string
	InputOperation     string
	OutputOperation    string

	ImageSize    []int
	LearningRate float64
	FreezeAll    bool
	Classes      int
	// Seed nil이면 실행 시점에 생성하여 모델 설정에 기록
	Seed *int64
}

// TrainingConfig 학습 단계 설정
type TrainingConfig struct {
	RootDir              string
	TrainedModelPath     string
	FinalModelPath       string
	UpdatedBaseModelPath string
	TrainingData         string

	Epochs          int
	BatchSize       int
	Augmentation    bool
	ImageSize       []int
	LearningRate    float64
	ValidationSplit float64
	Seed            *int64
}

// TrackingConfig 평가 결과 기록 저장소 설정
type TrackingConfig struct {
	Driver string
	DSN    string
	Table  string
}

// EvaluationConfig 평가 단계 설정
type EvaluationConfig struct {
	RootDir      string
	ModelPath    string
	TrainingData string
	ScoresFile   string

	ImageSize       []int
	BatchSize       int
	ValidationSplit float64
	AllParams       map[string]interface{}

	Tracking TrackingConfig
}

// PredictionConfig 추론 설정
type PredictionConfig struct {
	ModelPath string
	ImageSize []int
}
