package constants

const (
	ConfigFilePath string = "config/config.yaml"
	ParamsFilePath string = "params.yaml"

	LogDir  string = "logs"
	LogFile string = "running_logs.log"

	FinalModelPath string = "model/final_model"
	UploadsPath    string = "uploads"

	ModelConfigFile string = "config.yaml"
	LabelsFile      string = "labels.txt"
	HeadFile        string = "head.cbor"
	BackboneDir     string = "backbone"

	UnknownClass string = "Unknown"

	DefaultBatchSize int = 16
	DefaultEpochs    int = 1
)

// ClassNames 분류 라벨 (인덱스 순서)
var ClassNames = []string{"Cyst", "Normal", "Stone", "Tumor"}

// ClassName 인덱스에 해당하는 라벨 반환
func ClassName(idx int) string {
	if idx < 0 || idx >= len(ClassNames) {
		return UnknownClass
	}
	return ClassNames[idx]
}
