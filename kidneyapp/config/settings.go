package config

import (
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"github.com/spf13/viper"
)

// Settings 프로세스 실행 설정. KIDNEY_ 접두사 환경변수로 변경
type Settings struct {
	ConfigFile string `mapstructure:"config"`
	ParamsFile string `mapstructure:"params"`
	LogLevel   string `mapstructure:"log_level"`
	LogDir     string `mapstructure:"log_dir"`
	Mode       string `mapstructure:"mode"`
}

// LoadSettings 환경변수에서 실행 설정 로드
func LoadSettings() (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("KIDNEY")

	v.SetDefault("config", constants.ConfigFilePath)
	v.SetDefault("params", constants.ParamsFilePath)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", constants.LogDir)
	v.SetDefault("mode", "debug")

	for _, key := range []string{"config", "params", "log_level", "log_dir", "mode"} {
		if err := v.BindEnv(key); err != nil {
			return Settings{}, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
