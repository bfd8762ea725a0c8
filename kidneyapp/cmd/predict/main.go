package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model/tfmodel"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/prediction"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/utils"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s <image>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fail to load settings: %v\n", err)
		return 1
	}

	// 결과는 stdout, 로그는 stderr
	log, err := utils.NewLogger(settings.Mode, settings.LogLevel, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fail to initialize logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	m, err := config.NewManager(log, settings.ConfigFile, settings.ParamsFile)
	if err != nil {
		log.Error("Fail to load configuration", zap.Error(err))
		return 1
	}
	cfg, err := m.PredictionConfig()
	if err != nil {
		log.Error("Fail to load configuration", zap.Error(err))
		return 1
	}

	result, err := prediction.New(log, cfg, tfmodel.Open).Predict(flag.Arg(0))
	if err != nil {
		log.Error("Prediction failed", zap.String("image", flag.Arg(0)), zap.Error(err))
		return 1
	}

	b, err := json.MarshalIndent([]prediction.Result{result}, "", "    ")
	if err != nil {
		log.Error("Fail to encode result", zap.Error(err))
		return 1
	}
	fmt.Println(string(b))

	return 0
}
