package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model/tfmodel"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/pipeline"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fail to load settings: %v\n", err)
		return 1
	}

	log, err := utils.NewLogger(settings.Mode, settings.LogLevel, settings.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fail to initialize logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := pipeline.Deps{
		Log:        log,
		ConfigFile: settings.ConfigFile,
		ParamsFile: settings.ParamsFile,
		Open:       tfmodel.Open,
	}

	if err := pipeline.Run(ctx, log, pipeline.Evaluation(deps)); err != nil {
		return 1
	}

	return 0
}
