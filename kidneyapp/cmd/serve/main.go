package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/api"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/cache"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/config"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/constants"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/model/tfmodel"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/pipeline"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/prediction"
	"github.com/harrison-roh/kidney-classification-with-transfer-learning/kidneyapp/utils"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", ":8080", "Listen address")
	uploads := flag.String("uploads", constants.UploadsPath, "Path for uploaded images")
	redisAddr := flag.String("redis", "", "Redis address for prediction cache (empty to disable)")
	redisTTL := flag.Duration("redis-ttl", 24*time.Hour, "Prediction cache TTL")
	flag.Parse()

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

	if err := utils.CreateDirectories(log, []string{*uploads}, true); err != nil {
		log.Error("Fail to create upload directory", zap.Error(err))
		return 1
	}

	m, err := config.NewManager(log, settings.ConfigFile, settings.ParamsFile)
	if err != nil {
		log.Error("Fail to load configuration", zap.Error(err))
		return 1
	}
	predCfg, err := m.PredictionConfig()
	if err != nil {
		log.Error("Fail to load configuration", zap.Error(err))
		return 1
	}

	deps := pipeline.Deps{
		Log:        log,
		ConfigFile: settings.ConfigFile,
		ParamsFile: settings.ParamsFile,
		Open:       tfmodel.Open,
	}

	a := &api.APIs{
		P: prediction.New(log, predCfg, tfmodel.Open),
		T: func(ctx context.Context) error {
			return pipeline.RunAll(ctx, log, pipeline.Stages(deps)...)
		},
		UploadsPath: *uploads,
		Log:         log,
	}

	if *redisAddr != "" {
		rc := cache.NewRedis(cache.Config{Addr: *redisAddr, TTL: *redisTTL})
		defer rc.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rc.Ping(ctx)
		cancel()
		if err != nil {
			log.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			log.Info("redis connected successfully", zap.String("addr", *redisAddr))
			a.C = rc
		}
	}

	if settings.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:    *addr,
		Handler: api.NewRouter(a),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", *addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
			return 1
		}
	case <-ctx.Done():
		log.Info("server shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
			return 1
		}
	}

	return 0
}
