// Command agroqc serves the quality-control API.
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"agroqc/internal/adapters/httpapi"
	"agroqc/internal/adapters/summaries"
	"agroqc/internal/blob"
	"agroqc/internal/codegen"
	"agroqc/internal/config"
	"agroqc/internal/core"
	"agroqc/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./configs/agroqc.yaml or ./agroqc.yaml when present)")
	flag.Parse()

	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("deployment", cfg.Name))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("agroqc stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting agroqc",
		zap.String("version", version),
		zap.String("storage", string(cfg.Storage.Driver)),
		zap.String("blob", string(cfg.Blob.Driver)),
	)

	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	codeOpts, err := cfg.CodeOptions()
	if err != nil {
		return err
	}
	svc := core.NewService(store,
		core.WithLogger(core.NewZapLogger(logger)),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{promMetrics, core.NewExpvarMetricsRecorder("agroqc_operations")}),
		core.WithCodeGenerator(codegen.New(codeOpts...)),
		core.WithSensorLimits(cfg.Sensors.Limits()),
	)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	artifacts, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	exports := summaries.NewWorker(svc, artifacts,
		summaries.WithLogger(core.NewZapLogger(logger.Named("exports"))),
		summaries.WithQueueSize(cfg.Export.QueueSize),
	)
	exports.Start()

	gin.SetMode(cfg.Server.Mode)
	router := httpapi.NewRouter(svc, httpapi.Options{
		Summaries: summaries.NewHandler(svc, exports),
		Gatherer:  registry,
		Logger:    logger,
		Compress:  cfg.Server.Compress,
	})
	router.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = exports.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := exports.Stop(shutdownCtx); err != nil {
		logger.Error("export worker shutdown", zap.Error(err))
	}
	logger.Info("agroqc stopped cleanly")
	return nil
}
