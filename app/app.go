package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	httpAdapter "media-service/ddd/adapter/http"
	uploadApp "media-service/ddd/application/app"
	"media-service/ddd/domain/gateway"
	"media-service/ddd/domain/port"
	"media-service/ddd/domain/service"
	"media-service/ddd/infrastructure/event"
	"media-service/ddd/infrastructure/executor"
	"media-service/internal/resource"
	"media-service/pkg/config"
	"media-service/pkg/kafka"
	"media-service/pkg/logger"
	"media-service/pkg/observability"
	"media-service/pkg/task"
)

func Run() {
	// 先使用标准输出确保能看到日志
	fmt.Println("[STARTUP] Starting media service...")

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	config.SetGlobalConfig(cfg)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	defer logService.Close()
	logger.Debug("Logger initialized", map[string]interface{}{
		"config": cfgPath,
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
	})

	if profiler := observability.StartProfiling(cfg.Profiling); profiler != nil {
		defer func() { _ = profiler.Stop() }()
	}

	// 存储配置错误在启动阶段暴露，而不是在第一次请求时
	store, err := resource.OpenStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to open storage error=%v", err)
	}
	defer store.Close()
	if err := store.EnsureBucket(context.Background()); err != nil {
		logger.Warnf("Bucket check failed bucket=%s error=%v", cfg.Storage.Bucket, err)
	}

	ffmpeg := executor.NewFFmpegExecutor(cfg.Transcode.FFmpeg)
	if _, err := ffmpeg.LookPath(); err != nil {
		logger.Fatalf("FFmpeg binary not found, please install or set transcode.ffmpeg.binary_path binary=%s error=%v", cfg.Transcode.FFmpeg.BinaryPath, err)
	}

	runner := newEncoderRunner(cfg, ffmpeg)
	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	transcodeService := service.NewTranscodeService(store.Gateway(), runner, service.OptionsFromConfig(cfg))
	app := uploadApp.NewUploadApp(store.Gateway(), transcodeService, publisher, uploadApp.UploadOptions{
		Bucket:        cfg.Storage.Bucket,
		PresignExpiry: cfg.Storage.PresignExpiry,
		PathPrefixes:  store.PathPrefixes(),
	})

	if err := task.StartAll(context.Background()); err != nil {
		logger.Fatalf("Failed to start background tasks error=%v", err)
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := httpAdapter.NewRouter(app, cfg.Server.MaxUploadBytes)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start HTTP server error=%v", err)
		}
	}()
	logger.Infof("HTTP server started addr=%s storage=%s bucket=%s", addr, cfg.Storage.Driver, cfg.Storage.Bucket)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to close error=%v", err)
	}
	task.StopAll()

	logger.Infof("Server exited safely")
}

// newEncoderRunner 未配置并发上限时在请求协程内直接编码
func newEncoderRunner(cfg *config.Config, encoder port.Encoder) port.EncoderRunner {
	if cfg.Worker.MaxConcurrentTasks <= 0 {
		return executor.NewInlineRunner(encoder)
	}
	pool := executor.NewPoolRunner(encoder, cfg.Worker.MaxConcurrentTasks, cfg.Worker.QueueCapacity)
	task.Register(pool)
	logger.Infof("Encoder pool enabled workers=%d queue=%d", cfg.Worker.MaxConcurrentTasks, cfg.Worker.QueueCapacity)
	return pool
}

func newPublisher(cfg *config.Config) (gateway.EventPublisher, func()) {
	if !cfg.Kafka.Enabled {
		return gateway.NopPublisher{}, func() {}
	}
	client := kafka.NewClient(cfg.Kafka)
	if err := client.EnsureTopic(cfg.Kafka.Topics.ArtifactsStored, 1, 1); err != nil {
		logger.Warnf("Ensure kafka topic failed topic=%s error=%v", cfg.Kafka.Topics.ArtifactsStored, err)
	}
	logger.Infof("Kafka publisher enabled brokers=%v topic=%s", client.Brokers(), cfg.Kafka.Topics.ArtifactsStored)
	return event.NewKafkaPublisher(client, cfg.Kafka.Topics.ArtifactsStored), client.Close
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	var path string
	switch env {
	case "prod", "production":
		path = "configs/config_prod.yaml"
	case "dev", "development":
		path = "configs/config.dev.yaml"
	default:
		path = fmt.Sprintf("configs/config.%s.yaml", env)
	}
	if _, err := os.Stat(path); err != nil {
		// 无配置文件时仅使用默认值和环境变量
		return ""
	}
	return path
}
