package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moneihq/monei-voice/adapters/responder"
	"github.com/moneihq/monei-voice/adapters/store"
	"github.com/moneihq/monei-voice/adapters/stt"
	"github.com/moneihq/monei-voice/adapters/tts"
	"github.com/moneihq/monei-voice/domain/repositories"
	"github.com/moneihq/monei-voice/internal/api"
	"github.com/moneihq/monei-voice/internal/audio"
	"github.com/moneihq/monei-voice/internal/auth"
	"github.com/moneihq/monei-voice/internal/config"
	"github.com/moneihq/monei-voice/internal/events"
	"github.com/moneihq/monei-voice/internal/metrics"
	"github.com/moneihq/monei-voice/usecase"
)

func main() {
	// A missing .env file is fine; the environment may carry everything.
	godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	ingestor, err := audio.NewIngestor(audio.IngestorConfig{
		Dir:        cfg.Audio.TempDir,
		MaxBytes:   cfg.Audio.MaxUploadBytes,
		FFmpegPath: cfg.Audio.FFmpegPath,
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	}, logger)
	if err != nil {
		return fmt.Errorf("audio ingestor: %w", err)
	}

	speechToText, err := buildSTT(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("speech to text: %w", err)
	}

	catalog, err := tts.NewCatalog(cfg.TTS.DefaultVoice)
	if err != nil {
		return fmt.Errorf("voice catalog: %w", err)
	}
	textToSpeech, err := tts.NewYarnGPT(tts.YarnGPTConfig{
		BaseURL:        cfg.TTS.BaseURL,
		APIKey:         cfg.TTS.APIKey,
		ResponseFormat: cfg.TTS.ResponseFormat,
		Timeout:        cfg.TTS.Timeout,
		MaxRetries:     cfg.TTS.MaxRetries,
	}, catalog, logger)
	if err != nil {
		return fmt.Errorf("text to speech: %w", err)
	}

	replySource, err := responder.New(cfg.Responder, logger)
	if err != nil {
		return fmt.Errorf("reply provider: %w", err)
	}

	artifactStore, janitor, err := buildStore(cfg, m, logger)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}
	go janitor(ctx)

	authn, err := auth.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("authenticator: %w", err)
	}

	hub := events.NewHub(logger)
	go hub.Run(ctx)

	pipeline := usecase.NewPipeline(usecase.PipelineConfig{
		Ingestor:     ingestor,
		STT:          speechToText,
		Responder:    replySource,
		TTS:          textToSpeech,
		Store:        artifactStore,
		Events:       hub,
		Metrics:      m,
		ReplyTimeout: cfg.Responder.Timeout,
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Audio.MaxUploadBytes>>20+1)))

	api.NewServer(api.ServerConfig{
		Exchanger:    pipeline,
		Store:        artifactStore,
		TTS:          textToSpeech,
		Hub:          hub,
		Authn:        authn,
		Metrics:      m,
		DefaultVoice: catalog.Default(),
		MaxUpload:    cfg.Audio.MaxUploadBytes,
	}, logger).Register(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("stt_provider", cfg.STT.Provider),
			zap.String("responder_provider", cfg.Responder.Provider),
			zap.String("store_backend", cfg.Store.Backend))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func buildSTT(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SpeechToText, error) {
	switch cfg.STT.Provider {
	case "whisper":
		return stt.NewWhisperEngine(stt.WhisperConfig{
			BinaryPath:  cfg.STT.Whisper.BinaryPath,
			ModelPath:   cfg.STT.Whisper.ModelPath,
			Language:    cfg.STT.Whisper.Language,
			Threads:     cfg.STT.Whisper.Threads,
			Concurrency: cfg.STT.Whisper.Concurrency,
		}, logger)
	case "google":
		return stt.NewGoogleSpeechToText(ctx, cfg.STT.Google.Language, cfg.Audio.SampleRate, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.STT.Provider)
	}
}

func buildStore(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (repositories.ArtifactStore, func(context.Context), error) {
	switch cfg.Store.Backend {
	case "filesystem":
		fs, err := store.NewFilesystem(store.FilesystemConfig{
			Dir:           cfg.Store.Dir,
			TTL:           cfg.Store.TTL,
			MaxBytes:      cfg.Store.MaxBytes,
			SweepInterval: cfg.Store.SweepInterval,
		}, m, logger)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Run, nil
	case "s3":
		s3, err := store.NewS3(store.S3Config{
			Endpoint:      cfg.Store.S3.Endpoint,
			Bucket:        cfg.Store.S3.Bucket,
			Region:        cfg.Store.S3.Region,
			AccessKey:     cfg.Store.S3.AccessKey,
			SecretKey:     cfg.Store.S3.SecretKey,
			Secure:        cfg.Store.S3.Secure,
			TTL:           cfg.Store.TTL,
			SweepInterval: cfg.Store.SweepInterval,
		}, m, logger)
		if err != nil {
			return nil, nil, err
		}
		return s3, s3.Run, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Store.Backend)
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var zapConfig zap.Config
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}
