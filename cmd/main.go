package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/emotivoice/adapters/asr"
	"github.com/satriahrh/emotivoice/adapters/history"
	"github.com/satriahrh/emotivoice/adapters/llm"
	"github.com/satriahrh/emotivoice/adapters/tts"
	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/api"
	"github.com/satriahrh/emotivoice/internal/artifact"
	"github.com/satriahrh/emotivoice/internal/audio"
	"github.com/satriahrh/emotivoice/internal/auth"
	"github.com/satriahrh/emotivoice/internal/config"
	"github.com/satriahrh/emotivoice/internal/metrics"
	"github.com/satriahrh/emotivoice/usecase"
)

const shutdownTimeout = 10 * time.Second

var defaultCORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

func main() {
	configPath := flag.String("config", envOr("EMOTIVOICE_CONFIG", "config.yaml"), "path to the YAML configuration")
	issueToken := flag.String("issue-token", "", "print a bearer token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", auth.DefaultTokenTTL, "lifetime of the token printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := newLogger(cfg.Server.Debug)
	defer logger.Sync()

	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, logger)
	if *issueToken != "" {
		if authenticator == nil {
			logger.Fatal("auth.jwt_secret must be set to issue tokens")
		}
		token, err := authenticator.GenerateToken(*issueToken, "cli", *tokenTTL)
		if err != nil {
			logger.Fatal("Failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg, authenticator, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, authenticator *auth.Authenticator, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector("emotivoice", logger)
	}

	store, err := artifact.NewStore(cfg.Cache.Dir)
	if err != nil {
		return err
	}
	logger.Info("Audio cache ready", zap.String("dir", store.Dir()))

	// Initialize adapters
	backends := cfg.System.DefaultModel

	var speechToText repositories.SpeechToText
	if cfg.AudioEnabled() {
		speechToText, err = asr.New(backends.ASR, cfg.ASRNode(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize asr: %w", err)
		}
		defer closeAdapter(speechToText, logger)
	} else {
		logger.Info("Running in text only mode, speech recognition disabled")
	}

	languageModel, err := llm.New(backends.LLM, cfg.LLMNode(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize llm: %w", err)
	}

	textToSpeech, err := tts.New(backends.TTS, cfg.TTSNode(), store, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tts: %w", err)
	}
	defer closeAdapter(textToSpeech, logger)

	historyRepo, closeHistory, err := history.New(ctx, cfg.History, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := closeHistory(closeCtx); err != nil {
			logger.Warn("Failed to close history store", zap.Error(err))
		}
	}()

	// Initialize usecase services
	pipeline := usecase.NewPipeline(usecase.NewPipelineConfig(cfg), speechToText, languageModel, textToSpeech, historyRepo, collector, store, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Debug = cfg.Server.Debug

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowCredentials: true,
		AllowHeaders:     []string{"*"},
	}))

	var protect echo.MiddlewareFunc
	if authenticator != nil {
		protect = authenticator.Middleware()
	}

	handler := api.NewHandler(pipeline, historyRepo, store, audio.NewDecoder(), collector, backends, logger)
	api.InitRoutes(e, handler, protect)

	janitor := artifact.NewJanitor(store, cfg.Cache.MaxAge, cfg.Cache.SweepInterval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server started",
			zap.String("addr", cfg.Server.Addr),
			zap.String("chatMode", cfg.System.ChatMode),
			zap.String("asr", backends.ASR),
			zap.String("llm", backends.LLM),
			zap.String("tts", backends.TTS))
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return janitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newLogger(debug bool) *zap.Logger {
	build := zap.NewProduction
	if debug {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func closeAdapter(adapter any, logger *zap.Logger) {
	switch c := adapter.(type) {
	case io.Closer:
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close adapter", zap.Error(err))
		}
	case interface{ Close() }:
		c.Close()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
