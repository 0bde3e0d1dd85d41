package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/leep66666/smart-job-assistant-backend/internal/ai"
	"github.com/leep66666/smart-job-assistant-backend/internal/ai/gemini"
	"github.com/leep66666/smart-job-assistant-backend/internal/files"
	"github.com/leep66666/smart-job-assistant-backend/internal/history"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview/audio"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview/evaluate"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview/questions"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview/rtasr"
	"github.com/leep66666/smart-job-assistant-backend/internal/logger"
	"github.com/leep66666/smart-job-assistant-backend/internal/secrets"
	"github.com/leep66666/smart-job-assistant-backend/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the smart-job-assistant HTTP server",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address (default :8080)")

	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the smart-job-assistant", zap.String("version", version))

	layout := files.NewLayout(config.UploadDir)
	if err := layout.Ensure(); err != nil {
		logger.Fatal("creating upload directories", zap.Error(err))
	}

	generator := prepareGenerator(ctx, config.AI, logger)

	asrKey, asrWarning := resolveASRKey(config.Interview.RTASR)
	if asrWarning != "" {
		logger.Warn("transcription degraded", zap.String("reason", asrWarning))
	}

	reconciler := rtasr.NewReconciler(generator, logger)
	transcriber := rtasr.NewClient(rtasr.Config{
		AppID:      config.Interview.RTASR.AppID,
		APIKey:     asrKey,
		URL:        config.Interview.RTASR.URL,
		MinTimeout: time.Duration(config.Interview.RTASR.MinTimeoutSeconds) * time.Second,
	}, reconciler, logger)

	store := interview.NewStore(interview.Deps{
		Audio:       audio.NewIngest(layout.Audio, config.Interview.DecodeCommand, logger),
		Transcriber: transcriber,
		Evaluator:   evaluate.NewEvaluator(generator, logger),
		Logger:      logger,
	})

	var hist *history.Store
	if hist, err = history.Open(config.DatabaseFile); err != nil {
		logger.Warn("opening the report history database failed, history disabled",
			zap.String("path", config.DatabaseFile),
			zap.Error(err),
		)
		hist = nil
	} else {
		defer hist.Close()
	}

	srv := server.New(server.Deps{
		Questions:     questions.NewSource(generator, config.Interview.QuestionDurationSeconds, logger),
		Store:         store,
		Reports:       interview.NewReportBuilder(store, layout.Reports, logger),
		History:       hist,
		Layout:        layout,
		Logger:        logger,
		MaxUploadMB:   config.MaxUploadMB,
		MaxInputChars: config.MaxInputChars,
	})

	if err := srv.Start(ctx, config.Listen); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

// prepareGenerator builds the text-generation collaborator. A missing or
// broken configuration is not fatal: every consumer has a deterministic
// fallback path, so the service starts degraded instead of refusing to start.
func prepareGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) ai.Generator {
	generator, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Warn("text generation disabled, fallback paths active", zap.Error(err))
		return nil
	}

	logger.Info("text generation enabled", zap.String("model", generator.Model()))
	return generator
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is not set")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
	)

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, genLogger)
}

// resolveASRKey loads the transcription service api key. Absence is reported
// as a warning string, not an error: the transcription client degrades to an
// empty transcript when unconfigured.
func resolveASRKey(cfg *RTASRConfig) (string, string) {
	key, err := secrets.LoadOptional(secrets.Source{
		Name: "rtasr api key",
		File: cfg.APIKeyFile,
		Env:  "XFYUN_API_KEY",
	})
	if err != nil {
		return "", err.Error()
	}
	if key == "" {
		return "", "rtasr api key is not configured (set interview.rtasr.api-key-file or XFYUN_API_KEY_FILE)"
	}
	return key, ""
}
