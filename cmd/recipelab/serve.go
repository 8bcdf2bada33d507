package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"recipelab/internal/api"
	"recipelab/internal/auth"
	"recipelab/internal/config"
	"recipelab/internal/logger"
	"recipelab/internal/platform/gemini"
	"recipelab/internal/platform/localllm"
	"recipelab/internal/recipe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}

		log := logger.New(cfg.Log)
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, log)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides server.port)")

	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, err := recipe.Open(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open recipe store: %w", err)
	}
	defer store.Close()

	authService, err := auth.NewService(cfg.Storage.DataDir, cfg.Auth, log)
	if err != nil {
		return fmt.Errorf("failed to start auth service: %w", err)
	}

	scanner, closeScanner, err := newScanner(ctx, cfg.AI, log)
	if err != nil {
		return err
	}
	defer closeScanner()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := api.NewHandler(scanner, store, authService, log, api.Options{
		ScanTimeout:    cfg.AI.Timeout,
		MaxUploadBytes: cfg.AI.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("ai_provider", cfg.AI.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newScanner builds the configured AI provider. A Gemini provider without an
// API key leaves scanning disabled rather than failing startup.
func newScanner(ctx context.Context, cfg config.AIConfig, log *zap.Logger) (api.Scanner, func(), error) {
	noop := func() {}

	switch cfg.Provider {
	case config.ProviderLocal:
		client := localllm.NewClient(cfg.LocalURL, cfg.LocalModel, &http.Client{Timeout: cfg.Timeout})
		return client, noop, nil
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			log.Warn("GEMINI_API_KEY is not set; media analysis is disabled")
			return nil, noop, nil
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			return nil, noop, err
		}
		return client, func() { client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
