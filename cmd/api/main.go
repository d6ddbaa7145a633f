package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/screen-analyst/internal/application/analysis"
	"github.com/bryanwahyu/screen-analyst/internal/config"
	"github.com/bryanwahyu/screen-analyst/internal/domain/ai"
	"github.com/bryanwahyu/screen-analyst/internal/infra/ai/gemini"
	"github.com/bryanwahyu/screen-analyst/internal/infra/ai/openai"
	"github.com/bryanwahyu/screen-analyst/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/screen-analyst/internal/infra/storage"
	"github.com/bryanwahyu/screen-analyst/internal/logger"
	"github.com/bryanwahyu/screen-analyst/internal/metrics"
	"github.com/bryanwahyu/screen-analyst/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()
	collector := metrics.NewCollector("screen_analyst")
	checkers := map[string]middleware.HealthChecker{}

	// init gateway factory
	var newGateway appanalysis.GatewayFactory
	gatewayInfo := middleware.GatewayInfo{Provider: cfg.Gateway.Provider, Model: cfg.Gateway.Model}
	switch cfg.Gateway.Provider {
	case config.ProviderOpenAI:
		gatewayInfo.CredentialEnv = openai.EnvAPIKey
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
			cfg.Minio.URLExpiry,
		)
		if err != nil {
			lg.Fatal("minio init error", zap.Error(err))
		}
		checkers["minio"] = store
		newGateway = func(apiKey string) (ai.Gateway, error) {
			return openai.NewClient(openai.Config{
				APIKey:      cfg.ResolveAPIKey(apiKey),
				BaseURL:     cfg.Gateway.BaseURL,
				Model:       cfg.Gateway.Model,
				VideoModels: cfg.Gateway.VideoModels,
			}, store, lg)
		}
	default:
		gatewayInfo.CredentialEnv = gemini.EnvAPIKey
		newGateway = func(apiKey string) (ai.Gateway, error) {
			return gemini.NewClient(gemini.Config{
				APIKey:       cfg.ResolveAPIKey(apiKey),
				BaseURL:      cfg.Gateway.BaseURL,
				Model:        cfg.Gateway.Model,
				PollInterval: cfg.Gateway.PollInterval,
				MaxPolls:     cfg.Gateway.MaxPolls,
				Timeout:      cfg.Gateway.Timeout,
			}, lg)
		}
	}

	gatewayInfo.DefaultCredential = cfg.ResolveAPIKey("") != "" || strings.TrimSpace(os.Getenv(gatewayInfo.CredentialEnv)) != ""
	// requests may still bring their own key, so only a broken setup fails readiness
	checkers["gateway"] = middleware.CheckerFunc(func(context.Context) error {
		if _, err := newGateway(""); err != nil && !errors.Is(err, ai.ErrMissingCredential) {
			return err
		}
		return nil
	})

	// init analyzer
	analyzer := &appanalysis.Analyzer{
		NewGateway: newGateway,
		Config: appanalysis.Config{
			MaxAttempts:      cfg.Analysis.MaxAttempts,
			RateLimitBackoff: cfg.Analysis.RateLimitBackoff,
		},
		Logger:  lg,
		Options: []appanalysis.Option{appanalysis.WithRecorder(collector)},
	}

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(analyzer, httpserver.Options{
		Logger:         lg,
		Metrics:        collector,
		RateLimiter:    middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst),
		HealthCheckers: checkers,
		Gateway:        gatewayInfo,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Minute,
		// upload, processing and up to three generations with backoff
		WriteTimeout: 20 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		lg.Info("server listening",
			zap.String("addr", addr),
			zap.String("provider", cfg.Gateway.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	lg.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		lg.Error("shutdown error", zap.Error(err))
	}
}
