package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/bryanwahyu/screen-analyst/internal/domain/ai"
	"github.com/bryanwahyu/screen-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/screen-analyst/internal/middleware"
)

const (
	formField        = "video"
	multipartMemory  = 32 << 20
	defaultMaxUpload = 200 << 20
	flowFileName     = "flow.yaml"
)

// Analyzer is the core entry point the API renders.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

// MetricsRecorder is satisfied by metrics.Collector.
type MetricsRecorder interface {
	middleware.HTTPRecorder
	Handler() http.Handler
}

type Options struct {
	Logger         *zap.Logger
	Metrics        MetricsRecorder
	RateLimiter    *middleware.RateLimiter
	HealthCheckers map[string]middleware.HealthChecker
	CORSOrigins    []string
	MaxUploadBytes int64

	// Gateway is reported on /health/ready. Its CredentialEnv is named in
	// missing-credential errors.
	Gateway middleware.GatewayInfo

	// TempDir holds uploads while they are analyzed. Empty means os.TempDir().
	TempDir string
}

type Router struct {
	analyzer Analyzer
	opts     Options
	logger   *zap.Logger
}

func NewRouter(analyzer Analyzer, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	r := &Router{analyzer: analyzer, opts: opts, logger: opts.Logger.With(zap.String("component", "http"))}

	mux := chi.NewRouter()
	mux.Use(middleware.Logging(r.logger))
	if opts.Metrics != nil {
		mux.Use(middleware.Metrics(opts.Metrics))
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.HeaderAPIKey},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler(opts.Gateway, opts.HealthCheckers))
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics.Handler())
	}

	mux.Route("/v1", func(rt chi.Router) {
		if opts.RateLimiter != nil {
			rt.Use(middleware.RateLimit(opts.RateLimiter))
		}
		rt.Use(middleware.CredentialPassthrough)
		rt.Post("/analyze", r.wrap(r.handleAnalyze))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var br badRequest
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &br):
				http.Error(w, br.msg, http.StatusBadRequest)
			case errors.As(err, &tooLarge):
				http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			case errors.Is(err, ai.ErrMissingCredential):
				http.Error(w, r.missingCredentialMessage(), http.StatusBadRequest)
			default:
				r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func (r *Router) missingCredentialMessage() string {
	msg := "please provide an API key (" + middleware.HeaderAPIKey + " header)"
	if env := r.opts.Gateway.CredentialEnv; env != "" {
		msg += " or configure " + env
	}
	return msg
}

// POST /v1/analyze
// Multipart field "video" (.mp4, .mov, .avi). Add ?format=yaml to download the flow.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest{fmt.Sprintf("invalid multipart body: %v", err)}
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile(formField)
	if err != nil {
		return badRequest{fmt.Sprintf("form field %q is required", formField)}
	}
	defer file.Close()

	ext, err := middleware.ValidateVideoName(header.Filename)
	if err != nil {
		return badRequest{err.Error()}
	}

	path, err := r.saveTemp(file, ext)
	if err != nil {
		return err
	}
	// the caller side owns the recording, remove it whatever the outcome
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			r.logger.Warn("failed to remove temp recording", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	res, err := r.analyzer.Analyze(req.Context(), analysis.Request{
		VideoPath: path,
		APIKey:    middleware.GetAPIKeyFromContext(req.Context()),
	})
	if err != nil {
		return err
	}

	if req.URL.Query().Get("format") == "yaml" {
		w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", flowFileName))
		_, err := io.WriteString(w, res.MaestroYAML)
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(res)
}

func (r *Router) saveTemp(src io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp(r.opts.TempDir, "recording-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), nil
}
