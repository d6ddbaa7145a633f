package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/screen-analyst/internal/application"
	"github.com/bryanwahyu/screen-analyst/internal/domain/ai"
	domain "github.com/bryanwahyu/screen-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/screen-analyst/internal/flow"
	"github.com/bryanwahyu/screen-analyst/internal/infra/ai/prompt"
)

const (
	DefaultMaxAttempts      = 3
	DefaultRateLimitBackoff = 30 * time.Second

	releaseTimeout = 15 * time.Second
)

// Texts returned to the caller in place of errors.
const (
	UploadFailedPrefix   = "Video upload failed: "
	UnexpectedErrPrefix  = "Unexpected error: "
	ErrorYAMLPlaceholder = "# An error occurred."
	RetryExhaustedReport = "Maximum retry time exceeded. Please wait about 1 minute and try again."
)

// Recorder receives one observation per finished run.
type Recorder interface {
	RecordAnalysis(outcome string, attempts int, d time.Duration)
	RecordGeneration(status string)
}

type Config struct {
	MaxAttempts      int
	RateLimitBackoff time.Duration
}

// Service runs the upload, poll, generate and parse workflow for one gateway.
// Each AnalyzeVideo call owns its asset and attempt counter, so a Service can be shared.
type Service struct {
	gateway  ai.Gateway
	cfg      Config
	prompt   string
	clock    application.Clock
	recorder Recorder
	logger   *zap.Logger
}

type Option func(*Service)

func WithClock(clock application.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithPrompt(p string) Option {
	return func(s *Service) { s.prompt = p }
}

func NewService(gateway ai.Gateway, cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = DefaultRateLimitBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		gateway: gateway,
		cfg:     cfg,
		prompt:  prompt.GetQAPrompt(),
		clock:   application.SystemClock{},
		logger:  logger.With(zap.String("component", "analysis")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeVideo never fails: every failure path is turned into report text.
func (s *Service) AnalyzeVideo(ctx context.Context, videoPath string) domain.Result {
	start := s.clock.Now()
	log := s.logger.With(zap.String("run_id", uuid.New().String()), zap.String("video", videoPath))

	res, outcome, attempts := s.run(ctx, log, videoPath)

	d := s.clock.Now().Sub(start)
	if s.recorder != nil {
		s.recorder.RecordAnalysis(outcome, attempts, d)
	}
	log.Info("analysis finished",
		zap.String("outcome", outcome),
		zap.Int("attempts", attempts),
		zap.Duration("duration", d),
	)
	return res
}

func (s *Service) run(ctx context.Context, log *zap.Logger, videoPath string) (domain.Result, string, int) {
	enter(log, domain.StageUploading)
	asset, err := s.gateway.UploadAsset(ctx, videoPath)
	if err == nil {
		log = log.With(zap.String("asset", asset.Name))
		defer s.release(ctx, log, asset)
		enter(log, domain.StagePolling)
		asset, err = s.gateway.AwaitReady(ctx, asset)
	}
	if err != nil {
		enter(log, domain.StageUploadFailed, zap.Error(err))
		return domain.Result{
			HumanReadableReport: UploadFailedPrefix + err.Error(),
			MaestroYAML:         "",
		}, domain.OutcomeUploadFailed, 0
	}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		enter(log, domain.StageGenerating, zap.Int("attempt", attempt))

		raw, err := s.gateway.Generate(ctx, asset, s.prompt)
		if err == nil {
			var res domain.Result
			if res, err = ParseResult(raw); err == nil {
				s.observe("ok")
				enter(log, domain.StageSuccess, zap.Int("attempt", attempt))
				s.lint(log, res.MaestroYAML)
				return res, domain.OutcomeSuccess, attempt
			}
		}

		if ai.IsTransient(err) {
			s.observe("rate_limited")
			enter(log, domain.StageRateLimited, zap.Int("attempt", attempt), zap.Error(err))
			if attempt == s.cfg.MaxAttempts {
				break
			}
			log.Warn("quota exhausted, backing off", zap.Duration("wait", s.cfg.RateLimitBackoff))
			if serr := s.clock.Sleep(ctx, s.cfg.RateLimitBackoff); serr != nil {
				err = fmt.Errorf("backoff interrupted: %w", serr)
			} else {
				continue
			}
		}

		s.observe("error")
		enter(log, domain.StageOtherFailure, zap.Int("attempt", attempt), zap.Error(err))
		return domain.Result{
			HumanReadableReport: UnexpectedErrPrefix + err.Error(),
			MaestroYAML:         ErrorYAMLPlaceholder,
		}, domain.OutcomeGenerationFailed, attempt
	}

	enter(log, domain.StageExhausted, zap.Error(ai.ErrRetryBudgetExhausted))
	return domain.Result{
		HumanReadableReport: RetryExhaustedReport,
		MaestroYAML:         "",
	}, domain.OutcomeExhausted, s.cfg.MaxAttempts
}

// release deletes the remote asset when the gateway supports it. Failures are only logged.
func (s *Service) release(ctx context.Context, log *zap.Logger, asset ai.Asset) {
	r, ok := s.gateway.(ai.Releaser)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := r.Release(ctx, asset); err != nil {
		log.Warn("failed to release asset", zap.Error(err))
	}
}

func (s *Service) observe(status string) {
	if s.recorder != nil {
		s.recorder.RecordGeneration(status)
	}
}

func (s *Service) lint(log *zap.Logger, yamlText string) {
	report := flow.Lint(yamlText)
	if len(report.Warnings) > 0 {
		log.Warn("generated flow has lint warnings",
			zap.String("app_id", report.Config.AppID),
			zap.Strings("warnings", report.Warnings),
		)
		return
	}
	log.Debug("generated flow", zap.String("app_id", report.Config.AppID), zap.Int("commands", len(report.Commands)))
}

func enter(log *zap.Logger, stage domain.Stage, fields ...zap.Field) {
	fields = append(fields, zap.String("stage", string(stage)))
	if stage.Terminal() && stage != domain.StageSuccess {
		log.Warn("analysis stage", fields...)
		return
	}
	log.Info("analysis stage", fields...)
}

// GatewayFactory builds a gateway for one credential. It must fail with
// ai.ErrMissingCredential without network access when the credential is absent.
type GatewayFactory func(apiKey string) (ai.Gateway, error)

// Analyzer builds a Service per request credential, mirroring a fresh
// analyzer per user action.
type Analyzer struct {
	NewGateway GatewayFactory
	Config     Config
	Logger     *zap.Logger
	Options    []Option
}

// Analyze returns an error only when the gateway cannot be configured.
func (a *Analyzer) Analyze(ctx context.Context, req domain.Request) (domain.Result, error) {
	if a.NewGateway == nil {
		return domain.Result{}, errors.New("analysis: no gateway factory configured")
	}
	gw, err := a.NewGateway(req.APIKey)
	if err != nil {
		return domain.Result{}, err
	}
	return NewService(gw, a.Config, a.Logger, a.Options...).AnalyzeVideo(ctx, req.VideoPath), nil
}
