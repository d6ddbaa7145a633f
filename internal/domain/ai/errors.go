package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
// It is the only gateway error the orchestrator treats as transient.
var ErrQuotaExceeded = errors.New("ai quota exceeded")

var (
	// ErrMissingCredential is returned by gateway constructors before any remote call.
	ErrMissingCredential = errors.New("ai credential missing")
	ErrUpload            = errors.New("asset upload failed")
	// ErrRemoteProcessing means the remote service marked the asset FAILED.
	ErrRemoteProcessing = errors.New("remote asset processing failed")
	ErrPollingTimeout   = errors.New("asset did not become ready in time")
	ErrGeneration       = errors.New("content generation failed")
	// ErrUnsupportedModel means the configured model cannot take a video input.
	ErrUnsupportedModel = errors.New("model does not accept video input")
	// ErrRetryBudgetExhausted is reported when every attempt was rate limited.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// IsTransient reports whether err is worth retrying after a backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
