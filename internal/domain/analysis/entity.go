package analysis

// Request is one user action: a local recording plus the credential to analyze it with.
type Request struct {
	VideoPath string
	APIKey    string
}

// Result is what the caller renders. Both fields are always present,
// failures are reported as text inside them.
type Result struct {
	HumanReadableReport string `json:"human_readable_report"`
	MaestroYAML         string `json:"maestro_yaml"`
}

// Stage tracks where a single analysis run is.
type Stage string

const (
	StageUploading    Stage = "uploading"
	StagePolling      Stage = "polling"
	StageUploadFailed Stage = "upload_failed"
	StageGenerating   Stage = "generating"
	StageRateLimited  Stage = "rate_limited"
	StageSuccess      Stage = "success"
	StageOtherFailure Stage = "other_failure"
	StageExhausted    Stage = "exhausted"
)

// Terminal reports whether no further transition can happen from s.
func (s Stage) Terminal() bool {
	switch s {
	case StageUploadFailed, StageSuccess, StageOtherFailure, StageExhausted:
		return true
	}
	return false
}

// Outcome labels used for metrics.
const (
	OutcomeSuccess          = "success"
	OutcomeUploadFailed     = "upload_failed"
	OutcomeGenerationFailed = "generation_failed"
	OutcomeExhausted        = "exhausted"
)
