package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/screen-analyst/internal/application"
	"github.com/bryanwahyu/screen-analyst/internal/domain/ai"
)

// EnvAPIKey is consulted when Config.APIKey is empty.
const EnvAPIKey = "GOOGLE_API_KEY"

const (
	defaultBaseURL      = "https://generativelanguage.googleapis.com"
	defaultModel        = "gemini-2.5-flash"
	defaultPollInterval = 10 * time.Second
	defaultMaxPolls     = 60
	defaultTimeout      = 180 * time.Second
)

// Config for the Gemini gateway.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	// MaxPolls bounds AwaitReady. Zero means the default, negative means unbounded.
	MaxPolls int
	Timeout  time.Duration
}

// Client talks to the Gemini Files API and generateContent endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	clock  application.Clock
	logger *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithClock(clock application.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient validates the credential and applies defaults. It never touches the network.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv(EnvAPIKey))
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ai.ErrMissingCredential)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPolls == 0 {
		cfg.MaxPolls = defaultMaxPolls
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		clock:  application.SystemClock{},
		logger: logger.With(zap.String("component", "gemini")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Model() string { return c.cfg.Model }

type fileResource struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	URI         string `json:"uri,omitempty"`
	State       string `json:"state,omitempty"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (f fileResource) asset() ai.Asset {
	state, _ := mapState(f.State)
	return ai.Asset{
		Name:     f.Name,
		URI:      f.URI,
		MimeType: f.MimeType,
		State:    state,
	}
}

// toAsset converts f and logs remote states this client does not know.
func (c *Client) toAsset(f fileResource) ai.Asset {
	if _, known := mapState(f.State); !known {
		c.logger.Warn("unknown asset state, still waiting",
			zap.String("asset", f.Name),
			zap.String("state", f.State),
		)
	}
	return f.asset()
}

// mapState maps the Files API state. STATE_UNSPECIFIED and unknown states keep
// the asset PROCESSING, so generation never runs on a file that is not ACTIVE;
// MaxPolls bounds the wait.
func mapState(s string) (ai.AssetState, bool) {
	switch s {
	case "ACTIVE":
		return ai.AssetReady, true
	case "FAILED":
		return ai.AssetFailed, true
	case "PROCESSING", "STATE_UNSPECIFIED", "":
		return ai.AssetProcessing, true
	default:
		return ai.AssetProcessing, false
	}
}

// UploadAsset runs the two-step resumable upload.
func (c *Client) UploadAsset(ctx context.Context, path string) (ai.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return ai.Asset{}, fmt.Errorf("%w: %v", ai.ErrUpload, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ai.Asset{}, fmt.Errorf("%w: %v", ai.ErrUpload, err)
	}
	mimeType := ai.VideoMimeType(path)

	c.logger.Info("uploading asset",
		zap.String("path", path),
		zap.Int64("size_bytes", info.Size()),
		zap.String("mime_type", mimeType),
	)

	uploadURL, err := c.startUpload(ctx, filepath.Base(path), mimeType, info.Size())
	if err != nil {
		return ai.Asset{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, f)
	if err != nil {
		return ai.Asset{}, fmt.Errorf("%w: %v", ai.ErrUpload, err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err := c.http.Do(req)
	if err != nil {
		return ai.Asset{}, fmt.Errorf("%w: %v", ai.ErrUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return ai.Asset{}, fmt.Errorf("%w: status=%d body=%s", ai.ErrUpload, resp.StatusCode, string(body))
	}

	var out struct {
		File fileResource `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ai.Asset{}, fmt.Errorf("%w: failed to decode upload response: %v", ai.ErrUpload, err)
	}
	if out.File.Name == "" {
		return ai.Asset{}, fmt.Errorf("%w: upload response has no file name", ai.ErrUpload)
	}

	asset := c.toAsset(out.File)
	c.logger.Info("asset uploaded", zap.String("asset", asset.Name), zap.String("state", string(asset.State)))
	return asset, nil
}

func (c *Client) startUpload(ctx context.Context, displayName, mimeType string, size int64) (string, error) {
	meta, _ := json.Marshal(map[string]any{
		"file": map[string]string{"display_name": displayName},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload/v1beta/files", bytes.NewReader(meta))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrUpload, err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: start status=%d body=%s", ai.ErrUpload, resp.StatusCode, string(body))
	}

	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", fmt.Errorf("%w: missing upload url", ai.ErrUpload)
	}
	return uploadURL, nil
}

// AwaitReady re-fetches the asset every PollInterval while it is processing.
func (c *Client) AwaitReady(ctx context.Context, asset ai.Asset) (ai.Asset, error) {
	polls := 0
	for asset.State == ai.AssetProcessing {
		if c.cfg.MaxPolls > 0 && polls >= c.cfg.MaxPolls {
			return asset, fmt.Errorf("%w: %s still processing after %d polls", ai.ErrPollingTimeout, asset.Name, polls)
		}
		c.logger.Debug("asset processing, waiting",
			zap.String("asset", asset.Name),
			zap.Int("poll", polls+1),
			zap.Duration("interval", c.cfg.PollInterval),
		)
		if err := c.clock.Sleep(ctx, c.cfg.PollInterval); err != nil {
			return asset, fmt.Errorf("await %s: %w", asset.Name, err)
		}

		next, err := c.getFile(ctx, asset.Name)
		if err != nil {
			return asset, err
		}
		asset = next
		polls++
	}

	if asset.State == ai.AssetFailed {
		return asset, fmt.Errorf("%w: %s", ai.ErrRemoteProcessing, asset.Name)
	}
	return asset, nil
}

func (c *Client) getFile(ctx context.Context, name string) (ai.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1beta/"+name, nil)
	if err != nil {
		return ai.Asset{}, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return ai.Asset{}, fmt.Errorf("get %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return ai.Asset{}, fmt.Errorf("get %s: status=%d body=%s", name, resp.StatusCode, string(body))
	}

	var f fileResource
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return ai.Asset{}, fmt.Errorf("failed to decode file %s: %w", name, err)
	}
	if f.State == "FAILED" && f.Error != nil {
		c.logger.Warn("asset processing failed", zap.String("asset", name), zap.String("reason", f.Error.Message))
	}
	return c.toAsset(f), nil
}

// Release deletes the uploaded file. Gemini would expire it after 48h anyway.
func (c *Client) Release(ctx context.Context, asset ai.Asset) error {
	if asset.Name == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.BaseURL+"/v1beta/"+asset.Name, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete %s: status=%d body=%s", asset.Name, resp.StatusCode, string(body))
	}
	return nil
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate sends the asset and prompt in one request and returns the raw JSON text.
func (c *Client) Generate(ctx context.Context, asset ai.Asset, prompt string) (string, error) {
	var body generateRequest
	body.Contents = []content{{
		Role: "user",
		Parts: []part{
			{FileData: &fileData{MimeType: asset.MimeType, FileURI: asset.URI}},
			{Text: prompt},
		},
	}}
	body.GenerationConfig.ResponseMimeType = "application/json"

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrGeneration, err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrGeneration, err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", classify(resp)
	}

	var gResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ai.ErrGeneration, err)
	}
	if len(gResp.Candidates) == 0 {
		reason := "no candidates"
		if gResp.PromptFeedback != nil && gResp.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + gResp.PromptFeedback.BlockReason
		}
		return "", fmt.Errorf("%w: %s", ai.ErrGeneration, reason)
	}

	var sb strings.Builder
	for _, p := range gResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// classify maps an error response onto the gateway taxonomy.
func classify(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var apiErr apiError
	_ = json.Unmarshal(raw, &apiErr)

	if resp.StatusCode == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED" {
		return fmt.Errorf("%w: status=%d message=%s", ai.ErrQuotaExceeded, resp.StatusCode, apiErr.Error.Message)
	}
	msg := apiErr.Error.Message
	if msg == "" {
		msg = string(raw)
	}
	return fmt.Errorf("%w: status=%d message=%s", ai.ErrGeneration, resp.StatusCode, msg)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
}
