package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bryanwahyu/screen-analyst/internal/domain/ai"
)

// EnvAPIKey is consulted when Config.APIKey is empty.
const EnvAPIKey = "OPENAI_API_KEY"

const maxTokens = 4096

// Stager makes a local recording reachable by URL for the model.
type Stager interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// VideoModels lists the models that read a video URL from the chat media
	// part. Entries ending in "*" match by prefix.
	VideoModels []string
}

// Client is a gateway for OpenAI-compatible chat endpoints. The recording is
// staged in object storage and its URL travels as a media content part.
// go-openai only models the image_url part, so the endpoint must accept a
// video behind it; other models are refused up front.
type Client struct {
	*openai.Client
	Model  string
	stager Stager
	logger *zap.Logger
}

func NewClient(cfg Config, stager Stager, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv(EnvAPIKey))
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ai.ErrMissingCredential)
	}
	if stager == nil {
		return nil, errors.New("openai: staging store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if !ai.AcceptsVideo(model, cfg.VideoModels) {
		return nil, fmt.Errorf("openai: %w: %q is not listed in videoModels", ai.ErrUnsupportedModel, model)
	}
	return &Client{
		Client: openai.NewClientWithConfig(oc),
		Model:  model,
		stager: stager,
		logger: logger.With(zap.String("component", "openai")),
	}, nil
}

// UploadAsset stages the file. A staged object is ready as soon as the put succeeds.
func (c *Client) UploadAsset(ctx context.Context, path string) (ai.Asset, error) {
	key := fmt.Sprintf("recordings/%s/%s", uuid.New().String(), filepath.Base(path))
	url, err := c.stager.Upload(ctx, path, key)
	if err != nil {
		return ai.Asset{}, fmt.Errorf("%w: %v", ai.ErrUpload, err)
	}
	c.logger.Info("asset staged", zap.String("asset", key))
	return ai.Asset{
		Name:     key,
		URI:      url,
		MimeType: ai.VideoMimeType(path),
		State:    ai.AssetReady,
	}, nil
}

func (c *Client) AwaitReady(_ context.Context, asset ai.Asset) (ai.Asset, error) {
	if asset.State == ai.AssetFailed {
		return asset, fmt.Errorf("%w: %s", ai.ErrRemoteProcessing, asset.Name)
	}
	asset.State = ai.AssetReady
	return asset, nil
}

// Release removes the staged object.
func (c *Client) Release(ctx context.Context, asset ai.Asset) error {
	if asset.Name == "" {
		return nil
	}
	return c.stager.Remove(ctx, asset.Name)
}

func (c *Client) Generate(ctx context.Context, asset ai.Asset, instruction string) (string, error) {
	if asset.URI == "" {
		return "", fmt.Errorf("%w: asset %s has no URL", ai.ErrGeneration, asset.Name)
	}
	req := openai.ChatCompletionRequest{
		Model: c.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: videoMessage(instruction, asset)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.Model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("%w: failed to create chat completion: %v", ai.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ai.ErrGeneration)
	}

	return resp.Choices[0].Message.Content, nil
}

func videoMessage(instruction string, asset ai.Asset) []openai.ChatMessagePart {
	return []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: instruction},
		{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: asset.URI}},
	}
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
