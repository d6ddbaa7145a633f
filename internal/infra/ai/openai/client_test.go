package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryanwahyu/screen-analyst/internal/domain/ai"
)

const testModel = "qwen2.5-vl-72b-instruct"

var testVideoModels = []string{"qwen2.5-vl-*"}

type stubStager struct {
	keys    []string
	removed []string
	err     error
}

func (s *stubStager) Remove(_ context.Context, key string) error {
	s.removed = append(s.removed, key)
	return nil
}

func (s *stubStager) Upload(_ context.Context, localPath, key string) (string, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return "", s.err
	}
	return "https://minio.local/bucket/" + key + "?sig=1", nil
}

func TestNewClient_MissingCredential(t *testing.T) {
	t.Setenv(EnvAPIKey, "")

	_, err := NewClient(Config{}, &stubStager{}, nil)
	assert.ErrorIs(t, err, ai.ErrMissingCredential)
}

func TestNewClient_RequiresStager(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k", Model: testModel, VideoModels: testVideoModels}, nil, nil)
	assert.Error(t, err)
}

func TestNewClient_RefusesModelsWithoutVideoInput(t *testing.T) {
	for name, cfg := range map[string]Config{
		"not listed": {APIKey: "k", Model: "gpt-4o", VideoModels: testVideoModels},
		"no list":    {APIKey: "k", Model: testModel},
		"no model":   {APIKey: "k", VideoModels: testVideoModels},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewClient(cfg, &stubStager{}, nil)
			assert.ErrorIs(t, err, ai.ErrUnsupportedModel)
		})
	}
}

func TestUploadAsset_StagesAndIsReady(t *testing.T) {
	st := &stubStager{}
	c, err := NewClient(Config{APIKey: "k", Model: testModel, VideoModels: testVideoModels}, st, zap.NewNop())
	require.NoError(t, err)

	asset, err := c.UploadAsset(context.Background(), "/tmp/rec.mp4")
	require.NoError(t, err)

	require.Len(t, st.keys, 1)
	assert.True(t, strings.HasPrefix(st.keys[0], "recordings/"))
	assert.True(t, strings.HasSuffix(st.keys[0], "/rec.mp4"))
	assert.Equal(t, ai.AssetReady, asset.State)
	assert.Equal(t, "video/mp4", asset.MimeType)

	ready, err := c.AwaitReady(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, asset, ready)

	require.NoError(t, c.Release(context.Background(), ready))
	assert.Equal(t, st.keys, st.removed)
}

func TestUploadAsset_StagingError(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k", Model: testModel, VideoModels: testVideoModels}, &stubStager{err: errors.New("bucket gone")}, nil)
	require.NoError(t, err)

	_, err = c.UploadAsset(context.Background(), "/tmp/rec.mp4")
	assert.ErrorIs(t, err, ai.ErrUpload)
}

func TestAwaitReady_Failed(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k", Model: testModel, VideoModels: testVideoModels}, &stubStager{}, nil)
	require.NoError(t, err)

	_, err = c.AwaitReady(context.Background(), ai.Asset{Name: "x", State: ai.AssetFailed})
	assert.ErrorIs(t, err, ai.ErrRemoteProcessing)
}

func TestGenerate(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"human_readable_report\":\"X\",\"maestro_yaml\":\"Y\"}"},"finish_reason":"stop"}]}`,
			want:   `{"human_readable_report":"X","maestro_yaml":"Y"}`,
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`,
			wantErr: ai.ErrQuotaExceeded,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":{"message":"boom","type":"server_error"}}`,
			wantErr: ai.ErrGeneration,
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"id":"1","object":"chat.completion","choices":[]}`,
			wantErr: ai.ErrGeneration,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)

				var req openai.ChatCompletionRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, testModel, req.Model)
				assert.Equal(t, maxTokens, req.MaxTokens)
				require.Len(t, req.Messages, 1)
				assert.Empty(t, req.Messages[0].Content)
				assert.Equal(t, videoMessage("analyze", ai.Asset{URI: "https://minio.local/bucket/a"}), req.Messages[0].MultiContent)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Model: testModel, VideoModels: testVideoModels}, &stubStager{}, nil)
			require.NoError(t, err)

			got, err := c.Generate(context.Background(), ai.Asset{URI: "https://minio.local/bucket/a"}, "analyze")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGenerate_SendsRecordingAsMediaPart(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Model: testModel, VideoModels: testVideoModels}, &stubStager{}, nil)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), ai.Asset{URI: "http://minio.local/x.mp4?sig"}, "p")
	require.NoError(t, err)

	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, map[string]any{"type": "text", "text": "p"}, parts[0])
	assert.Equal(t, map[string]any{
		"type":      "image_url",
		"image_url": map[string]any{"url": "http://minio.local/x.mp4?sig"},
	}, parts[1])
	assert.NotContains(t, parts[0].(map[string]any)["text"], "minio.local")
}

func TestGenerate_AssetWithoutURL(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k", Model: testModel, VideoModels: testVideoModels}, &stubStager{}, nil)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), ai.Asset{Name: "x"}, "p")
	assert.ErrorIs(t, err, ai.ErrGeneration)
}

func TestIsReasoningModel(t *testing.T) {
	assert.True(t, isReasoningModel("o3-2025-04-16"))
	assert.True(t, isReasoningModel("gpt-5-mini"))
	assert.False(t, isReasoningModel("gpt-4o"))
}
