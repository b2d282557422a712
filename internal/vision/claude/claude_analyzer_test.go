package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planbid/internal/config"
	"planbid/internal/domain"
	"planbid/internal/port"
	"planbid/internal/vision"
	"planbid/internal/vision/claude"
)

func newTestAnalyzer(serverURL string) *claude.Analyzer {
	cfg := &config.VisionProviderConfig{
		Provider:     "claude",
		APIKey:       "test-api-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  30,
		MaxTokens:    8192,
	}
	return claude.NewAnalyzerWithEndpoint(cfg, serverURL)
}

func pageInput() port.VisionInput {
	return port.VisionInput{Images: []domain.PageImage{{Page: 1, ContentType: "image/png", Data: []byte("png-bytes")}}}
}

func TestClaudeAnalyzer_Analyze_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		assert.Equal(t, float64(8192), reqBody["max_tokens"])
		assert.Equal(t, vision.DefaultSystemPrompt, reqBody["system"])

		messages := reqBody["messages"].([]interface{})
		content := messages[0].(map[string]interface{})["content"].([]interface{})
		assert.Len(t, content, 2)
		assert.Equal(t, "image", content[0].(map[string]interface{})["type"])
		assert.Equal(t, "text", content[1].(map[string]interface{})["type"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "claude-sonnet-4-20250514",
			"content": []map[string]interface{}{
				{"type": "text", "text": `{"items":[`},
				{"type": "text", "text": `{"name":"Slab"}]}`},
			},
		})
	}))
	defer server.Close()

	out, err := newTestAnalyzer(server.URL).Analyze(context.Background(), pageInput())

	require.NoError(t, err)
	assert.Equal(t, `{"items":[{"name":"Slab"}]}`, out.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", out.Model)
}

func TestClaudeAnalyzer_Analyze_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limit"}`))
	}))
	defer server.Close()

	_, err := newTestAnalyzer(server.URL).Analyze(context.Background(), pageInput())

	var rlErr *vision.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 30*time.Second, rlErr.RetryAfter)
	assert.Equal(t, "claude", rlErr.Provider)
}

func TestClaudeAnalyzer_Analyze_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestAnalyzer(server.URL).Analyze(context.Background(), pageInput())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClaudeAnalyzer_Analyze_RejectsUnsupportedImage(t *testing.T) {
	a := newTestAnalyzer("http://127.0.0.1:0")

	_, err := a.Analyze(context.Background(), port.VisionInput{
		Images: []domain.PageImage{{ContentType: "application/pdf", Data: []byte("x")}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image content type")
}
