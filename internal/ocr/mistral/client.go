package mistral

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"planbid/internal/config"
	"planbid/internal/domain"
)

const (
	defaultBaseURL = "https://api.mistral.ai/v1"
	defaultModel   = "mistral-ocr-latest"
)

// Client implements port.OCRProvider using the Mistral OCR API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Mistral OCR client from config.
func NewClient(cfg *config.OCRConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 180 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		// Mistral allows roughly 6 requests per second.
		limiter: rate.NewLimiter(rate.Limit(6), 1),
	}
}

// OCR sends the whole PDF as a data URI and returns the markdown of each page.
func (c *Client) OCR(ctx context.Context, pdfBytes []byte, fileName string) ([]domain.PageText, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("mistral.OCR: waiting for rate limiter: %w", err)
	}

	reqBody := ocrRequest{
		Model: c.model,
		Document: ocrDocument{
			Type:         "document_url",
			DocumentURL:  "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfBytes),
			DocumentName: fileName,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling mistral OCR API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("mistral OCR error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("mistral OCR error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed ocrResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	pages := make([]domain.PageText, 0, len(parsed.Pages))
	for _, p := range parsed.Pages {
		pages = append(pages, domain.PageText{
			PageNumber: p.Index + 1,
			Text:       p.Markdown,
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	return pages, nil
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type         string `json:"type"`
	DocumentURL  string `json:"document_url"`
	DocumentName string `json:"document_name,omitempty"`
}

type ocrResponse struct {
	Model string `json:"model"`
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
