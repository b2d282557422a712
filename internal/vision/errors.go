package vision

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultRetryAfter is the cooldown applied when a 429 carries no usable
// Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// maxErrorBody caps how much of a failed response body lands in an error.
const maxErrorBody = 500

// APIError is a non-200 answer from a vision provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// RateLimitError means the provider answered 429. The analyzer skips the
// provider until RetryAfter has elapsed.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited, cooling down for %s: %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError, substituting DefaultRetryAfter
// for a non-positive cooldown.
func NewRateLimitError(provider string, err error, retryAfter time.Duration) *RateLimitError {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	return &RateLimitError{Err: err, RetryAfter: retryAfter, Provider: provider}
}

// ParseRetryAfter reads a Retry-After value given either as delta-seconds
// or as an HTTP date. Empty, malformed or past values yield 0.
func ParseRetryAfter(val string, now time.Time) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(val)
	if err != nil || !at.After(now) {
		return 0
	}
	return at.Sub(now).Round(time.Second)
}

// CheckResponse maps a provider's HTTP status to an error: nil for 200,
// *RateLimitError for 429 and *APIError otherwise.
func CheckResponse(provider string, resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	apiErr := &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       Truncate(string(body), maxErrorBody),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return NewRateLimitError(provider, apiErr, ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	}
	return apiErr
}

// Truncate shortens a provider response to at most maxLen bytes for logs
// and error messages, never splitting a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := max(maxLen, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
