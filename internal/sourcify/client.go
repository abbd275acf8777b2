// Package sourcify forwards verification requests to the Sourcify API with a
// bounded number of attempts. It is deliberately thin glue: Sourcify does the
// verification, we proxy the result.
package sourcify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIURL is the public Sourcify server.
const DefaultAPIURL = "https://sourcify.dev/server/"

// ErrUnavailable means Sourcify could not be reached within the configured
// number of attempts.
var ErrUnavailable = errors.New("sourcify unavailable")

// ErrRejected means Sourcify answered but rejected the submission; the
// wrapped message carries its response.
var ErrRejected = errors.New("sourcify rejected verification")

// Settings configures the proxy client.
type Settings struct {
	APIURL string
	// Attempts is the number of tries per request, at least one.
	Attempts int
	// RequestTimeout bounds each individual attempt.
	RequestTimeout time.Duration
}

// VerificationRequest is the payload forwarded to Sourcify.
type VerificationRequest struct {
	Address string            `json:"address"`
	Chain   string            `json:"chain"`
	Files   map[string]string `json:"files"`
	// ChosenContract disambiguates when the sources declare several.
	ChosenContract *int `json:"chosenContract,omitempty"`
}

// VerificationResult is Sourcify's per-contract answer.
type VerificationResult struct {
	Address string `json:"address"`
	ChainID string `json:"chainId"`
	Status  string `json:"status"` // "perfect" or "partial"
}

// verifyResponse is Sourcify's response envelope.
type verifyResponse struct {
	Result []VerificationResult `json:"result"`
	Error  string               `json:"error"`
}

// Client is the Sourcify proxy.
type Client struct {
	apiURL   string
	attempts int
	client   *http.Client
	logger   *slog.Logger
}

// NewClient builds a proxy client from settings, applying defaults for unset
// fields.
func NewClient(settings Settings, logger *slog.Logger) *Client {
	apiURL := settings.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	attempts := settings.Attempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := settings.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL:   strings.TrimSuffix(apiURL, "/"),
		attempts: attempts,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Verify forwards the request, retrying transient failures up to the
// configured attempt count.
func (c *Client) Verify(ctx context.Context, req VerificationRequest) ([]VerificationResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding sourcify request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		results, retryable, err := c.post(ctx, payload)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("sourcify attempt failed", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// post performs one attempt. retryable is true for network errors and 5xx
// responses.
func (c *Client) post(ctx context.Context, payload []byte) (results []VerificationResult, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("sourcify returned status %d", resp.StatusCode)
	}

	var decoded verifyResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, false, fmt.Errorf("decoding sourcify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || decoded.Error != "" {
		msg := decoded.Error
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, false, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return decoded.Result, false, nil
}
