// Package client provides a Go client for the verification service API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a verification service API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new verification service client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // verification compiles, so allow long requests
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// VerifyRequest is a solidity verification request.
type VerifyRequest struct {
	DeployedBytecode string            `json:"deployedBytecode"`
	CreationBytecode string            `json:"creationBytecode,omitempty"`
	CompilerVersion  string            `json:"compilerVersion"`
	Sources          map[string]string `json:"sources"`
	EVMVersion       string            `json:"evmVersion,omitempty"`
	ChainID          string            `json:"chainId,omitempty"`
}

// VerifyResult is the success payload of a verification.
type VerifyResult struct {
	Match                string          `json:"match"`
	FilePath             string          `json:"filePath"`
	ContractName         string          `json:"contractName"`
	CompilerVersion      string          `json:"compilerVersion"`
	Bytecode             string          `json:"bytecode"`
	ABI                  json.RawMessage `json:"abi,omitempty"`
	ConstructorArguments string          `json:"constructorArguments,omitempty"`
}

// APIError is a structured error response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
}

// VerifySolidity submits a flattened-source verification request.
func (c *Client) VerifySolidity(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	var result VerifyResult
	if err := c.post(ctx, "/api/v1/solidity/verify", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Versions lists the compiler versions the service can verify with.
func (c *Client) Versions(ctx context.Context) ([]string, error) {
	var result struct {
		Versions []string `json:"versions"`
	}
	if err := c.get(ctx, "/api/v1/solidity/versions", &result); err != nil {
		return nil, err
	}
	return result.Versions, nil
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code == "" {
		return &APIError{StatusCode: status, Code: "UNKNOWN", Message: strings.TrimSpace(string(body))}
	}
	return &APIError{StatusCode: status, Code: envelope.Error.Code, Message: envelope.Error.Message}
}
