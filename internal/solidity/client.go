// Package solidity wires the compiler manager and the verification engine
// into the single entry point transport handlers call.
package solidity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Holytrade/blockscout-rs/internal/observability/metrics"
	"github.com/Holytrade/blockscout-rs/internal/solidity/compiler"
	"github.com/Holytrade/blockscout-rs/internal/solidity/verifier"
)

// Middleware is an optional post-success hook, invoked once per genuine
// match with the full success payload.
type Middleware interface {
	OnSuccess(ctx context.Context, success *verifier.Success) error
}

// VerificationRequest is a single flattened-source verification request.
type VerificationRequest struct {
	CompilerVersion  string
	DeployedBytecode []byte
	CreationBytecode []byte
	Content          verifier.SourceInput
	// ChainID is carried for observability only.
	ChainID string
}

// Client composes the compiler manager with an optional success middleware.
type Client struct {
	compilers  *compiler.Manager
	runner     compiler.Runner
	middleware Middleware
	failClosed bool
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMiddleware installs a post-success hook.
func WithMiddleware(m Middleware) Option {
	return func(c *Client) { c.middleware = m }
}

// WithRunner substitutes the compiler runner; used by tests.
func WithRunner(r compiler.Runner) Option {
	return func(c *Client) { c.runner = r }
}

// WithFailClosedMiddleware makes a middleware failure fail the verification
// instead of being logged and swallowed. Fail-open is the default: a
// best-effort notification must not convert a successful verification into
// an error response.
func WithFailClosedMiddleware() Option {
	return func(c *Client) { c.failClosed = true }
}

// NewClient creates the verification client.
func NewClient(compilers *compiler.Manager, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		compilers: compilers,
		runner:    compiler.ExecRunner{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Versions lists the compiler versions currently known to the manager.
func (c *Client) Versions() []compiler.Version {
	return c.compilers.Versions()
}

// Verify runs the full verification flow: resolve compiler, compile, match,
// then notify the middleware on success.
func (c *Client) Verify(ctx context.Context, req VerificationRequest) (*verifier.Success, error) {
	v, err := verifier.New(c.compilers, c.runner,
		req.CompilerVersion, req.CreationBytecode, req.DeployedBytecode, req.ChainID)
	if err != nil {
		metrics.ObserveVerification(req.ChainID, statusLabel(err))
		return nil, err
	}

	success, err := v.Verify(ctx, &req.Content)
	metrics.ObserveVerification(req.ChainID, statusLabel(err))
	if err != nil {
		return nil, err
	}

	if c.middleware != nil {
		if err := c.middleware.OnSuccess(ctx, success); err != nil {
			if c.failClosed {
				return nil, err
			}
			c.logger.Warn("verification middleware failed", "error", err,
				"contract", success.ContractName, "chain_id", req.ChainID)
		}
	}
	return success, nil
}

// statusLabel collapses the error taxonomy into a bounded metrics label.
func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, verifier.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, verifier.ErrCompilationFailed):
		return "compilation_failed"
	case errors.Is(err, verifier.ErrNoMatchingContracts):
		return "no_match"
	case errors.Is(err, compiler.ErrVersionNotFound):
		return "version_not_found"
	case errors.Is(err, compiler.ErrFetchUnavailable):
		return "fetch_unavailable"
	case errors.Is(err, compiler.ErrCorruptArtifact):
		return "corrupt_artifact"
	default:
		return "internal_error"
	}
}
