package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spektr-org/chatyfile/config"
	"github.com/spektr-org/chatyfile/engine"
)

const (
	DefaultTimeout          = 60 * time.Second
	DefaultMaxResponseBytes = 32 << 10
)

// New returns the Generator for cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		return NewGemini(ctx, cfg, logger)
	case "openai":
		return NewOpenAI(cfg, logger)
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
}

// Client bounds a Generator in time and response size and classifies its
// failures.
type Client struct {
	gen      Generator
	timeout  time.Duration
	maxBytes int
	logger   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxResponseBytes bounds the completion size.
func WithMaxResponseBytes(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient wraps gen with defaults overridden by opts.
func NewClient(gen Generator, opts ...ClientOption) *Client {
	c := &Client{
		gen:      gen,
		timeout:  DefaultTimeout,
		maxBytes: DefaultMaxResponseBytes,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete runs one generation call. Errors are *engine.Failure values:
// Timeout for a missed deadline or an oversized reply, ServiceUnavailable
// for anything else the service reports.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.gen.Generate(callCtx, req)
	elapsed := time.Since(start)

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		c.logger.Warn("generation timed out", zap.Duration("timeout", c.timeout))
		return "", engine.Failf(engine.ErrTimeout, "the generation service did not answer within %s", c.timeout)
	default:
		c.logger.Warn("generation failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return "", engine.Failf(engine.ErrServiceUnavailable, "%s", truncate(err.Error(), 300))
	}

	if len(text) > c.maxBytes {
		c.logger.Warn("generation too large", zap.Int("bytes", len(text)), zap.Int("limit", c.maxBytes))
		return "", engine.Failf(engine.ErrTimeout, "the generation service returned %d bytes, over the %d byte limit", len(text), c.maxBytes)
	}
	c.logger.Debug("generation complete", zap.Int("bytes", len(text)), zap.Duration("elapsed", elapsed))
	return text, nil
}
