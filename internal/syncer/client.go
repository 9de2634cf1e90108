// Package syncer uploads batches of behavior events to the ingestion service.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/runnerr0/mirrorme/internal/behavior"
)

// BatchPath is appended to the API base URL.
const BatchPath = "/behavior/log-batch"

// MaxBatch is the largest batch the ingestion service accepts in one call.
const MaxBatch = 50

// ErrUnauthorized matches a StatusError carrying 401 or 403.
var ErrUnauthorized = errors.New("syncer: token rejected")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ingestion returned %d", e.Code)
	}
	return fmt.Sprintf("ingestion returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden)
}

// Options configure a Client.
type Options struct {
	APIBase     string
	Timeout     time.Duration
	Compression Compression
	UserAgent   string

	// Transport overrides the base round tripper (tests). It is still
	// wrapped with otelhttp.
	Transport http.RoundTripper
}

type Client struct {
	http        *http.Client
	endpoint    string
	compression Compression
	userAgent   string
	logger      *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(base),
		},
		endpoint:    strings.TrimRight(opts.APIBase, "/") + BatchPath,
		compression: opts.Compression,
		userAgent:   opts.UserAgent,
		logger:      logger,
	}
}

// Endpoint returns the URL batches are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

type batchRequest struct {
	Logs []behavior.Event `json:"logs"`
}

// Upload posts batch with bearer authentication. Any 2xx is success; other
// statuses return a *StatusError.
func (c *Client) Upload(ctx context.Context, token string, batch []behavior.Event) error {
	if len(batch) > MaxBatch {
		return fmt.Errorf("batch of %d exceeds limit %d", len(batch), MaxBatch)
	}
	if batch == nil {
		batch = []behavior.Event{}
	}

	payload, err := json.Marshal(batchRequest{Logs: batch})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	body, err := c.compression.encode(payload)
	if err != nil {
		return fmt.Errorf("compress batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if enc := c.compression.contentEncoding(); enc != "" {
		req.Header.Set("Content-Encoding", enc)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Debug("batch uploaded",
			zap.Int("events", len(batch)),
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(body)),
		)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
