// Package client issues requests against a remote inference endpoint.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/surge-load/surge/internal/metrics"
)

// Config contains client configuration.
type Config struct {
	// Endpoint is the inference endpoint URL.
	Endpoint string

	// ContentType sent with each request.
	ContentType string

	// Timeout for each invocation.
	Timeout time.Duration

	// MaxIdleConnsPerHost controls idle connection pooling.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits total connections (0 = unlimited).
	MaxConnsPerHost int
}

// DefaultConfig returns client defaults tuned for load generation.
func DefaultConfig() Config {
	return Config{
		ContentType:         "application/octet-stream",
		Timeout:             30 * time.Second,
		MaxIdleConnsPerHost: 100,
	}
}

// Client invokes an inference endpoint with a fixed payload.
//
// The payload is loaded once at startup and owned by the client; there is
// no ambient shared state between workers. A single Client is shared by
// all workers so they pool connections.
type Client struct {
	endpoint    string
	contentType string
	payload     []byte
	http        *http.Client
	selector    Selector
	metrics     *metrics.Engine
	traceLog    logrus.FieldLogger
}

// New creates a client. The selector chooses the sub-target (model
// variant) for each invocation; metrics receives one recording per
// invocation.
func New(cfg Config, payload []byte, selector Selector, engine *metrics.Engine) *Client {
	transport := &http.Transport{
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		endpoint:    cfg.Endpoint,
		contentType: cfg.ContentType,
		payload:     payload,
		selector:    selector,
		metrics:     engine,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// WithTraceLogging enables per-invocation connection timing, logged at
// debug level. Adds httptrace overhead to every request, so it is off
// unless diagnostics are wanted.
func (c *Client) WithTraceLogging(log logrus.FieldLogger) *Client {
	c.traceLog = log
	return c
}

// Run performs one endpoint invocation and records its outcome. It is the
// unit of repeated work executed by each worker.
//
// Invocation failures are recorded, not returned: a failing endpoint must
// not stall the ramp. The returned error is non-nil only for context
// cancellation.
func (c *Client) Run(ctx context.Context) error {
	target := ""
	if c.selector != nil {
		target = c.selector.Pick()
	}

	var timing *TimingInfo
	if c.traceLog != nil {
		timing = &TimingInfo{StartTime: time.Now()}
		ctx = httptrace.WithClientTrace(ctx, newClientTrace(timing))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(c.payload))
	if err != nil {
		c.metrics.RecordRequest(0, target, false, 0)
		return nil
	}
	req.Header.Set("Content-Type", c.contentType)
	if target != "" {
		req.Header.Set("X-Target-Variant", target)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.metrics.RecordRequest(duration, target, false, 0)
		return nil
	}
	defer resp.Body.Close()

	transferStart := time.Now()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordRequest(duration, target, false, 0)
		return nil
	}

	if timing != nil {
		timing.ContentTransferTime = time.Since(transferStart)
		timing.TotalTime = time.Since(timing.StartTime)
		c.traceLog.WithFields(logrus.Fields{
			"target":   target,
			"status":   resp.StatusCode,
			"dns":      timing.DNSLookupTime,
			"connect":  timing.TCPConnectTime,
			"tls":      timing.TLSHandshakeTime,
			"ttfb":     timing.TimeToFirstByte,
			"transfer": timing.ContentTransferTime,
			"total":    timing.TotalTime,
		}).Debug("invocation timing")
	}

	c.metrics.RecordRequest(duration, target, classify(resp.StatusCode, body), int64(len(body)))
	return nil
}

// classify decides whether an invocation succeeded. Inference endpoints
// sometimes report model errors inside a 200 response body, so a JSON body
// carrying an error field counts as a failure.
func classify(statusCode int, body []byte) bool {
	if statusCode >= 400 {
		return false
	}
	if gjson.ValidBytes(body) && gjson.GetBytes(body, "error").Exists() {
		return false
	}
	return true
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Validate checks the configuration before a run starts.
func (cfg Config) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("endpoint URL is required")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", cfg.Timeout)
	}
	return nil
}
