// Package client provides the HTTP client used to reach the upstream origin.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"lingua-proxy-go/internal/config"
	"lingua-proxy-go/internal/metrics"
	"lingua-proxy-go/internal/model"
)

// Operations reported in OpError.
const (
	OpBuild = "build"
	OpSend  = "send"
	OpRead  = "read"
)

// ErrResponseTooLarge is returned when the upstream body exceeds the configured cap.
var ErrResponseTooLarge = errors.New("upstream response body exceeds size limit")

// OpError records which step of an upstream exchange failed.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return e.Op + " upstream: " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

// UpstreamClient sends forwarded requests to the upstream origin and buffers
// the responses.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	maxBody    int64
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	hc := &http.Client{
		Transport: transport,
		// Covers dial, headers and the full body read.
		Timeout: time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
	}
	if cfg.Upstream.RelayRedirects {
		hc.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &UpstreamClient{
		httpClient: hc,
		logger:     logger.With("component", "upstream_client"),
		metrics:    m,
		maxBody:    cfg.Upstream.ResponseMaxBytes,
	}
}

// Do sends fr upstream and reads the whole response body before returning.
// The context controls the lifetime of the exchange: when it is canceled
// (e.g. the caller disconnects), the upstream request is canceled too.
// Failures are returned as *OpError.
func (c *UpstreamClient) Do(ctx context.Context, fr *model.ForwardedRequest) (*model.UpstreamResponse, error) {
	var body io.Reader
	if fr.Body != nil {
		body = bytes.NewReader(fr.Body)
	}

	req, err := http.NewRequestWithContext(ctx, fr.Method, fr.URL, body)
	if err != nil {
		return nil, &OpError{Op: OpBuild, Err: err}
	}
	if fr.Header != nil {
		req.Header = fr.Header
	}

	method := metrics.NormalizeMethod(req.Method)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, start, 0)
		return nil, &OpError{Op: OpSend, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := c.readBody(resp.Body)
	c.observe(method, start, resp.StatusCode)
	if err != nil {
		return nil, &OpError{Op: OpRead, Err: err}
	}

	c.logger.Debug("upstream response",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"bytes", len(data),
	)

	return &model.UpstreamResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// readBody buffers r, failing once more than maxBody bytes arrive.
// A zero maxBody disables the cap.
func (c *UpstreamClient) readBody(r io.Reader) ([]byte, error) {
	if c.maxBody <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, c.maxBody)
	}
	return data, nil
}

func (c *UpstreamClient) observe(method string, start time.Time, status int) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if status != 0 {
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
}
