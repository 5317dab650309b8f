// Package service implements the core request forwarding logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"lingua-proxy-go/internal/client"
	"lingua-proxy-go/internal/config"
	"lingua-proxy-go/internal/metrics"
	"lingua-proxy-go/internal/model"
)

// Stages reported in ForwardError. Upstream stages reuse the client op names.
const (
	StageURL    = "url"
	StageEncode = "encode"
	StageBuild  = client.OpBuild
	StageSend   = client.OpSend
	StageRead   = client.OpRead
)

// ForwardError is the single failure class of the forwarder. Its message is
// the underlying error's message; Stage records where forwarding stopped.
type ForwardError struct {
	Stage string
	Err   error
}

func (e *ForwardError) Error() string { return e.Err.Error() }

func (e *ForwardError) Unwrap() error { return e.Err }

// forwardableRequestHeaders are the only request headers forwarded upstream.
var forwardableRequestHeaders = []string{
	"Content-Type",
	"Authorization",
}

const userAgent = "lingua-proxy-go/1.0"

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	metrics *metrics.Metrics
	baseURL string
	prefix  string
}

// NewProxyService creates a ProxyService. The metrics parameter is optional.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q is not an absolute URL", cfg.Upstream.BaseURL)
	}

	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		baseURL: strings.TrimRight(u.String(), "/"),
		prefix:  cfg.Server.RoutePrefix,
	}, nil
}

// Forward relays in to the upstream origin and returns the buffered response.
// Any upstream status, including 4xx and 5xx, is a successful result. Every
// failure is returned as *ForwardError.
func (s *ProxyService) Forward(ctx context.Context, in *model.InboundRequest) (*model.UpstreamResponse, error) {
	target, err := s.buildUpstreamURL(in.Path, in.RawQuery)
	if err != nil {
		return nil, s.fail(StageURL, err)
	}

	header := s.filterRequestHeaders(in.Header)

	var body []byte
	if bodyAllowed(in.Method) && in.Body.Present() {
		data, ct, err := EncodeBody(in.Body, header.Get("Content-Type"))
		if err != nil {
			return nil, s.fail(StageEncode, err)
		}
		if ct != "" {
			header.Set("Content-Type", ct)
		}
		body = data
	}

	s.logger.Debug("forwarding request",
		"target", target,
		"method", in.Method,
		"headers", redactHeaders(header),
		"body_kind", in.Body.Kind.String(),
		"body_bytes", len(body),
	)

	resp, err := s.client.Do(ctx, &model.ForwardedRequest{
		Method: in.Method,
		URL:    target,
		Header: header,
		Body:   body,
	})
	if err != nil {
		stage := StageSend
		var opErr *client.OpError
		if errors.As(err, &opErr) {
			stage, err = opErr.Op, opErr.Err
		}
		return nil, s.fail(stage, err)
	}
	return resp, nil
}

func (s *ProxyService) fail(stage string, err error) *ForwardError {
	if s.metrics != nil {
		s.metrics.ForwardFailures.WithLabelValues(stage).Inc()
	}
	return &ForwardError{Stage: stage, Err: err}
}

// StripPrefix removes a single leading routing prefix from path. The prefix
// only matches on a segment boundary; other paths are returned unchanged.
func StripPrefix(path, prefix string) string {
	if prefix == "" {
		return path
	}
	if path == prefix {
		return ""
	}
	if rest, ok := strings.CutPrefix(path, prefix+"/"); ok {
		return "/" + rest
	}
	return path
}

// buildUpstreamURL joins the prefix-stripped escaped path and raw query onto
// the upstream origin. An empty remainder addresses the origin root.
func (s *ProxyService) buildUpstreamURL(path, rawQuery string) (string, error) {
	target := s.baseURL + StripPrefix(path, s.prefix)
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	if _, err := url.Parse(target); err != nil {
		return "", err
	}
	return target, nil
}

func (s *ProxyService) filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if v := src.Get(key); v != "" {
			dst.Set(key, v)
		}
	}
	dst.Set("User-Agent", userAgent)
	return dst
}

// bodyAllowed reports whether a request with this method may carry a body upstream.
func bodyAllowed(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// redactHeaders returns a copy of h safe for logging.
func redactHeaders(h http.Header) http.Header {
	out := h.Clone()
	if v := out.Get("Authorization"); v != "" {
		redacted := "[REDACTED]"
		if scheme, _, ok := strings.Cut(v, " "); ok {
			redacted = scheme + " " + redacted
		}
		out.Set("Authorization", redacted)
	}
	return out
}
