package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"

	"github.com/labstack/echo/v4"

	"lingua-proxy-go/internal/config"
	"lingua-proxy-go/internal/model"
	"lingua-proxy-go/internal/service"
)

// secretQueryPattern matches credential-like query values in URLs embedded in error messages.
var secretQueryPattern = regexp.MustCompile(`(?i)((?:access_token|token|api_key|apikey|password)=)[^&\s"]+`)

const (
	failureMessage     = "Proxy request failed"
	defaultContentType = "application/json"
)

// failureBody is the JSON document returned for every forwarding failure.
type failureBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// ProxyHandler forwards requests under the route prefix to the upstream origin.
type ProxyHandler struct {
	service    *service.ProxyService
	logger     *slog.Logger
	decodeBody bool
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:    svc,
		logger:     logger.With("component", "proxy_handler"),
		decodeBody: cfg.Server.DecodeBody,
	}
}

// Handle forwards the request upstream and relays the buffered response:
// status verbatim, upstream Content-Type (application/json when absent) and
// the body bytes unchanged.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	raw, err := io.ReadAll(req.Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return h.fail(c, err)
	}

	body := model.RawBody(raw)
	if h.decodeBody {
		body = service.DecodeBody(req.Header.Get(echo.HeaderContentType), raw)
	}

	resp, err := h.service.Forward(req.Context(), &model.InboundRequest{
		Method:   req.Method,
		Path:     req.URL.EscapedPath(),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     body,
	})
	if err != nil {
		return h.fail(c, err)
	}

	ct := resp.ContentType
	if ct == "" {
		ct = defaultContentType
	}
	return c.Blob(resp.StatusCode, ct, resp.Body)
}

func (h *ProxyHandler) fail(c echo.Context, err error) error {
	details := sanitizeError(failureCause(err))

	attrs := []any{
		"err", details,
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
	}
	var fe *service.ForwardError
	if errors.As(err, &fe) {
		attrs = append(attrs, "stage", fe.Stage)
	}
	h.logger.Error("proxy error", attrs...)

	return c.JSON(http.StatusInternalServerError, failureBody{
		Error:   failureMessage,
		Details: details,
	})
}

// failureCause drops the *url.Error wrapper, whose message repeats the
// upstream target URL.
func failureCause(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// sanitizeError redacts credentials from error messages that may contain upstream URLs.
func sanitizeError(err error) string {
	return secretQueryPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
