package handler

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"lingua-proxy-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg            *config.Config
	version        Version
	upstreamScheme string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	h := &HealthHandler{cfg: cfg, version: v}
	if u, err := url.Parse(cfg.Upstream.BaseURL); err == nil {
		h.upstreamScheme = u.Scheme
	}
	return h
}

// Healthz answers liveness probes without touching the upstream.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type statusResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	UpstreamScheme string `json:"upstream_scheme"`
	RoutePrefix    string `json:"route_prefix"`
	DecodeBody     bool   `json:"decode_body"`
}

// Status reports the build version and forwarding settings. The upstream
// origin is deployment data and only its scheme is exposed.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:         "ok",
		Version:        string(h.version),
		UpstreamScheme: h.upstreamScheme,
		RoutePrefix:    h.cfg.Server.RoutePrefix,
		DecodeBody:     h.cfg.Server.DecodeBody,
	})
}
