package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lingua-proxy-go/internal/config"
	"lingua-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// m may be nil when metrics are disabled.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler, cfg *config.Config, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	prefix := cfg.Server.RoutePrefix
	e.Any(prefix, proxy.Handle)
	e.Any(prefix+"/*", proxy.Handle)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
