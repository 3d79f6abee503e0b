package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flight-edge/internal/config"
	"flight-edge/internal/metrics"
	"flight-edge/internal/middleware"
	"flight-edge/internal/static"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Everything
// not claimed by the API prefix or an operational endpoint is a static asset.
// Routing uses the URL-decoded path.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, flight *FlightHandler, assets *static.Handler, health *HealthHandler) {
	e.Pre(middleware.DecodedPath())

	e.GET("/healthz", health.Healthz)
	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Any(APIPrefix+"*", flight.Dispatch)
	e.Any("/*", assets.Serve)
}
