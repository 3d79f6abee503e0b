package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alexliesenfeld/health"
	"github.com/labstack/echo/v4"

	"flight-edge/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	handler http.Handler
}

// NewHealthHandler creates a HealthHandler that checks the static root.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	checker := health.NewChecker(
		health.WithCacheDuration(time.Second),
		health.WithTimeout(2*time.Second),
		health.WithInfo(map[string]any{
			"version": string(v),
		}),
		health.WithCheck(staticRootCheck(cfg.Server.StaticDir)),
	)
	return &HealthHandler{handler: health.NewHandler(checker)}
}

// Healthz returns the aggregated check result; 503 when any check is down.
func (h *HealthHandler) Healthz(c echo.Context) error {
	h.handler.ServeHTTP(c.Response(), c.Request())
	return nil
}

func staticRootCheck(dir string) health.Check {
	return health.Check{
		Name: "static_root",
		Check: func(_ context.Context) error {
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("static root %s: %w", dir, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("static root %s is not a directory", dir)
			}
			return nil
		},
	}
}
