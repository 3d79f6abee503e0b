package static

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler serves static assets for every path the API router does not claim.
type Handler struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(r *Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		resolver: r,
		logger:   logger.With("component", "static_handler"),
	}
}

// Serve streams the resolved file or answers 404 "Not Found" as plain text.
func (h *Handler) Serve(c echo.Context) error {
	req := c.Request()

	asset, err := h.resolver.Resolve(req.URL.Path)
	if err != nil {
		return notFound(c)
	}

	f, err := h.resolver.Open(asset)
	if err != nil {
		// The file vanished or became unreadable between stat and open.
		h.logger.Warn("open static asset", "path", asset.Name, "err", err)
		return notFound(c)
	}
	defer func() { _ = f.Close() }()

	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(asset.Size, 10))
	return c.Stream(http.StatusOK, asset.ContentType, f)
}

func notFound(c echo.Context) error {
	return c.String(http.StatusNotFound, "Not Found")
}
