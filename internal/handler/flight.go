package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"flight-edge/internal/model"
	"flight-edge/internal/service"
)

// APIPrefix is the path prefix claimed by the API dispatcher.
const APIPrefix = "/api/"

// FlightRoute is the only API route.
const FlightRoute = "/api/flight"

// FlightHandler answers GET /api/flight and every other request under the API prefix.
type FlightHandler struct {
	service *service.FlightService
	logger  *slog.Logger
}

// NewFlightHandler creates a FlightHandler.
func NewFlightHandler(svc *service.FlightService, logger *slog.Logger) *FlightHandler {
	return &FlightHandler{
		service: svc,
		logger:  logger.With("component", "flight_handler"),
	}
}

// Dispatch routes an API request: GET /api/flight goes to Handle, anything
// else under the prefix is a JSON 404.
func (h *FlightHandler) Dispatch(c echo.Context) error {
	req := c.Request()
	if req.URL.Path == FlightRoute && req.Method == http.MethodGet {
		return h.Handle(c)
	}
	return c.JSON(http.StatusNotFound, model.ErrorBody{Error: "API route not found"})
}

// Handle looks up the flight named by the flight_iata query parameter.
func (h *FlightHandler) Handle(c echo.Context) error {
	q := model.FlightQuery{FlightIATA: lastQueryValue(c, "flight_iata")}

	resp, err := h.service.Lookup(c.Request().Context(), q)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(resp.StatusCode, resp.Body)
}

func (h *FlightHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrMissingFlight) {
		return c.JSON(http.StatusBadRequest, model.ErrorBody{Error: err.Error()})
	}

	detail := service.Redact(err.Error())
	var ue *service.UpstreamError
	if errors.As(err, &ue) {
		detail = ue.Detail()
	}

	h.logger.Error("upstream error",
		"err", detail,
		"path", c.Request().URL.Path,
	)

	return c.JSON(http.StatusBadGateway, model.ErrorBody{
		Error:  "upstream error",
		Detail: detail,
	})
}

// lastQueryValue returns the last occurrence of key, or "" when absent.
func lastQueryValue(c echo.Context, key string) string {
	vals := c.QueryParams()[key]
	if len(vals) == 0 {
		return ""
	}
	return vals[len(vals)-1]
}
