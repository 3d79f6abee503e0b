// Package service implements the flight lookup logic behind /api/flight.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"flight-edge/internal/client"
	"flight-edge/internal/config"
	"flight-edge/internal/metrics"
	"flight-edge/internal/model"
)

// ErrMissingFlight is returned when the flight_iata query parameter is empty.
var ErrMissingFlight = errors.New("missing query param: flight_iata")

// maxUpstreamBytes caps how much of an upstream body is buffered for validation.
const maxUpstreamBytes = 8 << 20

// accessKeyPattern matches access_key query values in URLs embedded in error messages.
var accessKeyPattern = regexp.MustCompile(`(?i)(access_key=)[^&\s"]+`)

var nonDigits = regexp.MustCompile(`\D`)

// UpstreamError reports a failed upstream exchange: transport failure,
// timeout, or a payload that is not JSON.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "upstream error: " + e.Detail()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Detail returns the underlying message with any access key redacted.
func (e *UpstreamError) Detail() string {
	return Redact(e.Err.Error())
}

// Redact strips access_key values from s.
func Redact(s string) string {
	return accessKeyPattern.ReplaceAllString(s, "${1}[REDACTED]")
}

// FlightService resolves flight lookups against the provider or synthesizes
// them in mock mode.
type FlightService struct {
	client  *client.FlightClient
	source  config.UpstreamSource
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewFlightService creates a FlightService. Settings are read from source on
// every lookup. The metrics parameter is optional.
func NewFlightService(c *client.FlightClient, source config.UpstreamSource, logger *slog.Logger, m *metrics.Metrics) *FlightService {
	return &FlightService{
		client:  c,
		source:  source,
		logger:  logger.With("component", "flight_service"),
		metrics: m,
	}
}

// Lookup answers a flight query. Upstream non-2xx statuses are returned as a
// response carrying that status, not as an error. Errors are ErrMissingFlight
// or *UpstreamError.
func (s *FlightService) Lookup(ctx context.Context, q model.FlightQuery) (*model.FlightResponse, error) {
	if q.FlightIATA == "" {
		return nil, ErrMissingFlight
	}

	snap := s.source.Upstream()
	if snap.MockMode() {
		if s.metrics != nil {
			s.metrics.MockResponses.Inc()
		}
		s.logger.Debug("serving mock flight", "flight_iata", q.FlightIATA)
		return &model.FlightResponse{
			StatusCode: http.StatusOK,
			Body:       MockFlights(q.FlightIATA),
		}, nil
	}

	return s.fetch(ctx, snap, q.FlightIATA)
}

func (s *FlightService) fetch(ctx context.Context, snap config.UpstreamSnapshot, flight string) (*model.FlightResponse, error) {
	endpoint, err := buildUpstreamURL(snap.BaseURL, snap.APIKey, flight)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	timeout := snap.Timeout
	if timeout <= 0 {
		timeout = config.DefaultUpstreamTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.client.Get(ctx, endpoint)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxUpstreamBytes))
		return &model.FlightResponse{
			StatusCode: resp.StatusCode,
			Body:       model.ErrorBody{Error: fmt.Sprintf("upstream %d", resp.StatusCode)},
		}, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBytes))
	if err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("read upstream body: %w", err)}
	}
	if !json.Valid(data) {
		return nil, &UpstreamError{Err: errors.New("upstream returned invalid JSON")}
	}

	return &model.FlightResponse{
		StatusCode: http.StatusOK,
		Body:       json.RawMessage(data),
	}, nil
}

func buildUpstreamURL(base, apiKey, flight string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("upstream base_url %q is not absolute", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/flights"
	q := make(url.Values)
	q.Set("access_key", apiKey)
	q.Set("flight_iata", flight)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// MockFlights builds the deterministic synthetic payload for a flight code.
// The flight number is the code's digits, or "100" when it has none.
func MockFlights(flight string) model.MockFlights {
	number := nonDigits.ReplaceAllString(flight, "")
	if number == "" {
		number = "100"
	}
	return model.MockFlights{
		Mock: true,
		Data: []model.MockFlight{{
			Flight:    model.FlightCode{IATA: flight, Number: number},
			Airline:   model.Named{Name: "Demo Air"},
			Departure: model.Airport{Airport: "SFO"},
			Arrival:   model.Airport{Airport: "LAX"},
		}},
	}
}
