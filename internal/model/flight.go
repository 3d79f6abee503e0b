// Package model defines shared types for the flight proxy.
package model

import (
	"io"
)

// FlightQuery is the parsed input of GET /api/flight.
type FlightQuery struct {
	FlightIATA string
}

// FlightResponse is a fully built API response. Body is either a
// json.RawMessage forwarded from upstream or a value marshaled as JSON.
type FlightResponse struct {
	StatusCode int
	Body       any
}

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// MockFlights is the synthetic payload returned in mock mode.
type MockFlights struct {
	Mock bool         `json:"mock"`
	Data []MockFlight `json:"data"`
}

// MockFlight mirrors the subset of aviationstack's flight record the client reads.
type MockFlight struct {
	Flight    FlightCode `json:"flight"`
	Airline   Named      `json:"airline"`
	Departure Airport    `json:"departure"`
	Arrival   Airport    `json:"arrival"`
}

// FlightCode identifies a flight.
type FlightCode struct {
	IATA   string `json:"iata"`
	Number string `json:"number"`
}

// Named is an entity with a display name.
type Named struct {
	Name string `json:"name"`
}

// Airport identifies an airport by code.
type Airport struct {
	Airport string `json:"airport"`
}

// UpstreamResponse is the raw provider response. The caller owns Body.
type UpstreamResponse struct {
	StatusCode int
	Body       io.ReadCloser
}
