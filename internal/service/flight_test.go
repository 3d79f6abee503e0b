package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"flight-edge/internal/client"
	"flight-edge/internal/config"
	"flight-edge/internal/model"
)

func newTestService(snap config.UpstreamSnapshot) *FlightService {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  10,
			IdleConnections: 4,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fc := client.NewFlightClient(cfg, logger, nil)
	return NewFlightService(fc, config.StaticSource(snap), logger, nil)
}

func TestLookup_MissingFlight(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer upstream.Close()

	svc := newTestService(config.UpstreamSnapshot{BaseURL: upstream.URL, APIKey: "k", Timeout: time.Second})

	_, err := svc.Lookup(context.Background(), model.FlightQuery{})
	if !errors.Is(err, ErrMissingFlight) {
		t.Fatalf("Lookup() error = %v, want ErrMissingFlight", err)
	}
	if err.Error() != "missing query param: flight_iata" {
		t.Errorf("error message = %q", err.Error())
	}
	if hits.Load() != 0 {
		t.Errorf("upstream hits = %d, want 0", hits.Load())
	}
}

func TestLookup_MockMode(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer upstream.Close()

	tests := []struct {
		name string
		snap config.UpstreamSnapshot
	}{
		{"no credential", config.UpstreamSnapshot{BaseURL: upstream.URL}},
		{"forced", config.UpstreamSnapshot{BaseURL: upstream.URL, APIKey: "real-key", Mock: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.snap)

			resp, err := svc.Lookup(context.Background(), model.FlightQuery{FlightIATA: "AA100"})
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			body, ok := resp.Body.(model.MockFlights)
			if !ok {
				t.Fatalf("Body type = %T, want model.MockFlights", resp.Body)
			}
			if !body.Mock || len(body.Data) != 1 {
				t.Errorf("Body = %+v, want one mock record", body)
			}
		})
	}

	if hits.Load() != 0 {
		t.Errorf("upstream hits = %d, want 0 in mock mode", hits.Load())
	}
}

func TestLookup_LiveHappyPath(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/flights" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/v1/flights")
		}
		if got := r.URL.Query().Get("access_key"); got != "live-key" {
			t.Errorf("access_key = %q, want %q", got, "live-key")
		}
		if got := r.URL.Query().Get("flight_iata"); got != "UA 9" {
			t.Errorf("flight_iata = %q, want %q", got, "UA 9")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pagination":{"count":1},"data":[{"flight_status":"active"}]}`))
	}))
	defer upstream.Close()

	svc := newTestService(config.UpstreamSnapshot{BaseURL: upstream.URL + "/v1/", APIKey: "live-key", Timeout: 5 * time.Second})

	resp, err := svc.Lookup(context.Background(), model.FlightQuery{FlightIATA: "UA 9"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	raw, ok := resp.Body.(json.RawMessage)
	if !ok {
		t.Fatalf("Body type = %T, want json.RawMessage", resp.Body)
	}
	if string(raw) != `{"pagination":{"count":1},"data":[{"flight_status":"active"}]}` {
		t.Errorf("Body = %s", raw)
	}
}

func TestLookup_UpstreamStatusForwarded(t *testing.T) {
	tests := []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests, http.StatusInternalServerError}

	for _, status := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":{"code":"x"}}`))
			}))
			defer upstream.Close()

			svc := newTestService(config.UpstreamSnapshot{BaseURL: upstream.URL, APIKey: "k", Timeout: 5 * time.Second})

			resp, err := svc.Lookup(context.Background(), model.FlightQuery{FlightIATA: "AA100"})
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if resp.StatusCode != status {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, status)
			}
			body, ok := resp.Body.(model.ErrorBody)
			if !ok {
				t.Fatalf("Body type = %T, want model.ErrorBody", resp.Body)
			}
			want := "upstream " + strconv.Itoa(status)
			if body.Error != want {
				t.Errorf("Body.Error = %q, want %q", body.Error, want)
			}
		})
	}
}

func TestLookup_MalformedJSON(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer upstream.Close()

	svc := newTestService(config.UpstreamSnapshot{BaseURL: upstream.URL, APIKey: "k", Timeout: 5 * time.Second})

	_, err := svc.Lookup(context.Background(), model.FlightQuery{FlightIATA: "AA100"})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Lookup() error = %v, want *UpstreamError", err)
	}
	if !strings.Contains(ue.Detail(), "invalid JSON") {
		t.Errorf("Detail() = %q, want mention of invalid JSON", ue.Detail())
	}
}

func TestLookup_Timeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	svc := newTestService(config.UpstreamSnapshot{BaseURL: upstream.URL, APIKey: "secret-key", Timeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := svc.Lookup(context.Background(), model.FlightQuery{FlightIATA: "AA100"})
	elapsed := time.Since(start)

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Lookup() error = %v, want *UpstreamError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded in chain", err)
	}
	if strings.Contains(ue.Detail(), "secret-key") {
		t.Errorf("Detail() leaks access key: %q", ue.Detail())
	}
	if elapsed > 5*time.Second {
		t.Errorf("Lookup() took %v, want prompt timeout", elapsed)
	}
}

func TestLookup_Unreachable(t *testing.T) {
	svc := newTestService(config.UpstreamSnapshot{BaseURL: "http://127.0.0.1:1", APIKey: "k", Timeout: time.Second})

	_, err := svc.Lookup(context.Background(), model.FlightQuery{FlightIATA: "AA100"})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Lookup() error = %v, want *UpstreamError", err)
	}
}

func TestBuildUpstreamURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{"default base", "http://api.aviationstack.com/v1", "http://api.aviationstack.com/v1/flights?access_key=k%26x&flight_iata=AA+100", false},
		{"trailing slash", "https://example.com/v1/", "https://example.com/v1/flights?access_key=k%26x&flight_iata=AA+100", false},
		{"no path", "http://127.0.0.1:8080", "http://127.0.0.1:8080/flights?access_key=k%26x&flight_iata=AA+100", false},
		{"relative", "api.example.com", "", true},
		{"unparseable", "http://[::1:bad", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildUpstreamURL(tt.base, "k&x", "AA 100")
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildUpstreamURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildUpstreamURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMockFlights(t *testing.T) {
	tests := []struct {
		flight     string
		wantNumber string
	}{
		{"AA100", "100"},
		{"UA2402", "2402"},
		{"BA", "100"},
		{"D4-56x7", "4567"},
	}

	for _, tt := range tests {
		t.Run(tt.flight, func(t *testing.T) {
			got := MockFlights(tt.flight)
			if !got.Mock {
				t.Error("Mock = false, want true")
			}
			if len(got.Data) != 1 {
				t.Fatalf("len(Data) = %d, want 1", len(got.Data))
			}
			rec := got.Data[0]
			if rec.Flight.IATA != tt.flight {
				t.Errorf("Flight.IATA = %q, want %q", rec.Flight.IATA, tt.flight)
			}
			if rec.Flight.Number != tt.wantNumber {
				t.Errorf("Flight.Number = %q, want %q", rec.Flight.Number, tt.wantNumber)
			}
			if rec.Airline.Name != "Demo Air" || rec.Departure.Airport != "SFO" || rec.Arrival.Airport != "LAX" {
				t.Errorf("record = %+v, want Demo Air SFO→LAX", rec)
			}
			if !reflect.DeepEqual(got, MockFlights(tt.flight)) {
				t.Error("MockFlights is not deterministic")
			}
		})
	}
}

func TestRedact(t *testing.T) {
	in := `Get "http://api.aviationstack.com/v1/flights?access_key=abc123&flight_iata=AA1": dial tcp`
	got := Redact(in)
	if strings.Contains(got, "abc123") {
		t.Errorf("Redact() = %q, still contains key", got)
	}
	if !strings.Contains(got, "access_key=[REDACTED]&flight_iata=AA1") {
		t.Errorf("Redact() = %q, want redacted marker", got)
	}
}
