package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read on every upstream snapshot.
const (
	EnvAPIKey  = "AVIATIONSTACK_API_KEY"
	EnvBaseURL = "AVIATIONSTACK_BASE_URL"
	EnvMock    = "MOCK_AVSTACK"
)

// DefaultUpstreamTimeout bounds a single provider call.
const DefaultUpstreamTimeout = 8 * time.Second

// LoadDotEnv merges the given dotenv files into the process environment.
// Variables that are already set are never overwritten, so earlier files win
// over later ones and the real environment wins over both. Missing files are
// skipped. It returns the files that were actually loaded.
func LoadDotEnv(files ...string) ([]string, error) {
	var loaded []string
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, fmt.Errorf("load dotenv %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// UpstreamSnapshot is a point-in-time view of the flight provider settings.
// It is never mutated after being returned by an UpstreamSource.
type UpstreamSnapshot struct {
	BaseURL string
	APIKey  string
	Mock    bool
	Timeout time.Duration
}

// MockMode reports whether the proxy must synthesize data instead of calling
// the provider: either mock is forced or there is no credential.
func (s UpstreamSnapshot) MockMode() bool {
	return s.Mock || s.APIKey == ""
}

// UpstreamSource produces a fresh UpstreamSnapshot for each proxy invocation.
type UpstreamSource interface {
	Upstream() UpstreamSnapshot
}

// StaticSource always returns the same snapshot.
type StaticSource UpstreamSnapshot

// Upstream implements UpstreamSource.
func (s StaticSource) Upstream() UpstreamSnapshot {
	return UpstreamSnapshot(s)
}

// EnvSource derives snapshots from the process environment, falling back to
// the TOML values. Dotenv files are re-merged on each call so that edits made
// while the server runs are picked up for keys not already set.
type EnvSource struct {
	cfg *Config
}

// NewEnvSource creates an EnvSource backed by cfg.
func NewEnvSource(cfg *Config) *EnvSource {
	return &EnvSource{cfg: cfg}
}

// Upstream implements UpstreamSource.
func (s *EnvSource) Upstream() UpstreamSnapshot {
	// A broken dotenv file was already reported at startup; keep serving
	// with whatever the environment holds.
	_, _ = LoadDotEnv(s.cfg.envFiles...)

	snap := UpstreamSnapshot{
		BaseURL: s.cfg.Upstream.BaseURL,
		APIKey:  s.cfg.Upstream.APIKey,
		Mock:    s.cfg.Upstream.Mock,
		Timeout: time.Duration(s.cfg.Upstream.TimeoutSeconds) * time.Second,
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		snap.BaseURL = v
	}
	if snap.BaseURL == "" {
		snap.BaseURL = DefaultBaseURL
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		snap.APIKey = v
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvMock)); err == nil && v {
		snap.Mock = true
	}
	if snap.Timeout <= 0 {
		snap.Timeout = DefaultUpstreamTimeout
	}
	return snap
}
