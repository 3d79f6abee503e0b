package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"flight-edge/internal/client"
	"flight-edge/internal/config"
	"flight-edge/internal/handler"
	"flight-edge/internal/metrics"
	"flight-edge/internal/middleware"
	"flight-edge/internal/server"
	"flight-edge/internal/service"
	"flight-edge/internal/static"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("flight-edge"),
		kong.Description("Serves the flight game client and proxies flight lookups to aviationstack."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			fx.Annotate(config.NewEnvSource, fx.As(new(config.UpstreamSource))),
			newLogger,
			newEcho,
			newListener,
			newMetrics,
			client.NewFlightClient,
			service.NewFlightService,
			newStaticHandler,
			handler.NewFlightHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.MetricsMiddleware(m))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())

	return e
}

func newMetrics(cfg *config.Config) *metrics.Metrics {
	return metrics.New(metrics.WithScrapePath(cfg.Metrics.Path))
}

func newStaticHandler(cfg *config.Config, logger *slog.Logger) *static.Handler {
	return static.NewHandler(static.NewResolver(cfg.Server.StaticDir), logger)
}

func newListener(cfg *config.Config, e *echo.Echo, logger *slog.Logger) *server.Listener {
	grace := time.Duration(cfg.Server.ShutdownGraceSeconds) * time.Second
	return server.New(e, grace, logger)
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, sd fx.Shutdowner, ln *server.Listener, cfg *config.Config, src config.UpstreamSource, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			port, err := ln.Bind(cfg.Server.Host, cfg.Server.Port)
			if err != nil {
				return err
			}
			logger.Info("server listening",
				"url", fmt.Sprintf("http://localhost:%d", port),
				"static_dir", cfg.Server.StaticDir,
				"mock", src.Upstream().MockMode(),
			)
			go func() {
				if err := ln.Serve(); err != nil {
					logger.Error("server error", "err", err)
					_ = sd.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return ln.Close(ctx)
		},
	})
}
