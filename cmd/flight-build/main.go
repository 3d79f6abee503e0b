package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"flight-edge/internal/assets"
)

// Set by goreleaser ldflags.
var version = "dev"

type cli struct {
	Src     string           `kong:"help='Client source directory.',default='web/client',env='BUILD_SRC'"`
	Dst     string           `kong:"help='Output directory, removed before copying.',default='dist',env='BUILD_DST'"`
	Version kong.VersionFlag `kong:"help='Print version and exit.'"`
}

func main() {
	var c cli
	kong.Parse(&c,
		kong.Name("flight-build"),
		kong.Description("Copies the game client into a clean distribution directory."),
		kong.Vars{"version": version},
	)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	b := assets.NewBuilder(afero.NewOsFs(), logger)
	if _, err := b.Build(c.Src, c.Dst); err != nil {
		logger.Error("build failed", "err", err)
		os.Exit(1)
	}
}
