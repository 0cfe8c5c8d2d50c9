package main

import (
	"fmt"
	"os"

	"panorama-viewer/internal/config"
	"panorama-viewer/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := newRootCmd(cfg).Execute(); err != nil {
		logging.Error().Err(err).Msg("command_failed")
		os.Exit(1)
	}
}
