package app

import (
	"io"
	"log/slog"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/engine"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle. The synthesized document and resolved exports go to outW; logs
// go to errW so that synth output stays machine-readable.
type App struct {
	outW   io.Writer
	errW   io.Writer
	logger *slog.Logger
	config *Config

	// eng, when non-nil, overrides the engine selected by config. Tests
	// inject the recording engine here.
	eng engine.Engine
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger.
func NewApp(outW, errW io.Writer, config *Config, eng engine.Engine) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, errW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:   outW,
		errW:   errW,
		logger: logger,
		config: config,
		eng:    eng,
	}
}
