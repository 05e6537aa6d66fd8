package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/app"
	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/cli"
)

// main is the entrypoint for the pangeo-forge-aws-bakery application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW, errW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, errW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// Assembly panics on programmer errors (duplicate or forward-referencing
	// declarations), so we recover here to provide a clean exit message.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(errW, "A critical startup error occurred: %v\n", r)
			os.Exit(1)
		}
	}()

	bakeryApp := app.NewApp(outW, errW, appConfig, nil)
	return bakeryApp.Run(context.Background())
}
