package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rsignell-usgs/pangeo-forge-aws-bakery/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("pangeo-forge-aws-bakery", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
pangeo-forge-aws-bakery - Provisions the Pangeo Forge bakery stack on AWS.

Usage:
  pangeo-forge-aws-bakery [options] [COMMAND]

Commands:
  synth    Assemble the stack and print its topology document (default).
  apply    Assemble the stack and provision it through the engine.
  destroy  Tear down a previously applied stack.

Options:
`)
		flagSet.PrintDefaults()
	}

	idFlag := flagSet.String("id", "", "Stack identifier; suffixes every resource and export name.")
	manifestFlag := flagSet.String("manifest", "", "Path to an optional bakery manifest (.hcl) with input overrides.")
	engineFlag := flagSet.String("engine", "aws", "Provisioning engine for apply and destroy. Options: 'aws'.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	command := app.CommandSynth
	if flagSet.NArg() > 0 {
		command = flagSet.Arg(0)
	}
	slog.Debug("Command determined.", "command", command)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Command:      command,
		Identifier:   *idFlag,
		ManifestPath: *manifestFlag,
		Engine:       *engineFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
