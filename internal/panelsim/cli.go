package panelsim

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/judgeboard/pkg/logger"
)

// SetupLogging initializes the global logger, teeing output into logFile
// when one is given.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w, closer = io.MultiWriter(os.Stdout, f), f
	}
	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`judgeboard panel simulator
==========================

Seats a panel of socket clients against a running server. Every judge
scores every candidate, a display client watches the broadcast, and the
leaderboard is verified at the end.

Usage:
  panel-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -judges int
        Number of active judges to seat, 0 for all (default 0)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request and connect timeout (default 30s)
  -settle duration
        How long to wait for acknowledgements (default 10s)
  -output string
        Write the generated submissions to this JSON file
  -log string
        Also write log output to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message
`)
}
