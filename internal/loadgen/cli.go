package loadgen

import (
	"fmt"
	"os"

	"github.com/okian/unirank/pkg/logger"
)

// SetupLogging initializes the logger. An empty logFile logs to stdout.
func SetupLogging(logFile string, verbose bool) error {
	opts := []logger.Option{}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		opts = append(opts, logger.WithOutput(file))
	}
	if err := logger.InitWithOptions(opts...); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load generator.
func ShowHelp() {
	os.Stdout.WriteString(`unirank load generator
======================

Registers the calibration catalogue, submits synthetic platform snapshots
concurrently, replays one to check deduplication and verifies the
resulting leaderboard.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -users int         Number of synthetic users (default 200)
  -rounds int        Snapshots per platform (default 3)
  -workers int       Number of concurrent submitters (default CPU cores * 2)
  -timeout duration  HTTP request timeout (default 30s)
  -wait duration     How long to wait for the board to settle (default 30s)
  -register          Register the calibration catalogue first (default true)
  -log string        Log file (default stdout)
  -verbose           Enable verbose logging
  -help              Show this help message
`)
}
