package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/unirank/internal/loadgen"
)

// Default configuration constants.
const (
	defaultUsers       = 200
	defaultRounds      = 3
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultWait        = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users    = flag.Int("users", defaultUsers, "Number of synthetic users")
		rounds   = flag.Int("rounds", defaultRounds, "Snapshots per platform")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait     = flag.Duration("wait", defaultWait, "How long to wait for the board to settle")
		register = flag.Bool("register", true, "Register the calibration catalogue first")
		logFile  = flag.String("log", "", "Log file (default stdout)")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if err := loadgen.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:  *baseURL,
		Users:    *users,
		Rounds:   *rounds,
		Workers:  *workers,
		Timeout:  *timeout,
		Wait:     *wait,
		Register: *register,
		Verbose:  *verbose,
	}

	if err := loadgen.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
