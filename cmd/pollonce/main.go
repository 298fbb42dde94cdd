// Command pollonce runs a single poll cycle and prints the result as JSON.
// It is meant for deployments where an external scheduler such as cron owns
// the cadence. The cadence gate still applies, so a run that comes too soon
// after the previous one reports skipped.
//
// Usage:
//
//	go run ./cmd/pollonce
//
// Exit status is 0 for success or skipped, 1 for an error cycle.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nws-alert-ingest/internal/app"
	"github.com/couchcryptid/nws-alert-ingest/internal/config"
	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
	"github.com/couchcryptid/nws-alert-ingest/internal/observability"
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pollonce:", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return 1, err
	}

	logger, closeLog, err := observability.OpenLogger(cfg.LogLevel, cfg.LogFormat, cfg.PollLogFile)
	if err != nil {
		return 1, err
	}
	defer closeLog()

	a, err := app.New(cfg, clockwork.NewRealClock(), logger, observability.NewMetrics())
	if err != nil {
		return 1, err
	}
	defer a.Close()

	res := a.Pipeline.Poll(context.Background())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return 1, fmt.Errorf("encode result: %w", err)
	}

	if res.Status == domain.PollError {
		return 1, nil
	}
	return 0, nil
}
