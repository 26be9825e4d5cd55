// Command garage-sensor watches the garage door switch and motion sensor,
// alerts the collector at night and uploads periodic status snapshots.
package main

import (
	"context"
	"os"

	"github.com/sweeney/garage-sensor/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Errorf(context.Background(), "fatal: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
