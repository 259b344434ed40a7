// Package main provides the relay database migration command.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thesimplekid/nostr-rs-relay/internal/platform/config"
	"github.com/thesimplekid/nostr-rs-relay/internal/platform/otel"
	"github.com/thesimplekid/nostr-rs-relay/internal/tools/migrate"
)

const otelShutdownTimeout = 5 * time.Second

func main() {
	cfg, err := migrate.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "relay-migrate")
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := migrate.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
