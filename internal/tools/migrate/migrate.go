// Package migrate implements the relay-migrate command: it brings the relay
// database schema up to the version compiled into the binary, running any
// data rebuilds the pending migrations require.
package migrate

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/thesimplekid/nostr-rs-relay/internal/platform/config"
	relayconfig "github.com/thesimplekid/nostr-rs-relay/internal/relay/config"
	"github.com/thesimplekid/nostr-rs-relay/internal/relay/info"
	"github.com/thesimplekid/nostr-rs-relay/internal/relay/storage/sqlite"
)

// Config holds relay-migrate command configuration.
type Config struct {
	Settings relayconfig.Settings
	Timeout  time.Duration
	ShowInfo bool
}

type envConfig struct {
	Timeout time.Duration `env:"RELAY_MIGRATE_TIMEOUT" envDefault:"30m"`
}

// ParseConfig loads environment defaults and parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg.Settings); err != nil {
		return Config{}, err
	}
	var envCfg envConfig
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, err
	}
	cfg.Timeout = envCfg.Timeout

	fs.StringVar(&cfg.Settings.Database.Path, "db-path", cfg.Settings.Database.Path, "path to the relay sqlite database (default: RELAY_DB_PATH)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	fs.BoolVar(&cfg.ShowInfo, "info", false, "print the relay information document and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the relay-migrate command.
//
// A failure here is fatal to relay startup: the process must not serve
// traffic against a partially upgraded schema. The ledger guarantees a rerun
// picks up exactly the work that did not complete.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	if cfg.ShowInfo {
		doc := info.New(cfg.Settings.Info, cfg.Settings.PayToRelay)
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode relay info: %w", err)
		}
		return nil
	}

	store, err := sqlite.Open(cfg.Settings.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureLedger(ctx); err != nil {
		return err
	}

	start := time.Now()
	version, err := store.Upgrade(ctx,
		sqlite.WithLogWriter(out),
		sqlite.WithProgress(progressPrinter(errOut)),
	)
	if err != nil {
		return fmt.Errorf("upgrade schema: %w", err)
	}

	fmt.Fprintf(out, "schema version %d (%s)\n", version, time.Since(start).Round(time.Millisecond))
	return nil
}

// progressPrinter reports rebuild progress one percent at a time so large
// event tables do not flood the terminal.
func progressPrinter(w io.Writer) sqlite.ProgressFunc {
	var last int64 = -1
	return func(processed, total int64) {
		if total == 0 {
			return
		}
		percent := processed * 100 / total
		if percent == last && processed != total {
			return
		}
		last = percent
		fmt.Fprintf(w, "rebuilding tags %d/%d (%d%%)\n", processed, total, percent)
	}
}
