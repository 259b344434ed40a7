package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
)

// MigrationResult reports whether running a single migration changed anything.
type MigrationResult int

const (
	// ResultNotNeeded means the serial number was already in the ledger.
	ResultNotNeeded MigrationResult = iota
	// ResultUpgraded means the migration ran and its serial was recorded.
	ResultUpgraded
)

// UpgradeOption configures an Upgrade run.
type UpgradeOption func(*upgradeConfig)

type upgradeConfig struct {
	progress ProgressFunc
	out      io.Writer
}

// WithProgress installs an observer for backfill progress. The observer is
// operator-facing only; it never influences control flow.
func WithProgress(fn ProgressFunc) UpgradeOption {
	return func(cfg *upgradeConfig) {
		cfg.progress = fn
	}
}

// WithLogWriter directs operator-facing upgrade notes to w.
func WithLogWriter(w io.Writer) UpgradeOption {
	return func(cfg *upgradeConfig) {
		if w != nil {
			cfg.out = w
		}
	}
}

// EnsureLedger idempotently creates the version ledger table.
//
// The primary key enforces that a serial number is recorded at most once; a
// second process racing on the same pending migration fails its ledger insert
// and rolls back cleanly.
func (s *Store) EnsureLedger(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS migrations (serial_number INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure ledger table: %w", err)
	}
	return nil
}

// Upgrade applies every pending migration in ascending serial order and
// returns the resulting schema version.
//
// Each migration's statements and its ledger insert share one transaction, so
// a failure leaves the serial unrecorded and the schema untouched; the
// migration stays pending and is retried verbatim on the next run. A failed
// migration aborts the walk, since later migrations may depend on it. When a
// migration carries a rebuild, the rebuild runs once, after the schema
// transaction has committed.
func (s *Store) Upgrade(ctx context.Context, opts ...UpgradeOption) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	cfg := upgradeConfig{out: io.Discard}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := s.EnsureLedger(ctx); err != nil {
		return 0, err
	}

	var last int64
	for _, m := range catalog {
		if m.Serial <= last {
			return 0, fmt.Errorf("migration catalog out of order at serial %d", m.Serial)
		}
		last = m.Serial

		result, err := s.runMigration(ctx, m)
		if err != nil {
			if isConstraintError(err) {
				return 0, fmt.Errorf("migration %d: %w (another process may be upgrading the same database)", m.Serial, err)
			}
			return 0, fmt.Errorf("migration %d: %w", m.Serial, err)
		}
		if result == ResultNotNeeded {
			continue
		}

		fmt.Fprintf(cfg.out, "applied migration %d\n", m.Serial)
		if m.Rebuild != nil {
			if err := m.Rebuild(s, ctx, cfg.progress); err != nil {
				return 0, fmt.Errorf("migration %d rebuild: %w", m.Serial, err)
			}
		}
	}

	return s.CurrentVersion(ctx)
}

// CurrentVersion returns the highest serial recorded in the ledger, or zero
// when no migration has been applied yet.
func (s *Store) CurrentVersion(ctx context.Context) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var version sql.NullInt64
	row := s.sqlDB.QueryRowContext(ctx, "SELECT MAX(serial_number) FROM migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version.Int64, nil
}

// runMigration applies one migration unless its serial is already recorded.
//
// The pending check re-reads the ledger every time instead of caching state
// across calls; the ledger is the single source of truth for what ran.
func (s *Store) runMigration(ctx context.Context, m Migration) (MigrationResult, error) {
	var count int64
	row := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE serial_number = ?", m.Serial)
	if err := row.Scan(&count); err != nil {
		return ResultNotNeeded, fmt.Errorf("check ledger: %w", err)
	}
	if count > 0 {
		return ResultNotNeeded, nil
	}

	err := s.runInTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range m.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec statement: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (serial_number) VALUES (?)", m.Serial); err != nil {
			return fmt.Errorf("record serial: %w", err)
		}
		return nil
	})
	if err != nil {
		return ResultNotNeeded, err
	}
	return ResultUpgraded, nil
}
