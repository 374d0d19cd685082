package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/chatsplit/internal/config"
	"github.com/hpungsan/chatsplit/internal/errors"
	_ "modernc.org/sqlite"
)

// FileName is the ledger database file inside the base directory.
const FileName = "chatsplit.db"

// migrations holds one schema step per version; migrations[i] moves the
// ledger from user_version i to i+1.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
	  id            TEXT PRIMARY KEY,
	  input_path    TEXT NOT NULL,
	  output_dir    TEXT NOT NULL,
	  max_parts     INTEGER NOT NULL,
	  conversations INTEGER NOT NULL,
	  messages      INTEGER NOT NULL,
	  skipped       INTEGER NOT NULL,
	  shard_count   INTEGER NOT NULL,
	  shards_json   TEXT NOT NULL,
	  created_at    INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created
	ON runs(created_at DESC);`,
}

// CurrentSchemaVersion is the latest ledger schema version.
var CurrentSchemaVersion = len(migrations)

// Init opens (creating if needed) the run ledger at baseDir/chatsplit.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.chatsplit.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.NewIO("create ledger directory", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the DSN apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewIO("open ledger", err)
	}

	if err := checkJournalMode(db); err != nil {
		db.Close()
		return nil, errors.NewIO("open ledger", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.NewIO("migrate ledger", err)
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies db_max_open_conns / db_max_idle_conns.
// Zero values leave the sql.DB defaults.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate runs every step above the stored user_version, each in its own
// transaction together with the version bump.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return nil
}

func checkJournalMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("read journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("journal mode is %s, want wal", mode)
	}
	return nil
}

// GetUserVersion returns the ledger schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}
