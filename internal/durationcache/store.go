package durationcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"longrec/internal/logging"
)

// Store caches per-file durations in SQLite. Entries are keyed on the file's
// path, size and modification time together with the frequency and data key
// used to compute them, so a rewritten file is never served a stale value.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Key identifies one cached duration.
type Key struct {
	Path      string
	Size      int64
	MtimeNs   int64
	Frequency float64
	DataKey   string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the cache database at dbPath.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, logger: logging.NewComponentLogger(logger, "durationcache")}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// KeyFor stats path and builds its cache key.
func KeyFor(path string, frequency float64, dataKey string) (Key, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Key{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Key{
		Path:      path,
		Size:      info.Size(),
		MtimeNs:   info.ModTime().UnixNano(),
		Frequency: frequency,
		DataKey:   dataKey,
	}, nil
}

// Get returns the cached duration for key.
func (s *Store) Get(ctx context.Context, key Key) (float64, bool, error) {
	var seconds float64
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT seconds FROM durations WHERE path = ? AND size = ? AND mtime_ns = ? AND frequency = ? AND data_key = ?`,
			key.Path, key.Size, key.MtimeNs, key.Frequency, key.DataKey,
		).Scan(&seconds)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query duration: %w", err)
	}
	return seconds, true, nil
}

// Put stores the duration for key, replacing older entries of the same path
// that were computed from a different file version.
func (s *Store) Put(ctx context.Context, key Key, seconds float64) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM durations WHERE path = ? AND (size <> ? OR mtime_ns <> ?)`,
			key.Path, key.Size, key.MtimeNs,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO durations (path, size, mtime_ns, frequency, data_key, seconds, computed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			key.Path, key.Size, key.MtimeNs, key.Frequency, key.DataKey, seconds, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Lookup returns the cached duration of path, calling compute and storing
// its result on a miss. Cache failures are logged and never hide the
// computed value.
func (s *Store) Lookup(ctx context.Context, path string, frequency float64, dataKey string, compute func() (float64, error)) (float64, error) {
	if s == nil {
		return compute()
	}
	key, err := KeyFor(path, frequency, dataKey)
	if err != nil {
		return compute()
	}
	if seconds, ok, err := s.Get(ctx, key); err != nil {
		s.logger.Warn("duration cache read failed", logging.String("path", path), logging.Error(err))
	} else if ok {
		return seconds, nil
	}

	seconds, err := compute()
	if err != nil {
		return 0, err
	}
	if err := s.Put(ctx, key, seconds); err != nil {
		s.logger.Warn("duration cache write failed", logging.String("path", path), logging.Error(err))
	}
	return seconds, nil
}

// Stats summarizes the cache content.
type Stats struct {
	Entries int
	Files   int
}

// Stats counts cached rows and distinct files.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COUNT(DISTINCT path) FROM durations`).Scan(&stats.Entries, &stats.Files)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

// Prune removes entries whose file no longer exists and returns how many
// rows were deleted.
func (s *Store) Prune(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT path FROM durations`)
	if err != nil {
		return 0, fmt.Errorf("list cached paths: %w", err)
	}
	var missing []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan path: %w", err)
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			missing = append(missing, path)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range missing {
		var res sql.Result
		err := retryOnBusy(ctx, func() error {
			var execErr error
			res, execErr = s.db.ExecContext(ctx, `DELETE FROM durations WHERE path = ?`, path)
			return execErr
		})
		if err != nil {
			return removed, fmt.Errorf("delete %s: %w", path, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += int(n)
		}
	}
	return removed, nil
}

// Clear removes every cached entry.
func (s *Store) Clear(ctx context.Context) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM durations`)
		return err
	})
}
