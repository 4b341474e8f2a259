package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Busy handling. With WAL and the busy_timeout pragma most lock contention
// resolves inside SQLite; these wrappers cover the residue. The clipboard
// poller and the retention sweeper write concurrently, so a whole
// transaction is retried a bounded number of times before the error
// surfaces to the caller.

const (
	busyRetries = 3
	busyBackoff = 100 * time.Millisecond
)

// IsBusy reports whether err indicates an SQLite BUSY condition, covering
// the message forms the modernc driver produces.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx executes fn inside a transaction, retrying the whole transaction on
// BUSY with linear backoff (100/200/300 ms). fn must be safe to re-run from
// scratch; any non-busy error aborts immediately.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= busyRetries; attempt++ {
		if err = txOnce(ctx, db, fn); err == nil || !IsBusy(err) {
			return err
		}
		if attempt < busyRetries {
			if werr := waitRetry(ctx, attempt); werr != nil {
				return werr
			}
		}
	}
	return err
}

func txOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

// Exec executes a single statement with the same busy-retry discipline as
// RunTx.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var (
		result sql.Result
		err    error
	)
	for attempt := 1; attempt <= busyRetries; attempt++ {
		result, err = db.ExecContext(ctx, query, args...)
		if err == nil || !IsBusy(err) {
			return result, err
		}
		if attempt < busyRetries {
			if werr := waitRetry(ctx, attempt); werr != nil {
				return nil, werr
			}
		}
	}
	return nil, err
}

func waitRetry(ctx context.Context, attempt int) error {
	t := time.NewTimer(busyBackoff * time.Duration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("dbopen: retry wait: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
