package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/clipkeeper/dbopen"
)

// Sweep enforces retention. Records older than maxAge go first, then the
// oldest survivors beyond maxCount. A zero maxAge or maxCount disables the
// corresponding rule. The victim set is snapshotted up front, so records
// saved while the sweep runs are never collected by it; blobs are removed
// before the rows are deleted in a single transaction. Returns the number
// of records removed.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration, maxCount int) (int, error) {
	type victim struct {
		id       string
		blobPath string
	}
	var victims []victim
	seen := make(map[string]bool)

	collect := func(query string, args ...any) error {
		rows, err := s.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v victim
			if err := rows.Scan(&v.id, &v.blobPath); err != nil {
				return err
			}
			if !seen[v.id] {
				seen[v.id] = true
				victims = append(victims, v)
			}
		}
		return rows.Err()
	}

	if maxAge > 0 {
		cutoff := time.Now().Add(-maxAge).Unix()
		if err := collect(`SELECT id, blob_path FROM records WHERE created_at < ?`, cutoff); err != nil {
			return 0, fmt.Errorf("store: sweep age scan: %w", err)
		}
	}
	if maxCount > 0 {
		// Everything past the cap, newest first. Age victims are the oldest
		// rows, so they land in this tail too; the seen map dedups them.
		err := collect(`SELECT id, blob_path FROM records
			ORDER BY created_at DESC, id
			LIMIT -1 OFFSET ?`, maxCount)
		if err != nil {
			return 0, fmt.Errorf("store: sweep count scan: %w", err)
		}
	}
	if len(victims) == 0 {
		return 0, nil
	}

	for _, v := range victims {
		if err := s.removeBlob(v.blobPath); err != nil {
			s.logger.Warn("sweep blob removal failed", "id", v.id, "path", v.blobPath, "error", err)
		}
	}

	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, v := range victims {
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, v.id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if dbopen.IsBusy(err) {
			return 0, fmt.Errorf("sweep delete: %w", ErrBusy)
		}
		return 0, fmt.Errorf("store: sweep delete: %w", err)
	}

	s.logger.Info("retention sweep", "removed", len(victims))
	return len(victims), nil
}

// Wipe removes every record and every blob, leaving an empty store.
func (s *Store) Wipe(ctx context.Context) error {
	rows, err := s.DB.QueryContext(ctx, `SELECT blob_path FROM records WHERE blob_path != ''`)
	if err != nil {
		return fmt.Errorf("store: wipe scan: %w", err)
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return fmt.Errorf("store: wipe scan: %w", err)
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: wipe scan: %w", err)
	}

	for _, p := range paths {
		if err := s.removeBlob(p); err != nil {
			s.logger.Warn("wipe blob removal failed", "path", p, "error", err)
		}
	}
	if _, err := dbopen.Exec(ctx, s.DB, `DELETE FROM records`); err != nil {
		return fmt.Errorf("store: wipe: %w", err)
	}
	s.logger.Info("store wiped", "blobs", len(paths))
	return nil
}

// KindStat is per-kind usage reported by Stats.
type KindStat struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Stats summarises store contents.
type Stats struct {
	Total      int64      `json:"total"`
	TotalBytes int64      `json:"total_bytes"`
	ByKind     []KindStat `json:"by_kind"`
	Oldest     time.Time  `json:"oldest,omitempty"`
	Newest     time.Time  `json:"newest,omitempty"`
	DBPath     string     `json:"db_path"`
	DBBytes    int64      `json:"db_bytes"`
}

// Stats returns record counts and byte totals, overall and per kind.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.dbPath()}

	rows, err := s.DB.QueryContext(ctx, `SELECT kind, COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM records GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ks KindStat
		if err := rows.Scan(&ks.Kind, &ks.Count, &ks.Bytes); err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
		st.Total += ks.Count
		st.TotalBytes += ks.Bytes
		st.ByKind = append(st.ByKind, ks)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}

	if st.Total > 0 {
		var oldest, newest int64
		err := s.DB.QueryRowContext(ctx, `SELECT MIN(created_at), MAX(created_at) FROM records`).
			Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
		st.Oldest = time.Unix(oldest, 0)
		st.Newest = time.Unix(newest, 0)
	}

	if fi, err := os.Stat(st.DBPath); err == nil {
		st.DBBytes = fi.Size()
	}
	return st, nil
}

func (s *Store) dbPath() string {
	return filepath.Join(s.baseDir, DBFileName)
}
