package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/clipkeeper/classify"
	"github.com/hazyhaar/clipkeeper/dbopen"
)

// Record is one saved clipboard entry.
type Record struct {
	ID          string        `json:"id"`
	Kind        classify.Kind `json:"kind"`
	Fingerprint string        `json:"fingerprint"`
	Preview     string        `json:"preview"`
	BlobPath    string        `json:"blob_path,omitempty"`
	SizeBytes   int64         `json:"size_bytes"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Insert persists a new record with its payload. Short text and url payloads
// are stored inline in the row; everything else goes to a blob file written
// before the row commits. If the row insert fails after the blob was written
// the blob is removed, so a failed Insert leaves no trace.
//
// Returns ErrDuplicate when a record with the same (kind, fingerprint)
// already exists; the existing record is left untouched.
func (s *Store) Insert(ctx context.Context, rec *Record, payload []byte) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.SizeBytes = int64(len(payload))

	var inline []byte
	if storeInline(rec.Kind, len(payload)) {
		inline = payload
		rec.BlobPath = ""
	} else {
		path, err := s.writeBlob(rec.Kind, rec.ID, rec.CreatedAt, payload)
		if err != nil {
			return err
		}
		rec.BlobPath = path
	}

	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (id, kind, fingerprint, preview, inline_data, blob_path, size_bytes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, string(rec.Kind), rec.Fingerprint, rec.Preview,
			inline, rec.BlobPath, rec.SizeBytes, rec.CreatedAt.Unix())
		return err
	})
	if err != nil {
		if rec.BlobPath != "" {
			if rmErr := s.removeBlob(rec.BlobPath); rmErr != nil {
				s.logger.Warn("orphan blob after failed insert", "path", rec.BlobPath, "error", rmErr)
			}
			rec.BlobPath = ""
		}
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if dbopen.IsBusy(err) {
			return fmt.Errorf("insert record: %w", ErrBusy)
		}
		return fmt.Errorf("store: insert record: %w", err)
	}
	return nil
}

// Exists reports whether a record with this (kind, fingerprint) is stored.
func (s *Store) Exists(ctx context.Context, kind classify.Kind, fingerprint string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE kind = ? AND fingerprint = ?`,
		string(kind), fingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return true, nil
}

// ListOptions filters List. Zero values mean no constraint.
type ListOptions struct {
	Kind  classify.Kind
	Since time.Time
	Until time.Time
	Limit int
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	query := `SELECT id, kind, fingerprint, preview, blob_path, size_bytes, created_at
		FROM records WHERE 1=1`
	var args []any
	if opts.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(opts.Kind))
	}
	if !opts.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, opts.Since.Unix())
	}
	if !opts.Until.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, opts.Until.Unix())
	}
	query += ` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

// Get returns a single record's metadata, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, kind, fingerprint, preview, blob_path, size_bytes, created_at
		FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Restore returns a record and its full payload, from the inline column or
// the blob file. Returns ErrNotFound for an unknown id.
func (s *Store) Restore(ctx context.Context, id string) (*Record, []byte, error) {
	var (
		rec    Record
		kind   string
		inline []byte
		unix   int64
	)
	err := s.DB.QueryRowContext(ctx, `SELECT id, kind, fingerprint, preview, inline_data, blob_path, size_bytes, created_at
		FROM records WHERE id = ?`, id).Scan(
		&rec.ID, &kind, &rec.Fingerprint, &rec.Preview, &inline, &rec.BlobPath, &rec.SizeBytes, &unix)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: restore: %w", err)
	}
	rec.Kind = classify.Kind(kind)
	rec.CreatedAt = time.Unix(unix, 0)

	if rec.BlobPath == "" {
		return &rec, inline, nil
	}
	payload, err := s.readBlob(rec.BlobPath)
	if err != nil {
		return nil, nil, err
	}
	return &rec, payload, nil
}

// Delete removes a record and its blob. Deleting an unknown id is a no-op.
// The blob goes first; a blob removal failure is logged, not propagated, so
// the row always goes away.
func (s *Store) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.removeBlob(rec.BlobPath); err != nil {
		s.logger.Warn("blob removal failed", "id", id, "path", rec.BlobPath, "error", err)
	}
	if _, err := dbopen.Exec(ctx, s.DB, `DELETE FROM records WHERE id = ?`, id); err != nil {
		if dbopen.IsBusy(err) {
			return fmt.Errorf("delete record: %w", ErrBusy)
		}
		return fmt.Errorf("store: delete record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec  Record
		kind string
		unix int64
	)
	err := row.Scan(&rec.ID, &kind, &rec.Fingerprint, &rec.Preview, &rec.BlobPath, &rec.SizeBytes, &unix)
	if err != nil {
		return nil, err
	}
	rec.Kind = classify.Kind(kind)
	rec.CreatedAt = time.Unix(unix, 0)
	return &rec, nil
}
