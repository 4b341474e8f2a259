// CLAUDE:SUMMARY SQLite-backed clipboard store — record index plus blob file tree, content-addressed dedup, retention sweep.
// Package store is the persistence engine for clipboard records.
//
// The index is a single SQLite table (see Schema); payloads live inline in
// the row for short text or as blob files under the base directory,
// partitioned by content kind and, optionally, by save date:
//
//	<base>/clipboard_history.db
//	<base>/{text,rich_text,images,files,urls}/<YYYY-MM-DD>/<blob>
//
// The store exclusively owns the blob tree: no other component writes it.
// Insert commits the blob file before the index row and never leaves a row
// pointing at a missing blob; Delete removes the blob before the row, so an
// orphan blob is the worst possible outcome of a crash.
package store

import (
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/hazyhaar/clipkeeper/classify"
	"github.com/hazyhaar/clipkeeper/dbopen"
)

// DBFileName is the index file name inside the base directory.
const DBFileName = "clipboard_history.db"

// ErrNotFound is returned by Restore when the record id is absent.
var ErrNotFound = errors.New("store: record not found")

// ErrDuplicate is returned by Insert when a live record with the same
// (kind, fingerprint) already exists. The pipeline normally checks Exists
// first; the unique index is the backstop under concurrent inserts.
var ErrDuplicate = errors.New("store: duplicate record")

// ErrBusy is returned when the database stays locked past the retry budget.
var ErrBusy = errors.New("store: database busy")

// Store is the clipboard record store.
type Store struct {
	DB      *sql.DB
	baseDir string
	logger  *slog.Logger

	// organizeByDate controls whether blob files are partitioned into
	// YYYY-MM-DD subdirectories. Runtime-mutable via SetOrganizeByDate.
	organizeByDate atomic.Bool
}

// Option customises Open.
type Option func(*Store)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithoutDateFolders disables the per-date blob subdirectories.
func WithoutDateFolders() Option { return func(s *Store) { s.organizeByDate.Store(false) } }

// Open opens (or creates) the record store rooted at baseDir, applying the
// clipkeeper pragmas and the record schema.
func Open(baseDir string, opts ...Option) (*Store, error) {
	s := &Store{
		baseDir: baseDir,
		logger:  slog.Default(),
	}
	s.organizeByDate.Store(true)
	for _, o := range opts {
		o(s)
	}

	db, err := dbopen.Open(filepath.Join(baseDir, DBFileName),
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	)
	if err != nil {
		return nil, err
	}
	s.DB = db
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// SetOrganizeByDate toggles date partitioning for subsequently written blobs.
// Existing blob paths are unaffected.
func (s *Store) SetOrganizeByDate(on bool) {
	s.organizeByDate.Store(on)
}

// kindDir maps a content kind to its blob directory name. The names match
// the on-disk layout of earlier releases, so existing trees keep working.
func kindDir(k classify.Kind) string {
	switch k {
	case classify.KindImage:
		return "images"
	case classify.KindFileList:
		return "files"
	case classify.KindURL:
		return "urls"
	default:
		return string(k)
	}
}

// blobExt picks the blob file extension for a kind.
func blobExt(k classify.Kind) string {
	switch k {
	case classify.KindImage:
		return ".png"
	case classify.KindRichText:
		return ".html"
	default:
		return ".txt"
	}
}

// isUniqueViolation reports whether err is the dedup index firing.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
