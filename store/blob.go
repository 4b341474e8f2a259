package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/clipkeeper/classify"
)

// inlineThreshold is the largest text/url payload stored inside the index
// row. Larger payloads, and every non-text kind, go to a blob file.
const inlineThreshold = 4 * 1024

// storeInline reports whether a payload is kept in the row.
func storeInline(kind classify.Kind, size int) bool {
	if kind != classify.KindText && kind != classify.KindURL {
		return false
	}
	return size <= inlineThreshold
}

// writeBlob writes payload to its final location under the base directory
// using a temp file + rename, so a crash never leaves a half-written blob at
// a path a record could reference. Returns the path relative to baseDir.
func (s *Store) writeBlob(kind classify.Kind, id string, at time.Time, payload []byte) (string, error) {
	dir := kindDir(kind)
	if s.organizeByDate.Load() {
		dir = filepath.Join(dir, at.Format("2006-01-02"))
	}
	abs := filepath.Join(s.baseDir, dir)
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("store: mkdir blob dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s%s", kind, at.Format("20060102_150405"), shortID(id), blobExt(kind))
	final := filepath.Join(abs, name)

	tmp, err := os.CreateTemp(abs, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("store: create blob temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("store: write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store: close blob: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store: rename blob: %w", err)
	}

	return filepath.Join(dir, name), nil
}

// removeBlob deletes a blob file. A missing file is not an error (delete is
// idempotent); any other failure is logged by the caller, never fatal.
func (s *Store) removeBlob(relPath string) error {
	if relPath == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.baseDir, relPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// readBlob loads a blob file's contents.
func (s *Store) readBlob(relPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, relPath))
	if err != nil {
		return nil, fmt.Errorf("store: read blob: %w", err)
	}
	return data, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
