package store

// Schema contains the complete DDL for the clipboard record index.
const Schema = `
-- Clipboard records: one row per captured payload. The payload lives either
-- inline (short text) or in a blob file under the base directory.
CREATE TABLE IF NOT EXISTS records (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    preview     TEXT NOT NULL DEFAULT '',
    inline_data BLOB,
    blob_path   TEXT NOT NULL DEFAULT '',
    size_bytes  INTEGER NOT NULL,
    created_at  INTEGER NOT NULL
);

-- Dedup key: one live record per (kind, fingerprint).
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_dedup ON records(kind, fingerprint);
CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
`
