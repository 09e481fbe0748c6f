// Package store is the optional sqlite-backed history cache. It lets
// repeat batches over overlapping folders skip re-scoring a file whose
// content hash hasn't changed since a prior run. With no store configured,
// batch behavior is unaffected.
package store

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// DB wraps a sqlite connection holding the classification history cache:
// an embedded *sqlx.DB plus a New/initSchema/Close lifecycle.
type DB struct {
	*sqlx.DB
}

// New opens (creating if necessary) the sqlite history database at dbPath
// and ensures its schema exists.
func New(dbPath string) (*DB, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	store := &DB{DB: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return store, nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS classification_history (
		content_hash TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		perceptual_hash TEXT NOT NULL,
		classification_json TEXT NOT NULL,
		scanned_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_scanned_at ON classification_history(scanned_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}

	log.Debug("classification history schema ready")
	return nil
}

// HistoryRecord is one cached classification keyed by the file's content
// hash.
type HistoryRecord struct {
	ContentHash        string    `db:"content_hash"`
	SourcePath         string    `db:"source_path"`
	PerceptualHash     string    `db:"perceptual_hash"`
	ClassificationJSON string    `db:"classification_json"`
	ScannedAt          time.Time `db:"scanned_at"`
}

// Lookup returns the cached record for contentHash, or nil if no prior run
// scanned a file with this exact content.
func (db *DB) Lookup(contentHash string) (*HistoryRecord, error) {
	var rec HistoryRecord
	err := db.Get(&rec, `SELECT * FROM classification_history WHERE content_hash = ?`, contentHash)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up history record: %w", err)
	}
	return &rec, nil
}

// Save upserts rec, replacing any prior record for the same content hash.
func (db *DB) Save(rec *HistoryRecord) error {
	query := `
		INSERT INTO classification_history (content_hash, source_path, perceptual_hash, classification_json, scanned_at)
		VALUES (:content_hash, :source_path, :perceptual_hash, :classification_json, :scanned_at)
		ON CONFLICT(content_hash) DO UPDATE SET
			source_path = excluded.source_path,
			perceptual_hash = excluded.perceptual_hash,
			classification_json = excluded.classification_json,
			scanned_at = excluded.scanned_at
	`
	if _, err := db.NamedExec(query, rec); err != nil {
		return fmt.Errorf("failed to save history record: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// HashContent computes the sha256 content hash used as the history cache
// key, following a database.HashContent idiom.
func HashContent(content io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, content); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
