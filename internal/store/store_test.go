package store

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func TestHashContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "empty content",
			content:  "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:     "simple string",
			content:  "hello world",
			expected: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashContent(bytes.NewReader([]byte(tt.content)))
			if err != nil {
				t.Fatalf("HashContent() error = %v", err)
			}
			if hash != tt.expected {
				t.Errorf("HashContent() = %s, want %s", hash, tt.expected)
			}
		})
	}
}

func TestNewCreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	var name string
	err = db.Get(&name, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, "classification_history")
	if err != nil {
		t.Errorf("classification_history table does not exist: %v", err)
	}
}

func TestSaveAndLookupRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	rec := &HistoryRecord{
		ContentHash:        "abc123",
		SourcePath:         "/photos/a.jpg",
		PerceptualHash:     "00ff00ff00ff00ff",
		ClassificationJSON: `{"classification":"safe"}`,
		ScannedAt:          time.Now().UTC().Truncate(time.Second),
	}

	if err := db.Save(rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := db.Lookup("abc123")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got == nil {
		t.Fatal("Lookup() returned nil, want a cached record")
	}
	if got.SourcePath != rec.SourcePath {
		t.Errorf("SourcePath = %q, want %q", got.SourcePath, rec.SourcePath)
	}
}

func TestLookupMissingReturnsNil(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	got, err := db.Lookup("does-not-exist")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != nil {
		t.Errorf("Lookup() = %+v, want nil for an unknown content hash", got)
	}
}

func TestSaveUpsertsOnConflict(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	rec := &HistoryRecord{ContentHash: "dup", SourcePath: "/a.jpg", PerceptualHash: "1", ClassificationJSON: "{}", ScannedAt: time.Now().UTC().Truncate(time.Second)}
	if err := db.Save(rec); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	rec.SourcePath = "/b.jpg"
	if err := db.Save(rec); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := db.Lookup("dup")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.SourcePath != "/b.jpg" {
		t.Errorf("SourcePath = %q after upsert, want /b.jpg", got.SourcePath)
	}
}
