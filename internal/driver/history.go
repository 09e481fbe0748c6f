package driver

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/ST2Projects/tierscan/internal/phash"
	"github.com/ST2Projects/tierscan/internal/report"
	"github.com/ST2Projects/tierscan/internal/store"
)

// hashFile computes the sha256 content hash store.HashContent expects,
// reading the file directly rather than re-encoding the decoded image (the
// cache key is the file's bytes, not its decoded pixels).
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()
	return store.HashContent(f)
}

// decodeCachedClassification unmarshals a history record's stored
// classification JSON, refusing a malformed or filename-mismatched record
// rather than risking a stale result silently leaking through.
func decodeCachedClassification(raw string, wantFilename string) (report.Classification, bool) {
	var c report.Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return report.Classification{}, false
	}
	if c.Filename != wantFilename {
		return report.Classification{}, false
	}
	return c, true
}

// saveHistory upserts the classification just produced into the history
// cache, keyed by the file's content hash.
func (d *Driver) saveHistory(contentHash, path string, img image.Image, c report.Classification) error {
	encoded, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode classification for history: %w", err)
	}

	var perceptualHash string
	if img != nil {
		if h, err := phash.Compute(img); err == nil {
			perceptualHash = h.String()
		}
	}

	rec := &store.HistoryRecord{
		ContentHash:        contentHash,
		SourcePath:         path,
		PerceptualHash:     perceptualHash,
		ClassificationJSON: string(encoded),
		ScannedAt:          time.Now().UTC(),
	}
	return d.History.Save(rec)
}
