package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBuilderAggregatesCounts(t *testing.T) {
	b := NewBuilder("/photos", 5)
	b.SetDuplicatesRemoved(4)
	b.Add(Classification{Filename: "a.jpg", Classification: "super_safe", NSFWScore: 0.1, FaceScore: 0.6})

	got := b.Build(2*time.Second, "-")

	if got.Stats.OriginalImages != 5 {
		t.Errorf("OriginalImages = %d, want 5", got.Stats.OriginalImages)
	}
	if got.Stats.DuplicatesRemoved != 4 {
		t.Errorf("DuplicatesRemoved = %d, want 4", got.Stats.DuplicatesRemoved)
	}
	if got.Stats.TotalImages != 1 {
		t.Errorf("TotalImages = %d, want 1", got.Stats.TotalImages)
	}
	if got.Stats.SuperSafeCount != 1 {
		t.Errorf("SuperSafeCount = %d, want 1", got.Stats.SuperSafeCount)
	}
}

func TestBuildTotalImagesEqualsSumOfTierCounts(t *testing.T) {
	// total_images must equal super_safe_count + safe_count + nsfw_count + error_count.
	b := NewBuilder("/photos", 4)
	b.Add(Classification{Filename: "a.jpg", Classification: "super_safe"})
	b.Add(Classification{Filename: "b.jpg", Classification: "safe"})
	b.Add(Classification{Filename: "c.jpg", Classification: "nsfw"})
	b.Add(Classification{Filename: "d.jpg", Classification: "error"})

	got := b.Build(time.Second, "-")
	sum := got.Stats.SuperSafeCount + got.Stats.SafeCount + got.Stats.NSFWCount + got.Stats.ErrorCount
	if sum != got.Stats.TotalImages {
		t.Errorf("tier counts sum to %d, want total_images %d", sum, got.Stats.TotalImages)
	}
}

func TestBuildRoundsScoresToFourDecimals(t *testing.T) {
	b := NewBuilder("/photos", 1)
	b.Add(Classification{Filename: "a.jpg", Classification: "safe", NSFWScore: 0.123456789})

	got := b.Build(time.Second, "-")
	if got.Results["a.jpg"].NSFWScore != 0.1235 {
		t.Errorf("nsfw_score = %v, want 0.1235", got.Results["a.jpg"].NSFWScore)
	}
}

func TestWriteProducesValidJSON(t *testing.T) {
	b := NewBuilder("/photos", 1)
	b.Add(Classification{Filename: "a.jpg", Classification: "safe"})
	rep := b.Build(time.Second, "/out/report.json")

	var buf bytes.Buffer
	if err := Write(&buf, rep); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	var decoded BatchReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.OutputPath != "/out/report.json" {
		t.Errorf("output_path = %q, want /out/report.json", decoded.OutputPath)
	}
	if !strings.Contains(buf.String(), `"results"`) {
		t.Error("expected serialized report to contain a results key")
	}
}

func TestWriteIncludesErrorKeyOnSuccess(t *testing.T) {
	b := NewBuilder("/photos", 1)
	b.Add(Classification{Filename: "a.jpg", Classification: "safe"})
	rep := b.Build(time.Second, "-")

	var buf bytes.Buffer
	if err := Write(&buf, rep); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	results := decoded["results"].(map[string]interface{})
	entry := results["a.jpg"].(map[string]interface{})
	errVal, ok := entry["error"]
	if !ok {
		t.Fatal("expected \"error\" key to be present even on a successful classification")
	}
	if errVal != "" {
		t.Errorf("error = %v, want empty string on success", errVal)
	}
}

func TestWriteOrdersResultsLexicographically(t *testing.T) {
	b := NewBuilder("/photos", 3)
	b.Add(Classification{Filename: "zebra.jpg", Classification: "safe"})
	b.Add(Classification{Filename: "apple.jpg", Classification: "safe"})
	b.Add(Classification{Filename: "mango.jpg", Classification: "safe"})
	rep := b.Build(time.Second, "-")

	var buf bytes.Buffer
	if err := Write(&buf, rep); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	out := buf.String()
	appleIdx := strings.Index(out, "apple.jpg")
	mangoIdx := strings.Index(out, "mango.jpg")
	zebraIdx := strings.Index(out, "zebra.jpg")
	if !(appleIdx < mangoIdx && mangoIdx < zebraIdx) {
		t.Error("expected results to serialize in lexicographic filename order")
	}
}
