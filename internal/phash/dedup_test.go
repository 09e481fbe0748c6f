package phash

import "testing"

func hashOf(v uint64) *ImageHash { return &ImageHash{Hash: v} }

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     uint64
		expected int
	}{
		{"identical", 0xFF00FF00, 0xFF00FF00, 0},
		{"one bit differs", 0b0000, 0b0001, 1},
		{"all bits differ (8 bit pattern)", 0x00, 0xFF, 8},
		{"symmetric", 0b1010, 0b0101, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HammingDistance(tt.a, tt.b); got != tt.expected {
				t.Errorf("HammingDistance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
			if got := HammingDistance(tt.b, tt.a); got != tt.expected {
				t.Errorf("HammingDistance is not symmetric: got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestDedup(t *testing.T) {
	tests := []struct {
		name        string
		candidates  []Candidate
		threshold   int
		wantReps    []string
		wantRemoved int
	}{
		{
			name: "five identical images collapse to one",
			candidates: []Candidate{
				{Filename: "a.jpg", Hash: hashOf(100)},
				{Filename: "b.jpg", Hash: hashOf(100)},
				{Filename: "c.jpg", Hash: hashOf(100)},
				{Filename: "d.jpg", Hash: hashOf(100)},
				{Filename: "e.jpg", Hash: hashOf(100)},
			},
			threshold:   8,
			wantReps:    []string{"a.jpg"},
			wantRemoved: 4,
		},
		{
			name: "distinct images all kept",
			candidates: []Candidate{
				{Filename: "a.jpg", Hash: hashOf(0b00000000)},
				{Filename: "b.jpg", Hash: hashOf(0b11111111)},
			},
			threshold:   4,
			wantReps:    []string{"a.jpg", "b.jpg"},
			wantRemoved: 0,
		},
		{
			name: "tie at threshold counts as duplicate",
			candidates: []Candidate{
				{Filename: "a.jpg", Hash: hashOf(0b0000)},
				{Filename: "b.jpg", Hash: hashOf(0b1111)},
			},
			threshold:   4,
			wantReps:    []string{"a.jpg"},
			wantRemoved: 1,
		},
		{
			name: "unhashable image is always kept",
			candidates: []Candidate{
				{Filename: "a.jpg", Hash: hashOf(100)},
				{Filename: "b.jpg", Hash: nil},
				{Filename: "c.jpg", Hash: hashOf(100)},
			},
			threshold:   8,
			wantReps:    []string{"a.jpg", "b.jpg"},
			wantRemoved: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Dedup(tt.candidates, tt.threshold)
			if result.DuplicatesRemoved != tt.wantRemoved {
				t.Errorf("DuplicatesRemoved = %d, want %d", result.DuplicatesRemoved, tt.wantRemoved)
			}
			if len(result.Representatives) != len(tt.wantReps) {
				t.Fatalf("got %d representatives, want %d", len(result.Representatives), len(tt.wantReps))
			}
			for i, name := range tt.wantReps {
				if result.Representatives[i].Filename != name {
					t.Errorf("representative[%d] = %q, want %q", i, result.Representatives[i].Filename, name)
				}
			}
		})
	}
}

func TestDedupIdempotence(t *testing.T) {
	candidates := []Candidate{
		{Filename: "a.jpg", Hash: hashOf(10)},
		{Filename: "b.jpg", Hash: hashOf(10)},
		{Filename: "c.jpg", Hash: hashOf(90)},
	}

	first := Dedup(candidates, 8)
	second := Dedup(first.Representatives, 8)

	if len(second.Representatives) != len(first.Representatives) {
		t.Fatalf("dedup is not idempotent: first pass kept %d, second pass kept %d",
			len(first.Representatives), len(second.Representatives))
	}
	if second.DuplicatesRemoved != 0 {
		t.Errorf("second pass removed %d duplicates, want 0", second.DuplicatesRemoved)
	}
}
