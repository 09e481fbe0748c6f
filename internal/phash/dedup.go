package phash

// Candidate is one input image as seen by the deduper: a stable ordering
// key (the filename) and its hash, or a nil Hash if hashing failed.
type Candidate struct {
	Filename string
	Hash     *ImageHash
}

// Result is the outcome of a dedup pass.
type Result struct {
	Representatives   []Candidate
	DuplicatesRemoved int
}

// Dedup scans candidates in the order given (callers sort by lexicographic
// filename beforehand) and keeps one representative per equivalence class:
// a candidate becomes a new representative whenever its minimum Hamming
// distance to every prior representative's hash exceeds threshold. Ties
// (distance == threshold) count as duplicates. Candidates that failed to
// hash are always kept, since dropping an unhashable image would silently
// lose data.
func Dedup(candidates []Candidate, threshold int) Result {
	var reps []Candidate
	removed := 0

	for _, c := range candidates {
		if c.Hash == nil {
			reps = append(reps, c)
			continue
		}

		isDuplicate := false
		minDist := -1
		for _, r := range reps {
			if r.Hash == nil {
				continue
			}
			d := HammingDistance(c.Hash.Hash, r.Hash.Hash)
			if minDist == -1 || d < minDist {
				minDist = d
			}
		}

		if minDist != -1 && minDist <= threshold {
			isDuplicate = true
		}

		if isDuplicate {
			removed++
			continue
		}

		reps = append(reps, c)
	}

	return Result{Representatives: reps, DuplicatesRemoved: removed}
}
