package feed

import "strings"

// minSignatureLen filters out placeholder and synthetic ids
const minSignatureLen = 50

// IDSet is a set of post identifiers
type IDSet map[string]struct{}

// NewIDSet builds a set from the given posts
func NewIDSet(posts ...[]Post) IDSet {
	set := make(IDSet)
	for _, batch := range posts {
		for _, p := range batch {
			set[p.ID] = struct{}{}
		}
	}
	return set
}

// Has reports whether id is in the set
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts the ids of posts into the set
func (s IDSet) Add(posts []Post) {
	for _, p := range posts {
		s[p.ID] = struct{}{}
	}
}

// Dedupe returns the candidates whose ID is neither in existing nor repeated
// earlier in candidates. Order of candidates is preserved.
func Dedupe(candidates, existing []Post) []Post {
	return DedupeSet(candidates, NewIDSet(existing))
}

// DedupeSet is Dedupe against a prebuilt set; seen is not modified
func DedupeSet(candidates []Post, seen IDSet) []Post {
	unique := make([]Post, 0, len(candidates))
	batch := make(IDSet, len(candidates))
	for _, p := range candidates {
		if p.ID == "" || seen.Has(p.ID) || batch.Has(p.ID) {
			continue
		}
		batch[p.ID] = struct{}{}
		unique = append(unique, p)
	}
	return unique
}

// IsValidSignature reports whether s looks like a real on-chain signature:
// longer than 50 characters and not purely numeric
func IsValidSignature(s string) bool {
	if len(s) <= minSignatureLen {
		return false
	}
	return strings.TrimLeft(s, "0123456789") != ""
}
