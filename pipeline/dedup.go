package pipeline

import (
	farm "github.com/dgryski/go-farm"
)

// fingerprintSet is the per-contig no-UMI dedup set (4.F step 8,
// no-UMI mode). It is owned by a single contig worker goroutine and is
// never shared, per spec.md §5 ("Per-worker state ... is thread-local
// and never shared"). Fingerprint strings are hashed to a fixed-size
// key with farm.Hash64 rather than kept as strings, the same
// fast-hash-for-key discipline markduplicates/encoding-bam use for
// shard and index keys.
type fingerprintSet struct {
	seen map[uint64]bool
}

func newFingerprintSet() *fingerprintSet {
	return &fingerprintSet{seen: map[uint64]bool{}}
}

func hashFingerprint(fp string) uint64 {
	return farm.Hash64([]byte(fp))
}

// addIfAbsent returns true the first time fp is seen and records it;
// false (duplicate) on every subsequent call with the same fp.
func (s *fingerprintSet) addIfAbsent(fp string) bool {
	h := hashFingerprint(fp)
	if s.seen[h] {
		return false
	}
	s.seen[h] = true
	return true
}
