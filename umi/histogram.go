package umi

import "strings"

// noGeneSuffix marks a dedup key whose read had no annotated gene;
// such keys are read-count bookkeeping only and never enter UMI
// correction (4.G: "skip keys whose gene part equals NOGENE").
const noGeneSuffix = "|NOGENE"

// Key builds the two-level histogram key barcode|gene used throughout
// the per-contig pipeline's UMI-mode dedup path.
func Key(barcode, gene string) string {
	if gene == "" {
		gene = "NOGENE"
	}
	return barcode + "|" + gene
}

func keyIsNoGene(key string) bool {
	return strings.HasSuffix(key, noGeneSuffix)
}

// SplitKey reverses Key, splitting a barcode|gene histogram key back
// into its two parts. ok is false if key contains no separator.
func SplitKey(key string) (barcode, gene string, ok bool) {
	i := strings.LastIndex(key, "|")
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// Histogram is a per-(barcode,gene) UMI read-count table. One
// Histogram is built per contig, by a single worker goroutine, and is
// never shared across goroutines (spec's "per-worker state ... is
// thread-local").
type Histogram struct {
	counts map[string]map[string]int
}

// NewHistogram returns an empty Histogram.
func NewHistogram() *Histogram {
	return &Histogram{counts: map[string]map[string]int{}}
}

// Add increments the read count for umi under key and returns the
// count after incrementing (4.F step 8: a post-increment count > 1
// marks the read a duplicate).
func (h *Histogram) Add(key, umi string) int {
	m, ok := h.counts[key]
	if !ok {
		m = map[string]int{}
		h.counts[key] = m
	}
	m[umi]++
	return m[umi]
}

// Keys returns every (barcode,gene) key currently in the histogram.
func (h *Histogram) Keys() []string {
	keys := make([]string, 0, len(h.counts))
	for k := range h.counts {
		keys = append(keys, k)
	}
	return keys
}

// Get returns the umi->count map for key, or nil if key is absent.
// The returned map is mutated in place by Correct.
func (h *Histogram) Get(key string) map[string]int {
	return h.counts[key]
}

// Raw exposes the full (barcode|gene) -> (umi -> count) map, for
// consumers (e.g. the saturation sampler) that need to range over
// every key without going through Keys/Get. Callers must not retain
// or mutate the returned map after Correct runs.
func (h *Histogram) Raw() map[string]map[string]int {
	return h.counts
}
