package saturation

import (
	"math/rand"
	"sort"
)

// fractions are the sample points swept by Sample, per spec.md §4.I.
var fractions = []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.4, 0.45, 0.5,
	0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1.0}

// Metrics summarizes one sample fraction's saturation sweep.
type Metrics struct {
	Reads       uint64
	ReadsSat    uint64
	Uniq        uint64
	MedianGenes int
}

// saturationOf computes Metrics over data, a map from barcode key to a
// map of (gene<<32|umi) -> read count, following Saturation::saturation
// in the original: genes equal to noGene are excluded from uniq/
// readsSat/median-genes, but still counted in reads.
func saturationOf(data map[uint64]map[uint64]int, noGene uint32, hasNoGene bool) Metrics {
	var m Metrics
	geneCounts := make([]int, 0, len(data))
	for _, perBarcode := range data {
		seen := map[uint32]bool{}
		for value, count := range perBarcode {
			m.Reads += uint64(count)
			gene := uint32(value >> 32)
			if hasNoGene && gene == noGene {
				continue
			}
			if !seen[gene] {
				seen[gene] = true
			}
			m.Uniq++
			m.ReadsSat += uint64(count)
		}
		geneCounts = append(geneCounts, len(seen))
	}
	if m.Reads == 0 {
		return Metrics{}
	}
	sort.Ints(geneCounts)
	if len(geneCounts) > 0 {
		m.MedianGenes = geneCounts[len(geneCounts)/2]
	}
	return m
}

// meanReadsPerBarcode reports metrics.Reads / number of distinct
// barcodes sampled so far.
func meanReadsPerBarcode(reads uint64, numBarcodes int) float64 {
	if numBarcodes == 0 {
		return 0
	}
	return float64(reads) / float64(numBarcodes)
}

// saturationFraction reports 1 - unique/total for reads that had a
// gene (the fraction of gene-bearing reads that were redundant).
func saturationFraction(m Metrics) float64 {
	if m.ReadsSat == 0 {
		return 0
	}
	return 1 - float64(m.Uniq)/float64(m.ReadsSat)
}

// shuffle returns the indices 0..n-1 permuted by a fresh random shuffle
// (spec.md §4.I: "take the first floor(f*N) records from a random
// shuffle").
func shuffle(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rand.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}
