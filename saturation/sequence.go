package saturation

import (
	"fmt"
	"strings"

	"blainsmith.com/go/seahash"
)

// sequenceEntry is one read observed against a plain sequence barcode,
// mirroring SequenceBarcode::ST in the original.
type sequenceEntry struct {
	barcode string
	gene    uint32
	umi     uint32
}

// SequenceSampler is the saturation sampler variant for plain sequence
// barcodes, stored as-is rather than decomposed into coordinates
// (4.I "Sequence barcodes").
type SequenceSampler struct {
	genes   *geneTable
	entries []sequenceEntry
}

// NewSequenceSampler returns an empty SequenceSampler.
func NewSequenceSampler() *SequenceSampler {
	return &SequenceSampler{genes: newGeneTable()}
}

// AddData ingests one contig's (barcode|gene) -> (umi -> count)
// histogram, matching SequenceBarcode::addData.
func (s *SequenceSampler) AddData(raw map[string]map[string]int) error {
	for key, counts := range raw {
		i := strings.LastIndex(key, keySep)
		if i < 0 {
			continue
		}
		barcode, gene := key[:i], key[i+1:]
		geneID := s.genes.intern(gene)
		for u, count := range counts {
			if count <= 0 {
				continue
			}
			umiID, err := EncodeUMI(u)
			if err != nil {
				return err
			}
			entry := sequenceEntry{barcode: barcode, gene: geneID, umi: umiID}
			for n := 0; n < count; n++ {
				s.entries = append(s.entries, entry)
			}
		}
	}
	return nil
}

// hashBarcode maps a sequence barcode to a per-barcode sampling key.
// Sequence barcodes have no coordinate structure to encode directly
// (unlike CoordinateSampler), so they are hashed instead of
// auto-incremented, the same fast-hash-for-key discipline
// fingerprintSet uses for dedup keys.
func hashBarcode(barcode string) uint64 {
	return seahash.Sum64([]byte(barcode))
}

// Sample runs the fraction sweep and returns the saturation report, in
// the format described by 4.I: "#sample bar_x bar_y1 bar_y2" followed
// by one line per fraction.
func (s *SequenceSampler) Sample() string {
	var sb strings.Builder
	sb.WriteString("#sample bar_x bar_y1 bar_y2\n")

	order := shuffle(len(s.entries))
	noGene, hasNoGene := s.genes.noGeneID()

	data := map[uint64]map[uint64]int{}
	pos := 0
	for _, f := range fractions {
		size := int(f * float64(len(s.entries)))
		for ; pos < size && pos < len(order); pos++ {
			e := s.entries[order[pos]]
			id := hashBarcode(e.barcode)
			value := uint64(e.gene)<<32 | uint64(e.umi)
			addTo(data, id, value)
		}

		m := saturationOf(data, noGene, hasNoGene)
		if m.Reads == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%g %g %g %d\n", f,
			meanReadsPerBarcode(m.Reads, len(data)), saturationFraction(m), m.MedianGenes)
	}
	return sb.String()
}
