// Package classify implements the locus-function classifier (4.D):
// given a record's CIGAR-derived alignment blocks and the genes
// overlapping it, decide whether the read lands in coding, UTR,
// intronic, ribosomal, or intergenic sequence, and tag the record
// accordingly.
package classify

// LocusFunction is a single base-level or read-level annotation class,
// ordered from least to most informative so that "best" aggregation is
// a simple max.
type LocusFunction int

const (
	None LocusFunction = iota
	Intergenic
	Ribosomal
	Intronic
	UTR
	Coding
)

var locusString = [...]string{"", "INTERGENIC", "RIBOSOMAL", "INTRONIC", "UTR", "EXONIC"}

// String returns the tag value written to a record's XF field.
func (f LocusFunction) String() string {
	if int(f) < 0 || int(f) >= len(locusString) {
		return ""
	}
	return locusString[f]
}

// Best returns the maximum LocusFunction across fns, or None if fns is
// empty. CODING > UTR > INTRONIC > RIBOSOMAL > INTERGENIC > NONE.
func Best(fns []LocusFunction) LocusFunction {
	best := None
	for _, f := range fns {
		if f > best {
			best = f
		}
	}
	return best
}

// Conservative returns the common LocusFunction if every entry in fns
// agrees, or None otherwise (including when fns is empty).
func Conservative(fns []LocusFunction) LocusFunction {
	if len(fns) == 0 {
		return None
	}
	first := fns[0]
	for _, f := range fns[1:] {
		if f != first {
			return None
		}
	}
	return first
}
