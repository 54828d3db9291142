package classify

import (
	"github.com/Schaudge/scrnatag/annotation"
	"github.com/Schaudge/scrnatag/bamio"
)

// geneLocusFunction returns the strongest LocusFunction any of gene's
// transcripts assigns to any base covered by blocks.
func geneLocusFunction(g *annotation.Gene, blocks []bamio.AlignmentBlock) LocusFunction {
	best := None
	for _, tr := range g.Transcripts {
		if f := transcriptLocusFunction(tr, blocks); f > best {
			best = f
		}
		if best == Coding {
			break
		}
	}
	return best
}

func transcriptLocusFunction(tr *annotation.Transcript, blocks []bamio.AlignmentBlock) LocusFunction {
	best := None
	for _, b := range blocks {
		begin := max(b.ReferenceStart, tr.TranscriptionStart)
		end := min(b.ReferenceStart+b.Length-1, tr.TranscriptionEnd)
		for i := begin; i <= end; i++ {
			var f LocusFunction
			if inExon(tr, i) {
				if i >= tr.CodingStart && i <= tr.CodingEnd {
					f = Coding
				} else {
					f = UTR
				}
			} else {
				f = Intronic
			}
			if f > best {
				best = f
			}
			if f == Coding {
				break
			}
		}
		if best == Coding {
			break
		}
	}
	return best
}

// geneExonIntronCounts sums, across blocks, the best (highest exon
// count, tie-broken by intron count) per-transcript base tally for
// gene. Used by the TENX policy.
func geneExonIntronCounts(g *annotation.Gene, blocks []bamio.AlignmentBlock) (exonCnt, intronCnt int) {
	for _, b := range blocks {
		bestExon, bestIntron := 0, 0
		for _, tr := range g.Transcripts {
			e, i := transcriptExonIntronCounts(tr, b)
			if e > bestExon || (e == bestExon && i > bestIntron) {
				bestExon, bestIntron = e, i
			}
		}
		exonCnt += bestExon
		intronCnt += bestIntron
	}
	return exonCnt, intronCnt
}

func transcriptExonIntronCounts(tr *annotation.Transcript, b bamio.AlignmentBlock) (exonCnt, intronCnt int) {
	begin := max(b.ReferenceStart, tr.TranscriptionStart)
	end := min(b.ReferenceStart+b.Length-1, tr.TranscriptionEnd)
	for i := begin; i <= end; i++ {
		if inExon(tr, i) {
			exonCnt++
		} else {
			intronCnt++
		}
	}
	return exonCnt, intronCnt
}

// geneOverlapsExon reports whether b's reference span intersects any
// exon of any of gene's transcripts.
func geneOverlapsExon(g *annotation.Gene, b bamio.AlignmentBlock) bool {
	blockEnd := b.ReferenceStart + b.Length - 1
	for _, tr := range g.Transcripts {
		for _, e := range tr.Exons {
			if intersects(b.ReferenceStart, blockEnd, e.Start, e.End) {
				return true
			}
		}
	}
	return false
}

func intersects(s1, e1, s2, e2 int) bool {
	return (s1 <= s2 && s2 <= e1) || (s1 <= e2 && e2 <= e1) || (s2 <= s1 && e1 <= e2)
}

// inExon reports whether locus falls inside one of tr's exons. Exons
// are sorted by start (Gene Builder invariant), so the scan can stop
// at the first exon starting after locus.
func inExon(tr *annotation.Transcript, locus int) bool {
	for _, e := range tr.Exons {
		if e.Start > locus {
			return false
		}
		if locus >= e.Start && locus <= e.End {
			return true
		}
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
