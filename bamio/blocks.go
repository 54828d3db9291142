package bamio

import "github.com/grailbio/hts/sam"

// AlignmentBlock is a contiguous run of the read that aligns
// one-for-one against the reference, per spec.md's definition: both
// read_start and reference_start are 1-based.
type AlignmentBlock struct {
	ReadStart      int
	ReferenceStart int
	Length         int
}

// AlignmentBlocks derives the AlignmentBlocks for r's CIGAR, consuming
// M/=/X as aligned pairs, skipping I/S/H/P, and advancing the reference
// cursor (without advancing the read cursor) on D/N.
func AlignmentBlocks(r *sam.Record) []AlignmentBlock {
	var blocks []AlignmentBlock
	readPos := 1
	refPos := r.Pos + 1 // Pos is 0-based; blocks are 1-based
	for _, op := range r.Cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			blocks = append(blocks, AlignmentBlock{
				ReadStart:      readPos,
				ReferenceStart: refPos,
				Length:         n,
			})
			readPos += n
			refPos += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			readPos += n
		case sam.CigarDeletion, sam.CigarSkipped:
			refPos += n
		case sam.CigarHardClipped, sam.CigarPadded:
			// consume neither cursor
		}
	}
	return blocks
}
