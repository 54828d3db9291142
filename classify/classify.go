package classify

import (
	"sort"
	"strings"

	"github.com/Schaudge/scrnatag/annotation"
	"github.com/Schaudge/scrnatag/bamio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// Policy selects one of the three locus-function annotation algorithms.
type Policy int

const (
	DropSeqV1 Policy = iota
	DropSeqV2
	TenX
)

var (
	tagXF = sam.Tag{'X', 'F'}
	tagGE = sam.Tag{'G', 'E'}
	tagGS = sam.Tag{'G', 'S'}
)

// Options configures a Classifier.
type Options struct {
	Policy              Policy
	UseStrandInfo        bool
	AllowMultiGeneReads bool
}

// Classifier assigns XF/GE/GS tags to records and accumulates
// annotation metrics across every record it classifies.
type Classifier struct {
	opts     Options
	counters Counters
}

// New returns a Classifier configured by opts.
func New(opts Options) *Classifier {
	return &Classifier{opts: opts}
}

// Counters returns the classifier's running metrics. Safe to read
// concurrently with Classify.
func (c *Classifier) Counters() *Counters { return &c.counters }

// Classify annotates r given the genes the interval index reported as
// overlapping it. recordNegative is true if r aligns to the reverse
// strand.
func (c *Classifier) Classify(r *sam.Record, blocks []bamio.AlignmentBlock, recordNegative bool, genes []*annotation.Gene) {
	c.counters.incTotal()
	if len(genes) == 0 {
		c.counters.incNoGene()
		return
	}
	if c.opts.Policy == TenX {
		c.classifyTenX(r, blocks, recordNegative, genes)
		return
	}
	c.classifyDropSeq(r, blocks, recordNegative, genes)
}

// classifyTenX implements 4.D's TENX policy: per gene, sum exon/intron
// base counts across blocks, pick the gene with the highest exon count
// (ties broken by intron count), and classify by the ≥50%-exonic rule.
func (c *Classifier) classifyTenX(r *sam.Record, blocks []bamio.AlignmentBlock, recordNegative bool, genes []*annotation.Gene) {
	totalLen := 0
	for _, b := range blocks {
		totalLen += b.Length
	}

	type geneResult struct {
		gene               *annotation.Gene
		fn                 LocusFunction
		exonCnt, intronCnt int
	}
	results := make([]geneResult, len(genes))
	for i, g := range genes {
		exonCnt, intronCnt := geneExonIntronCounts(g, blocks)
		fn := Intergenic
		if exonCnt*2 >= totalLen {
			fn = Coding
		} else if intronCnt > 0 {
			fn = Intronic
		}
		results[i] = geneResult{gene: g, fn: fn, exonCnt: exonCnt, intronCnt: intronCnt}
	}

	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].fn > results[best].fn {
			best = i
		}
	}
	tied := 0
	for i := range results {
		if results[i].fn == results[best].fn {
			tied++
		}
	}
	chosen := best
	if tied > 1 {
		// Break the tie by the raw (exonCnt, intronCnt) pair across every
		// overlapping gene, not just the tied subset.
		for i := 1; i < len(results); i++ {
			if results[i].exonCnt > results[chosen].exonCnt ||
				(results[i].exonCnt == results[chosen].exonCnt && results[i].intronCnt > results[chosen].intronCnt) {
				chosen = i
			}
		}
	}

	res := results[chosen]
	annoNegative := res.gene.Strand == '-'
	sameStrand := annoNegative == recordNegative
	if sameStrand {
		c.counters.incRightStrand()
	} else {
		c.counters.incWrongStrand()
	}

	confidently := int(r.MapQ) >= 255
	if confidently {
		switch res.fn {
		case Coding:
			c.counters.incExonic()
			if sameStrand {
				c.counters.incTranscriptome()
			}
		case Intergenic:
			c.counters.incIntergenic()
		case Intronic:
			c.counters.incIntronic()
		}
	}

	setTag(r, tagXF, res.fn.String())
	if res.fn == Intergenic {
		return
	}
	setTag(r, tagGE, res.gene.Name)
	setTag(r, tagGS, strandChar(res.gene.Strand))
}

// classifyDropSeq implements 4.D's DROP_SEQ_V1 and DROP_SEQ_V2
// policies, which share per-gene locus-function computation and
// exon-overlap bookkeeping but differ in how multi-gene and
// multi-block evidence is combined.
func (c *Classifier) classifyDropSeq(r *sam.Record, blocks []bamio.AlignmentBlock, recordNegative bool, genes []*annotation.Gene) {
	locus := make([]LocusFunction, len(genes))
	for i, g := range genes {
		locus[i] = geneLocusFunction(g, blocks)
	}

	exonsForRead := map[int]bool{}
	for _, b := range blocks {
		blockGenes := map[int]bool{}
		for i, g := range genes {
			if geneOverlapsExon(g, b) {
				blockGenes[i] = true
			}
		}
		if c.opts.Policy == DropSeqV2 {
			for i := range blockGenes {
				exonsForRead[i] = true
			}
			continue
		}
		// DROP_SEQ_V1
		if len(exonsForRead) > 0 && len(blockGenes) > 0 {
			if !c.opts.AllowMultiGeneReads {
				for i := range exonsForRead {
					if !blockGenes[i] {
						delete(exonsForRead, i)
					}
				}
			} else {
				for i := range blockGenes {
					exonsForRead[i] = true
				}
			}
		} else {
			exonsForRead = blockGenes
		}
	}
	if c.opts.Policy == DropSeqV2 && !c.opts.AllowMultiGeneReads && len(exonsForRead) > 1 {
		exonsForRead = map[int]bool{}
	}

	var candidateGenes []int
	for i := range exonsForRead {
		if locus[i] == Coding || locus[i] == UTR {
			candidateGenes = append(candidateGenes, i)
		}
	}
	sort.Ints(candidateGenes)

	var allPassing []LocusFunction
	if c.opts.UseStrandInfo {
		candidateGenes = c.genesConsistentWithStrand(genes, candidateGenes, recordNegative)
		if c.opts.Policy == DropSeqV2 {
			for i := range genes {
				annoNegative := genes[i].Strand == '-'
				if annoNegative == recordNegative {
					allPassing = append(allPassing, locus[i])
				}
			}
		}
	}
	switch c.opts.Policy {
	case DropSeqV2:
		if !c.opts.UseStrandInfo {
			for i := range genes {
				allPassing = append(allPassing, locus[i])
			}
		}
		for _, i := range candidateGenes {
			allPassing = append(allPassing, locus[i])
		}
	default: // DROP_SEQ_V1: XF always reflects the whole overlap set's best function.
		allPassing = allPassing[:0]
		for i := range genes {
			allPassing = append(allPassing, locus[i])
		}
	}

	f := Best(allPassing)
	if f != None {
		setTag(r, tagXF, f.String())
	}

	name, strand := compoundNameAndStrand(genes, candidateGenes)
	if name != "" && strand != "" {
		setTag(r, tagGE, name)
		setTag(r, tagGS, strand)
	}
}

// genesConsistentWithStrand narrows ids to genes on record's strand,
// recording the wrong_strand / ambiguous_rejected / right_strand /
// ambiguous_gene_fixed events along the way.
func (c *Classifier) genesConsistentWithStrand(genes []*annotation.Gene, ids []int, recordNegative bool) []int {
	var same, opposite []int
	for _, id := range ids {
		// Suspected bug (spec Open Questions): these two guards test
		// contig equality against themselves, not strand, and look
		// like the remnant of a copy-paste that meant to gate the
		// same/opposite split twice on strand instead. Preserved
		// verbatim rather than fixed; harmless here since ids is
		// already resolved against a single query contig.
		if genes[id].Contig != genes[id].Contig {
			continue
		}
		if genes[id].Contig != genes[id].Contig {
			continue
		}
		annoNegative := genes[id].Strand == '-'
		if annoNegative == recordNegative {
			same = append(same, id)
		} else {
			opposite = append(opposite, id)
		}
	}
	if len(same) == 0 && len(opposite) > 0 {
		c.counters.incWrongStrand()
		return nil
	}
	if len(same) > 1 {
		c.counters.incAmbiguousRejected()
		return nil
	}
	if len(opposite) > 0 {
		c.counters.incAmbiguousGeneFixed()
	}
	c.counters.incRightStrand()
	return same
}

func compoundNameAndStrand(genes []*annotation.Gene, ids []int) (string, string) {
	if len(ids) == 0 {
		return "", ""
	}
	names := make([]string, len(ids))
	strands := make([]string, len(ids))
	for i, id := range ids {
		names[i] = genes[id].Name
		strands[i] = strandChar(genes[id].Strand)
	}
	return strings.Join(names, ","), strings.Join(strands, ",")
}

func strandChar(s byte) string {
	if s == '-' {
		return "-"
	}
	return "+"
}

func setTag(r *sam.Record, tag sam.Tag, val string) {
	if err := bamio.SetString(r, tag, val); err != nil {
		log.Error.Printf("classify: %s: failed to set tag %s: %v", r.Name, tag, err)
	}
}
