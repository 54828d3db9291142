package classify

import (
	"testing"

	"github.com/Schaudge/scrnatag/annotation"
	"github.com/Schaudge/scrnatag/bamio"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geneWithOneExon(name string, strand byte, start, end int) *annotation.Gene {
	return &annotation.Gene{
		Contig: "chr1",
		Start:  start,
		End:    end,
		Strand: strand,
		Name:   name,
		Transcripts: map[string]*annotation.Transcript{
			"T1": {
				Name:               "T1",
				TranscriptionStart: start,
				TranscriptionEnd:   end,
				CodingStart:        start,
				CodingEnd:          end,
				Exons:              []annotation.Exon{{Start: start, End: end}},
			},
		},
	}
}

func TestBestAggregation(t *testing.T) {
	assert.Equal(t, Coding, Best([]LocusFunction{Intronic, Coding, UTR}))
	assert.Equal(t, None, Best(nil))
}

func TestConservativeAggregation(t *testing.T) {
	assert.Equal(t, Intronic, Conservative([]LocusFunction{Intronic, Intronic}))
	assert.Equal(t, None, Conservative([]LocusFunction{Intronic, Coding}))
	assert.Equal(t, None, Conservative(nil))
}

// Mirrors spec scenario 3: a read on '-' overlaps a single '+' gene
// under DROP_SEQ_V2 with strand checking enabled.
func TestDropSeqV2WrongStrand(t *testing.T) {
	c := New(Options{Policy: DropSeqV2, UseStrandInfo: true})
	gene := geneWithOneExon("G1", '+', 50, 300)
	r := &sam.Record{Name: "r1"}
	blocks := []bamio.AlignmentBlock{{ReadStart: 1, ReferenceStart: 100, Length: 50}}

	c.Classify(r, blocks, true /* recordNegative */, []*annotation.Gene{gene})

	assert.EqualValues(t, 1, c.Counters().WrongStrand)
	assert.EqualValues(t, 0, c.Counters().RightStrand)
	ge, ok := bamio.GetString(r, tagGE)
	assert.False(t, ok, "GE should not be set: %s", ge)
}

// Mirrors spec scenario 1/3's happy path: matching strand, single gene,
// read fully inside the exon.
func TestDropSeqV2RightStrand(t *testing.T) {
	c := New(Options{Policy: DropSeqV2, UseStrandInfo: true})
	gene := geneWithOneExon("G1", '+', 50, 300)
	r := &sam.Record{Name: "r1"}
	blocks := []bamio.AlignmentBlock{{ReadStart: 1, ReferenceStart: 100, Length: 50}}

	c.Classify(r, blocks, false, []*annotation.Gene{gene})

	assert.EqualValues(t, 1, c.Counters().RightStrand)
	ge, ok := bamio.GetString(r, tagGE)
	require.True(t, ok)
	assert.Equal(t, "G1", ge)
	xf, ok := bamio.GetString(r, tagXF)
	require.True(t, ok)
	assert.Equal(t, "EXONIC", xf)
}

// Mirrors spec scenario 4: a read with 80/100 bases inside an exon, at
// mapping_quality 255.
func TestTenXExonMajority(t *testing.T) {
	c := New(Options{Policy: TenX, UseStrandInfo: true})
	gene := geneWithOneExon("G1", '+', 100, 179) // 80bp exon within [100,200)
	r := &sam.Record{Name: "r1", MapQ: 255}
	blocks := []bamio.AlignmentBlock{{ReadStart: 1, ReferenceStart: 100, Length: 100}}

	c.Classify(r, blocks, false, []*annotation.Gene{gene})

	xf, ok := bamio.GetString(r, tagXF)
	require.True(t, ok)
	assert.Equal(t, "EXONIC", xf)
	assert.EqualValues(t, 1, c.Counters().Exonic)
	assert.EqualValues(t, 1, c.Counters().Transcriptome)
}

func TestClassifyNoGeneOverlap(t *testing.T) {
	c := New(Options{Policy: DropSeqV2})
	r := &sam.Record{Name: "r1"}
	c.Classify(r, nil, false, nil)
	assert.EqualValues(t, 1, c.Counters().Total)
	assert.EqualValues(t, 1, c.Counters().NoGene)
}
