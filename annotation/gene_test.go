package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSingleGeneSingleTranscript(t *testing.T) {
	records := []Record{
		{Contig: "chr1", Start: 100, End: 300, Strand: '+', FeatureType: "gene", GeneID: "G1", GeneName: "G1"},
		{Contig: "chr1", Start: 100, End: 300, Strand: '+', FeatureType: "transcript", GeneID: "G1", TranscriptID: "T1"},
		{Contig: "chr1", Start: 100, End: 150, Strand: '+', FeatureType: "exon", GeneID: "G1", TranscriptID: "T1"},
		{Contig: "chr1", Start: 250, End: 300, Strand: '+', FeatureType: "exon", GeneID: "G1", TranscriptID: "T1"},
	}
	genes := Build("G1", records)
	require.Len(t, genes, 1)
	g := genes[0]
	assert.Equal(t, 100, g.Start)
	assert.Equal(t, 300, g.End)
	require.Len(t, g.Transcripts, 1)
	tr := g.Transcripts["T1"]
	assert.Equal(t, 100, tr.TranscriptionStart)
	assert.Equal(t, 300, tr.TranscriptionEnd)
	assert.Equal(t, 100, tr.CodingStart) // no CDS -> defaults to transcription bounds
	assert.Equal(t, 102, tr.Length)      // (150-100+1) + (300-250+1)
}

func TestBuildGeneStraddlingContigsSplits(t *testing.T) {
	records := []Record{
		{Contig: "chr1", Start: 100, End: 200, FeatureType: "gene", GeneID: "G1", GeneName: "DUP"},
		{Contig: "chr1", Start: 100, End: 200, FeatureType: "exon", GeneID: "G1", TranscriptID: "T1"},
		{Contig: "chr2", Start: 10, End: 20, FeatureType: "gene", GeneID: "G1", GeneName: "DUP"},
		{Contig: "chr2", Start: 10, End: 20, FeatureType: "exon", GeneID: "G1", TranscriptID: "T2"},
	}
	genes := Build("DUP", records)
	require.Len(t, genes, 2)
	assert.Equal(t, "chr1", genes[0].Contig)
	assert.Equal(t, "chr2", genes[1].Contig)
}

func TestBuildDropsGeneIDDisagreement(t *testing.T) {
	records := []Record{
		{Contig: "chr1", Start: 1, End: 10, FeatureType: "gene", GeneID: "A", GeneName: "X"},
		{Contig: "chr1", Start: 1, End: 10, FeatureType: "exon", GeneID: "B", TranscriptID: "T1"},
	}
	genes := Build("X", records)
	assert.Empty(t, genes)
}

func TestBuildDropsOverlappingExons(t *testing.T) {
	records := []Record{
		{Contig: "chr1", Start: 1, End: 100, FeatureType: "gene", GeneID: "A", GeneName: "X"},
		{Contig: "chr1", Start: 1, End: 50, FeatureType: "exon", GeneID: "A", TranscriptID: "T1"},
		{Contig: "chr1", Start: 40, End: 90, FeatureType: "exon", GeneID: "A", TranscriptID: "T1"},
	}
	genes := Build("X", records)
	assert.Empty(t, genes)
}

func TestBuildKeepsMaxGeneVersion(t *testing.T) {
	records := []Record{
		{Contig: "chr1", Start: 1, End: 10, FeatureType: "gene", GeneID: "A", GeneName: "X", GeneVersion: "1"},
		{Contig: "chr1", Start: 1, End: 10, FeatureType: "exon", GeneID: "A", TranscriptID: "T1old", GeneVersion: "1"},
		{Contig: "chr1", Start: 5, End: 20, FeatureType: "gene", GeneID: "A", GeneName: "X", GeneVersion: "2"},
		{Contig: "chr1", Start: 5, End: 20, FeatureType: "exon", GeneID: "A", TranscriptID: "T1new", GeneVersion: "2"},
	}
	genes := Build("X", records)
	require.Len(t, genes, 1)
	_, hasOld := genes[0].Transcripts["T1old"]
	assert.False(t, hasOld)
	_, hasNew := genes[0].Transcripts["T1new"]
	assert.True(t, hasNew)
}
