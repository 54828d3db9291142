package annotation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexQueryOverlap(t *testing.T) {
	result := &LoadResult{
		Genes: map[string][]Record{
			"G1": {
				{Contig: "chr1", Start: 100, End: 200, FeatureType: "gene", GeneID: "G1", GeneName: "G1"},
				{Contig: "chr1", Start: 100, End: 200, FeatureType: "exon", GeneID: "G1", TranscriptID: "T1"},
			},
			"G2": {
				{Contig: "chr1", Start: 500, End: 600, FeatureType: "gene", GeneID: "G2", GeneName: "G2"},
				{Contig: "chr1", Start: 500, End: 600, FeatureType: "exon", GeneID: "G2", TranscriptID: "T2"},
			},
		},
		Contigs: map[string]bool{"chr1": true},
	}
	idx := NewIndex(context.Background(), result)

	got := idx.Query("chr1", 150, 160)
	require.Len(t, got, 1)
	assert.Equal(t, "G1", got[0].Name)

	assert.Empty(t, idx.Query("chr1", 300, 400))
	assert.Empty(t, idx.Query("chr2", 150, 160))

	got = idx.Query("chr1", 190, 510)
	require.Len(t, got, 2)
}
