package saturation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceSamplerAddDataAndSample(t *testing.T) {
	s := NewSequenceSampler()
	raw := map[string]map[string]int{
		"AAACCC|G1": {"ACGT": 2},
		"AAACCC|G2": {"GGGG": 1},
		"TTTAAA|NOGENE": {"CCCC": 1},
	}
	require.NoError(t, s.AddData(raw))
	assert.Equal(t, 4, len(s.entries))

	out := s.Sample()
	assert.Contains(t, out, "#sample bar_x bar_y1 bar_y2")
}

func TestSequenceSamplerNoGeneExcludedFromMetrics(t *testing.T) {
	s := NewSequenceSampler()
	raw := map[string]map[string]int{
		"AAACCC|NOGENE": {"ACGT": 5},
	}
	require.NoError(t, s.AddData(raw))
	noGene, ok := s.genes.noGeneID()
	assert.True(t, ok)
	assert.EqualValues(t, 0, noGene)

	m := saturationOf(map[uint64]map[uint64]int{
		hashBarcode("AAACCC"): {uint64(noGene) << 32: 5},
	}, noGene, ok)
	assert.EqualValues(t, 5, m.Reads)
	assert.EqualValues(t, 0, m.Uniq)
	assert.EqualValues(t, 0, m.ReadsSat)
	assert.Equal(t, 0, m.MedianGenes)
}
