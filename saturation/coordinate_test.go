package saturation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinateBarcode(t *testing.T) {
	row, col, err := ParseCoordinateBarcode("S1_100_200")
	require.NoError(t, err)
	assert.EqualValues(t, 100, row)
	assert.EqualValues(t, 200, col)
}

func TestParseCoordinateBarcodeNoSeparator(t *testing.T) {
	_, _, err := ParseCoordinateBarcode("nosep")
	assert.Error(t, err)
}

func TestCoordinateSamplerAddDataAndSample(t *testing.T) {
	s := NewCoordinateSampler()
	raw := map[string]map[string]int{
		"S1_100_200|G1": {"ACGT": 3, "AAAA": 1},
		"S1_100_201|G2": {"GGGG": 2},
	}
	require.NoError(t, s.AddData(raw))
	assert.Equal(t, 6, len(s.entries)) // 3+1+2 expanded reads

	out := s.Sample()
	assert.Contains(t, out, "#sample bar_x bar_y1 bar_y2 bin_x bin_y1 bin_y2")
}

func TestCoordinateSamplerSkipsZeroCounts(t *testing.T) {
	s := NewCoordinateSampler()
	raw := map[string]map[string]int{
		"S1_100_200|G1": {"ACGT": 0},
	}
	require.NoError(t, s.AddData(raw))
	assert.Equal(t, 0, len(s.entries))
}
