package kde

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeFindsMostFrequentValue(t *testing.T) {
	sortedDesc := []float64{5, 4, 4, 4, 2, 1}
	assert.Equal(t, 4.0, mode(sortedDesc))
}

func TestNextPow2(t *testing.T) {
	assert.Equal(t, 16384, nextPow2(10000))
	assert.Equal(t, 1, nextPow2(1))
	assert.Equal(t, 2, nextPow2(2))
}

func TestFilterTrailingModeDropsLowOutliers(t *testing.T) {
	// Mode is 2 (appears 3 times); anything <= mode-3 should be dropped.
	data := []float64{5, 4, 2, 2, 2, -10, -20}
	filtered := filterTrailingMode(data)
	for _, v := range filtered {
		assert.Greater(t, v, 2.0-3)
	}
}

func TestClampBeadMode(t *testing.T) {
	assert.Equal(t, 500.0, clamp(50, ModeBead))
	assert.Equal(t, 500.0, clamp(200000, ModeBead))
	assert.Equal(t, 1000.0, clamp(1000, ModeBead))
}

func TestClampJaccardMode(t *testing.T) {
	assert.Equal(t, 5e-3, clamp(0.9, ModeJaccard))
	assert.Equal(t, 5e-3, clamp(1e-7, ModeJaccard))
	assert.Equal(t, 0.1, clamp(0.1, ModeJaccard))
}

func TestThresholdRejectsEmptyInput(t *testing.T) {
	_, _, err := Threshold(nil, ModeBead)
	assert.Error(t, err)
}

func TestThresholdRejectsNonPositiveCounts(t *testing.T) {
	_, _, err := Threshold([]float64{10, 0, 5}, ModeBead)
	assert.Error(t, err)
}

func TestThresholdOnBimodalData(t *testing.T) {
	// A crude bimodal distribution: a cluster of low counts (noise)
	// and a cluster of high counts (real cells), which KDE should
	// separate with a threshold somewhere in between.
	var counts []float64
	for i := 0; i < 200; i++ {
		counts = append(counts, 10)
	}
	for i := 0; i < 200; i++ {
		counts = append(counts, 5000)
	}
	safety, raw, err := Threshold(counts, ModeBead)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, safety, 0.0)
	assert.GreaterOrEqual(t, raw, 0.0)
}
