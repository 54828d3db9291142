package umi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrectMergesLowerCountUMI(t *testing.T) {
	// spec.md scenario 2: UMIs {ACGT:5, ACGA:2, TTTT:1}, umi_mismatch=1,
	// umi_min_num=2 should merge ACGA into ACGT (1 mismatch) but leave
	// TTTT alone (too far from either). umi_cnt_raw=3, umi_cnt_dedup=2.
	hist := NewHistogram()
	for i := 0; i < 5; i++ {
		hist.Add(Key("BC1", "G1"), "ACGT")
	}
	for i := 0; i < 2; i++ {
		hist.Add(Key("BC1", "G1"), "ACGA")
	}
	hist.Add(Key("BC1", "G1"), "TTTT")

	m := NewMetrics()
	corr := Correct(hist, Options{MinNum: 2, Mismatch: 1}, m)

	key := Key("BC1", "G1")
	keyCorr, ok := corr[key]
	assert.True(t, ok)
	assert.Equal(t, "ACGT", keyCorr["ACGA"])
	_, ttttCorrected := keyCorr["TTTT"]
	assert.False(t, ttttCorrected)

	counts := hist.Get(key)
	assert.Equal(t, 7, counts["ACGT"])
	assert.Equal(t, 0, counts["ACGA"])
	assert.Equal(t, 1, counts["TTTT"])

	umiCntRaw := 0
	umiCntDedup := 0
	for _, c := range counts {
		if c > 0 {
			umiCntRaw++
			umiCntDedup++
		} else {
			umiCntRaw++
		}
	}
	assert.Equal(t, 3, umiCntRaw)
	assert.Equal(t, 2, umiCntDedup)
}

func TestCorrectSkipsKeysAtOrBelowMinNum(t *testing.T) {
	hist := NewHistogram()
	hist.Add(Key("BC1", "G1"), "ACGT")
	hist.Add(Key("BC1", "G1"), "ACGA")

	m := NewMetrics()
	corr := Correct(hist, Options{MinNum: 2, Mismatch: 1}, m)

	_, ok := corr[Key("BC1", "G1")]
	assert.False(t, ok)
}

func TestCorrectSkipsNoGeneKeys(t *testing.T) {
	hist := NewHistogram()
	for i := 0; i < 5; i++ {
		hist.Add(Key("BC1", ""), "ACGT")
	}
	for i := 0; i < 2; i++ {
		hist.Add(Key("BC1", ""), "ACGA")
	}
	hist.Add(Key("BC1", ""), "GGGG")

	m := NewMetrics()
	corr := Correct(hist, Options{MinNum: 2, Mismatch: 1}, m)

	assert.Equal(t, 0, len(corr))
	counts := hist.Get(Key("BC1", ""))
	assert.Equal(t, 2, counts["ACGA"]) // untouched
}

func TestCorrectRespectsMismatchBound(t *testing.T) {
	hist := NewHistogram()
	for i := 0; i < 5; i++ {
		hist.Add(Key("BC1", "G1"), "AAAA")
	}
	for i := 0; i < 3; i++ {
		hist.Add(Key("BC1", "G1"), "GGGG") // 4 mismatches from AAAA
	}

	m := NewMetrics()
	corr := Correct(hist, Options{MinNum: 1, Mismatch: 1}, m)

	_, ok := corr[Key("BC1", "G1")]
	assert.False(t, ok)
	counts := hist.Get(Key("BC1", "G1"))
	assert.Equal(t, 5, counts["AAAA"])
	assert.Equal(t, 3, counts["GGGG"])
}

func TestMetricsRecordsPositionsAndTypes(t *testing.T) {
	m := NewMetrics()
	m.record("ACGA", "ACGT")

	assert.Equal(t, int64(1), m.Positions[4])
	fromIdx, toIdx := baseIndex('A'), baseIndex('T')
	assert.Equal(t, int64(1), m.Types[fromIdx*4+toIdx])
}

func TestMetricsMerge(t *testing.T) {
	m1 := NewMetrics()
	m1.record("ACGA", "ACGT")
	m2 := NewMetrics()
	m2.record("ACGA", "ACGT")

	m1.Merge(m2)
	assert.Equal(t, int64(2), m1.Positions[4])
}

func TestHammingDistance(t *testing.T) {
	assert.Equal(t, 0, hamming("ACGT", "ACGT"))
	assert.Equal(t, 1, hamming("ACGT", "ACGA"))
	assert.Equal(t, 4, hamming("AAAA", "GGGG"))
}
