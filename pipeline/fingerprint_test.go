package pipeline

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
)

func TestFingerprintForward(t *testing.T) {
	r := &sam.Record{Pos: 100, TempLen: 50}
	fp := Fingerprint(r, "AAACCC")
	assert.Equal(t, "100150AAACCC", fp)
}

func TestFingerprintReverse(t *testing.T) {
	r := &sam.Record{Flags: sam.Reverse, MatePos: 200, TempLen: 50}
	fp := Fingerprint(r, "AAACCC")
	assert.Equal(t, "150200AAACCC", fp)
}

func TestFingerprintDistinguishesBarcode(t *testing.T) {
	r := &sam.Record{Pos: 100, TempLen: 50}
	assert.NotEqual(t, Fingerprint(r, "AAACCC"), Fingerprint(r, "GGGTTT"))
}
