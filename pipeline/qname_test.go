package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQname(t *testing.T) {
	qname := "read1|||CB:Z:AAACCC|||UR:Z:ACGT|||UY:Z:FFFF"
	p := ParseQname(qname)
	assert.True(t, p.HasBarcode)
	assert.Equal(t, "AAACCC", p.Barcode)
	assert.True(t, p.HasUMI)
	assert.Equal(t, "ACGT", p.UMI)
	assert.Equal(t, "FFFF", p.UMIQual)
}

func TestParseQnameNoFields(t *testing.T) {
	p := ParseQname("read1")
	assert.False(t, p.HasBarcode)
	assert.False(t, p.HasUMI)
}

func TestParseQnameUnrecognizedPrefix(t *testing.T) {
	p := ParseQname("read1|||XX:Z:whatever")
	assert.False(t, p.HasBarcode)
	assert.False(t, p.HasUMI)
}

func TestBaseQname(t *testing.T) {
	assert.Equal(t, "read1", BaseQname("read1|||CB:Z:AAACCC"))
	assert.Equal(t, "read1", BaseQname("read1"))
}
