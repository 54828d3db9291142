package saturation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeUMIBijective(t *testing.T) {
	umis := []string{"ACGT", "AAAA", "TTTT", "GCTAGCTA"}
	for _, u := range umis {
		code, err := EncodeUMI(u)
		assert.NoError(t, err)
		assert.Equal(t, u, DecodeUMI(code, len(u)))
	}
}

func TestEncodeUMIRejectsInvalidBase(t *testing.T) {
	_, err := EncodeUMI("ACGN")
	assert.Error(t, err)
}

func TestEncodeUMIDistinctForDistinctInput(t *testing.T) {
	a, _ := EncodeUMI("AAAA")
	b, _ := EncodeUMI("AAAC")
	assert.NotEqual(t, a, b)
}
