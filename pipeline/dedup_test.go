package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintSetFirstSeenIsUnique(t *testing.T) {
	s := newFingerprintSet()
	assert.True(t, s.addIfAbsent("fp1"))
}

func TestFingerprintSetRepeatIsDuplicate(t *testing.T) {
	s := newFingerprintSet()
	assert.True(t, s.addIfAbsent("fp1"))
	assert.False(t, s.addIfAbsent("fp1"))
	assert.True(t, s.addIfAbsent("fp2"))
}
