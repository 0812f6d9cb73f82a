package sporttype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_KnownSynonyms(t *testing.T) {
	assert.Equal(t, "run", Normalize("Running"))
	assert.Equal(t, "run", Normalize("TRAIL_RUN"))
	assert.Equal(t, "ride", Normalize("MTB"))
	assert.Equal(t, "virtual_ride", Normalize("zwift"))
}

func TestNormalize_Unknown(t *testing.T) {
	assert.Equal(t, Other, Normalize("kayaking"))
	assert.Equal(t, Other, Normalize(""))
}

func TestEquivalent(t *testing.T) {
	assert.True(t, Equivalent("cycling", "road"))
	assert.False(t, Equivalent("cycling", "running"))
}
