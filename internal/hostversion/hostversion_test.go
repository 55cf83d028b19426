package hostversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	assert.Equal(t, "v7.73.0", Canonical("7.73"))
	assert.Equal(t, "v7.1.2", Canonical("v7.1.2"))
	assert.Equal(t, "v7.0.0", Canonical(" 7 "))
	assert.Equal(t, "", Canonical("latest"))
	assert.Equal(t, "", Canonical(""))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare("7.71", "7.73"))
	assert.Equal(t, 1, Compare("7.100", "7.73"))
	assert.Equal(t, 0, Compare("7.73", "v7.73.0"))
	assert.Equal(t, -1, Compare("garbage", "1.0"))
}

func TestMax(t *testing.T) {
	assert.Equal(t, "7.73", Max([]string{"7.71", "7.73", "6.9", "nightly"}))
	assert.Equal(t, "", Max([]string{"nightly"}))
	assert.Equal(t, "", Max(nil))
}
