package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaroWinklerBounds(t *testing.T) {
	assert.Equal(t, 1.0, JaroWinkler("tacos el moro", "tacos el moro"))
	assert.Equal(t, 0.0, JaroWinkler("", "tacos"))
	assert.Equal(t, 0.0, JaroWinkler("abc", "xyz"))

	score := JaroWinkler("guelaguetza", "guelaguetzas")
	assert.Greater(t, score, 0.9)
	assert.LessOrEqual(t, score, 1.0)
}

func TestTokenSortRatioOrderIndependent(t *testing.T) {
	assert.Equal(t, 1.0, TokenSortRatio("el moro tacos", "tacos el moro"))
	assert.Equal(t, 1.0, TokenSortRatio("Sunset Grill", "grill sunset"))
}

func TestTokenSortRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"tacos el moro", "el moro taco"},
		{"night owl", "owl night market"},
		{"guelaguetza", "guelaguetza restaurante"},
	}
	for _, p := range pairs {
		assert.Equal(t, TokenSortRatio(p[0], p[1]), TokenSortRatio(p[1], p[0]), "pair %v", p)
	}
}

func TestTokenSortRatioEmpty(t *testing.T) {
	assert.Equal(t, 0.0, TokenSortRatio("", "tacos"))
	assert.Equal(t, 0.0, TokenSortRatio("tacos", ""))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 1.0, Levenshtein("abc", "abc"))
	assert.Equal(t, 0.0, Levenshtein("", "abc"))
	assert.InDelta(t, 0.8, Levenshtein("abcde", "abcdx"), 1e-9)
}

func TestHaversineMeters(t *testing.T) {
	// Same point.
	assert.InDelta(t, 0, HaversineMeters(34.078, -118.260, 34.078, -118.260), 1e-6)

	// One degree of latitude is roughly 111km.
	d := HaversineMeters(34.0, -118.0, 35.0, -118.0)
	assert.InDelta(t, 111_000, d, 1_000)

	// A block apart in Echo Park, well inside the 200m gate.
	d = HaversineMeters(34.0780, -118.2600, 34.0786, -118.2610)
	assert.Less(t, d, 200.0)
	assert.Greater(t, d, 50.0)
}
