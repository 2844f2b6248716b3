package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("Der Wagen mit Sitzheizung und DAB für 99 PS ab")

	assert.Contains(t, tokens, "wagen")
	assert.Contains(t, tokens, "sitzheizung")
	assert.Contains(t, tokens, "dab")
	// Purely numeric short tokens survive.
	assert.Contains(t, tokens, "99")

	assert.NotContains(t, tokens, "der")
	assert.NotContains(t, tokens, "mit")
	assert.NotContains(t, tokens, "und")
	assert.NotContains(t, tokens, "fur")
	assert.NotContains(t, tokens, "ab")
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
}

func TestExtractOptionFeatures(t *testing.T) {
	description := "Sitzheizung, Panoramadach, 360 Kamera, DAB+, Apple CarPlay, Matrix LED, Parkassist, adaptive cruise control"
	profile := BuildTextProfile(description)

	for _, feature := range []string{
		"heated_seats",
		"panoramic_roof",
		"camera_360",
		"dab_plus",
		"carplay_android_auto",
		"matrix_led",
		"park_assist",
		"adaptive_cruise_control",
	} {
		assert.Contains(t, profile.Features, feature, feature)
	}
}

func TestExtractOptionFeaturesNoFalsePositives(t *testing.T) {
	profile := BuildTextProfile("Gepflegter Wagen aus erster Hand, scheckheftgepflegt")
	assert.Empty(t, profile.Features)
}

func TestBuildTextProfileDeterministic(t *testing.T) {
	description := "BMW 3er mit Sitzheizung und Panoramadach"
	first := BuildTextProfile(description)
	second := BuildTextProfile(description)
	assert.Equal(t, first.Tokens, second.Tokens)
	assert.Equal(t, first.Features, second.Features)
	assert.Equal(t, first.Lowered, second.Lowered)
}
