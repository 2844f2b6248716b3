package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestColourSynonyms(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Schwarz", "black"},
		{"schwarz metallic", "black"},
		{"Weiß", "white"},
		{"weiss", "white"},
		{"Alpinweiss", "white"},
		{"GRAU", "gray"},
		{"Anthrazit", "gray"},
		{"rosso", "red"},
		{"Bleu", "blue"},
		{"silber metallic", "silver"},
		{"Grün", "green"},
		{"gelb", "yellow"},
	}
	for _, tc := range cases {
		got := Colour(strp(tc.input))
		require.NotNil(t, got, tc.input)
		assert.Equal(t, tc.want, *got, tc.input)
	}
}

func TestColourCompositeValues(t *testing.T) {
	got := Colour(strp("schwarz / weiß"))
	require.NotNil(t, got)
	assert.Equal(t, "black", *got)

	got = Colour(strp("beige und braun"))
	require.NotNil(t, got)
	assert.Equal(t, "beige", *got)
}

func TestColourKeywordFallback(t *testing.T) {
	got := Colour(strp("Obsidianschwarz Metallic"))
	require.NotNil(t, got)
	assert.Equal(t, "black", *got)

	got = Colour(strp("Navy Blue Pearl"))
	require.NotNil(t, got)
	assert.Equal(t, "blue", *got)
}

func TestColourUnknownFallsThroughToLiteral(t *testing.T) {
	got := Colour(strp("Türkis"))
	require.NotNil(t, got)
	assert.Equal(t, "turkis", *got)
	assert.False(t, IsCanonicalColour(*got))
}

func TestColourIdempotent(t *testing.T) {
	for _, input := range []string{"Schwarz", "candy white", "Türkis", "navy blue"} {
		once := Colour(strp(input))
		require.NotNil(t, once)
		twice := Colour(once)
		require.NotNil(t, twice)
		assert.Equal(t, *once, *twice, input)
	}
}

func TestColourEmptyIsNil(t *testing.T) {
	assert.Nil(t, Colour(nil))
	assert.Nil(t, Colour(strp("   ")))
}

func TestCategoryMapping(t *testing.T) {
	got := Category(strp("Benzin"), FuelMap)
	require.NotNil(t, got)
	assert.Equal(t, "petrol", *got)

	got = Category(strp("Elektro/Benzin"), FuelMap)
	require.NotNil(t, got)
	assert.Equal(t, "hybrid", *got)

	got = Category(strp("Schaltgetriebe"), TransmissionMap)
	require.NotNil(t, got)
	assert.Equal(t, "manual", *got)

	got = Category(strp("Limousine"), BodyTypeMap)
	require.NotNil(t, got)
	assert.Equal(t, "sedan", *got)

	got = Category(strp("Schräghecklimousine"), BodyTypeMap)
	require.NotNil(t, got)
	assert.Equal(t, "hatchback", *got)
}

func TestCategoryUnknownYieldsFoldedLiteral(t *testing.T) {
	got := Category(strp("Wasserstoff"), FuelMap)
	require.NotNil(t, got)
	assert.Equal(t, "wasserstoff", *got)
}

func TestCategoryClosedVocabulary(t *testing.T) {
	canonical := map[string]bool{
		"petrol": true, "diesel": true, "electric": true, "hybrid": true,
		"plug-in hybrid": true, "lpg": true, "cng": true,
	}
	for key := range FuelMap {
		got := Category(strp(key), FuelMap)
		require.NotNil(t, got)
		assert.True(t, canonical[*got], "fuel synonym %q maps outside the vocabulary: %q", key, *got)
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "coupe", Fold("Coupé"))
	assert.Equal(t, "weiss", Fold("Weiß"))
	assert.Equal(t, "bmw", Fold("  BMW "))
}
