package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	colourSplitter  = regexp.MustCompile(`[\/,;]| und | with `)
)

// StripAccents removes combining marks ("coupé" → "coupe") and expands the
// eszett, which survives unicode decomposition ("weiß" → "weiss").
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, _ := transform.String(t, s)
	return strings.ReplaceAll(out, "ß", "ss")
}

// Fold is the comparison form used for every categorical equality check:
// accent-stripped, lowercased, whitespace-trimmed.
func Fold(s string) string {
	return strings.TrimSpace(strings.ToLower(StripAccents(s)))
}

// FoldPtr folds through a nullable value.
func FoldPtr(s *string) *string {
	text := Text(s)
	if text == nil {
		return nil
	}
	folded := Fold(*text)
	return &folded
}

// Text trims a nullable string, mapping empty to nil.
func Text(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Colour canonical vocabulary, in lookup order. Order matters for the
// keyword fallback scan so results stay deterministic.
var colourOrder = []string{
	"white", "black", "gray", "blue", "red", "silver",
	"green", "brown", "beige", "orange", "yellow",
}

// Curated synonym table covering German, English, Italian, French and
// Spanish marketplace spellings.
var colourCanonicalMap = map[string]string{
	"weiss":          "white",
	"weiss metallic": "white",
	"white":          "white",
	"candy white":    "white",
	"polar white":    "white",
	"pure white":     "white",
	"alpinweiss":     "white",
	"alpine white":   "white",
	"blanc":          "white",
	"bianco":         "white",

	"schwarz":          "black",
	"schwarz metallic": "black",
	"black":            "black",
	"deep black":       "black",
	"noir":             "black",
	"nero":             "black",

	"grau":          "gray",
	"grau metallic": "gray",
	"graphit":       "gray",
	"graphite":      "gray",
	"grey":          "gray",
	"gray":          "gray",
	"gris":          "gray",
	"anthrazit":     "gray",
	"anthracite":    "gray",

	"blau": "blue",
	"azul": "blue",
	"bleu": "blue",
	"blu":  "blue",
	"blue": "blue",

	"rot":   "red",
	"rosso": "red",
	"rouge": "red",
	"red":   "red",

	"silber":          "silver",
	"silber metallic": "silver",
	"silver":          "silver",
	"argent":          "silver",

	"grun":  "green",
	"gruen": "green",
	"verde": "green",
	"vert":  "green",
	"green": "green",

	"braun":  "brown",
	"marron": "brown",
	"bruin":  "brown",
	"brown":  "brown",

	"beige": "beige",
	"sand":  "beige",
	"creme": "beige",

	"orange": "orange",

	"gelb":     "yellow",
	"amarillo": "yellow",
	"giallo":   "yellow",
	"yellow":   "yellow",
}

// Keyword fallback for composite or decorated colour strings
// ("obsidianschwarz metallic", "navy blue pearl").
var colourKeywordMap = map[string][]string{
	"white":  {"weiss", "white", "bianco", "blanc", "blanco", "alpin", "arctic", "polar", "candy", "snow"},
	"black":  {"schwarz", "black", "noir", "nero", "obsidian", "midnight", "onyx"},
	"gray":   {"grau", "gray", "grey", "gris", "anthracite", "anthrazit", "graphit", "graphite", "slate"},
	"blue":   {"blau", "bleu", "blu", "azul", "blue", "navy", "ocean"},
	"red":    {"rot", "rosso", "rouge", "red", "crimson"},
	"silver": {"silber", "silver", "argent", "platinum", "platino"},
	"green":  {"grun", "gruen", "verde", "vert", "green"},
	"brown":  {"braun", "marron", "brown", "bruin", "bronze"},
	"beige":  {"beige", "sand", "creme", "champagne", "ivory"},
	"orange": {"orange", "sunset"},
	"yellow": {"gelb", "giallo", "amarillo", "yellow"},
}

// FuelMap maps marketplace fuel spellings to the canonical vocabulary.
var FuelMap = map[string]string{
	"benzin":         "petrol",
	"petrol":         "petrol",
	"gasoline":       "petrol",
	"elektro":        "electric",
	"electric":       "electric",
	"diesel":         "diesel",
	"elektro/benzin": "hybrid",
	"hybrid":         "hybrid",
	"plugin-hybrid":  "plug-in hybrid",
	"plug-in hybrid": "plug-in hybrid",
	"lpg":            "lpg",
	"cng":            "cng",
}

// TransmissionMap maps gearbox spellings to the canonical vocabulary.
var TransmissionMap = map[string]string{
	"automatik":      "automatic",
	"automatic":      "automatic",
	"tiptronic":      "automatic",
	"schaltgetriebe": "manual",
	"manuell":        "manual",
	"manual":         "manual",
}

// BodyTypeMap maps body-type spellings to the canonical vocabulary.
var BodyTypeMap = map[string]string{
	"suv/gelandewagen/pickup": "suv",
	"gelandewagen":            "suv",
	"suv":                     "suv",
	"limousine":               "sedan",
	"sedan":                   "sedan",
	"kombi":                   "wagon",
	"wagon":                   "wagon",
	"coupe":                   "coupe",
	"cabrio":                  "convertible",
	"kabriolett":              "convertible",
	"convertible":             "convertible",
	"kastenwagen hochdach":    "van",
	"kastenwagen":             "van",
	"transporter":             "van",
	"van":                     "van",
	"kleinwagen":              "hatchback",
	"schraghecklimousine":     "hatchback",
	"hatchback":               "hatchback",
}

// Colour canonicalises a colour string: synonym table first, then composite
// parts, then keyword scan, finally the lowercased literal. Unknown
// multilingual values therefore never match across languages; callers surface
// that as a warning rather than invent synonyms.
func Colour(value *string) *string {
	text := Text(value)
	if text == nil {
		return nil
	}
	lowered := strings.ToLower(StripAccents(*text))
	lowered = strings.ReplaceAll(lowered, "-", " ")
	lowered = strings.TrimSpace(whitespaceRegex.ReplaceAllString(lowered, " "))

	if canonical, ok := colourCanonicalMap[lowered]; ok {
		return &canonical
	}

	for _, part := range colourSplitter.Split(lowered, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if canonical, ok := colourCanonicalMap[part]; ok {
			return &canonical
		}
	}

	for _, canonical := range colourOrder {
		for _, keyword := range colourKeywordMap[canonical] {
			if strings.Contains(lowered, keyword) {
				c := canonical
				return &c
			}
		}
	}

	return &lowered
}

// IsCanonicalColour reports membership in the closed colour vocabulary.
func IsCanonicalColour(colour string) bool {
	for _, c := range colourOrder {
		if c == colour {
			return true
		}
	}
	return false
}

// Category canonicalises through a mapping; unknown keys yield the folded
// literal so a non-empty input is never lost.
func Category(value *string, mapping map[string]string) *string {
	text := Text(value)
	if text == nil {
		return nil
	}
	key := Fold(*text)
	if canonical, ok := mapping[key]; ok {
		return &canonical
	}
	return &key
}
