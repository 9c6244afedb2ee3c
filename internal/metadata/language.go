package metadata

// LangUndetermined is the archive's marker for texts whose language cannot
// be resolved. Texts with an unknown language code are kept under this
// marker rather than dropped.
const LangUndetermined = "und"

// iso639_2 maps the portfolio's 2-letter language codes to the
// bibliographic 3-letter codes the archive expects.
var iso639_2 = map[string]string{
	"en": "eng",
	"de": "ger",
	"fr": "fre",
	"it": "ita",
	"es": "spa",
	"pt": "por",
	"nl": "dut",
	"ru": "rus",
	"pl": "pol",
	"cs": "cze",
	"sk": "slo",
	"hu": "hun",
	"sl": "slv",
	"hr": "hrv",
	"sr": "srp",
	"bs": "bos",
	"tr": "tur",
	"ar": "ara",
	"fa": "per",
	"ja": "jpn",
	"zh": "chi",
	"ko": "kor",
	"uk": "ukr",
	"ro": "rum",
	"bg": "bul",
	"el": "gre",
	"sv": "swe",
	"da": "dan",
	"no": "nor",
	"fi": "fin",
}

// LanguageCode resolves a 2-letter code to its 3-letter equivalent, falling
// back to the undetermined marker for unknown codes.
func LanguageCode(twoLetter string) string {
	if code, ok := iso639_2[twoLetter]; ok {
		return code
	}
	return LangUndetermined
}

// KnownLanguage reports whether the 2-letter code has a 3-letter mapping.
func KnownLanguage(twoLetter string) bool {
	_, ok := iso639_2[twoLetter]
	return ok
}

// RecognizedLanguageCode reports whether a 3-letter code is one the mapping
// table can produce, excluding the undetermined marker.
func RecognizedLanguageCode(threeLetter string) bool {
	for _, code := range iso639_2 {
		if code == threeLetter {
			return true
		}
	}
	return false
}
