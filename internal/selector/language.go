package selector

import "strings"

// languageAliases maps ISO 639-2 codes and English names to ISO 639-1.
var languageAliases = map[string]string{
	"eng": "en", "english": "en",
	"ara": "ar", "arb": "ar", "arabic": "ar",
	"jpn": "ja", "japanese": "ja",
	"fra": "fr", "fre": "fr", "french": "fr",
	"deu": "de", "ger": "de", "german": "de",
	"spa": "es", "spanish": "es",
	"ita": "it", "italian": "it",
	"por": "pt", "portuguese": "pt",
	"rus": "ru", "russian": "ru",
	"tur": "tr", "turkish": "tr",
	"zho": "zh", "chi": "zh", "chinese": "zh",
	"kor": "ko", "korean": "ko",
	"hin": "hi", "hindi": "hi",
	"nld": "nl", "dut": "nl", "dutch": "nl",
}

// normalizeLanguage lowercases a language tag, drops any region subtag and
// maps known aliases to two letter codes.
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if code, ok := languageAliases[lang]; ok {
		return code
	}
	return lang
}

func languageMatches(trackLang, want string) bool {
	if trackLang == "" || want == "" {
		return false
	}
	return normalizeLanguage(trackLang) == normalizeLanguage(want)
}
