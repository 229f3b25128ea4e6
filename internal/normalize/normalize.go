// Package normalize cleans up free-form metadata values returned by
// upstream catalogs.
package normalize

import (
	"strings"

	"golang.org/x/text/language"
)

// bibliographicCodes maps ISO 639-2/B codes that BCP 47 does not know to
// their ISO 639-1 equivalent.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var bibliographicCodes = map[string]string{
	"ger": "de", "fre": "fr", "dut": "nl", "chi": "zh", "cze": "cs",
	"gre": "el", "per": "fa", "rum": "ro", "slo": "sk", "alb": "sq",
	"arm": "hy", "baq": "eu", "bur": "my", "geo": "ka", "ice": "is",
	"mac": "mk", "may": "ms", "tib": "bo", "wel": "cy",
}

// languageNames maps English language names, as some catalog records
// carry them instead of a code.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var languageNames = map[string]string{
	"english": "en", "spanish": "es", "french": "fr", "german": "de",
	"italian": "it", "portuguese": "pt", "dutch": "nl", "russian": "ru",
	"japanese": "ja", "chinese": "zh", "mandarin": "zh", "korean": "ko",
	"arabic": "ar", "hindi": "hi", "polish": "pl", "swedish": "sv",
	"norwegian": "no", "danish": "da", "finnish": "fi", "turkish": "tr",
	"greek": "el", "hebrew": "he", "czech": "cs", "hungarian": "hu",
	"romanian": "ro", "ukrainian": "uk", "catalan": "ca", "latin": "la",
	"persian": "fa", "farsi": "fa", "vietnamese": "vi", "thai": "th",
	"indonesian": "id", "welsh": "cy", "irish": "ga", "icelandic": "is",
}

// LanguageCode reduces a language value to its ISO 639-1 code when one
// exists. It accepts two and three letter codes ("en", "eng", "ger"),
// locales in either separator style ("en-US", "en_GB") and English names
// ("English"). Unrecognized values yield "".
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(stripNulls(raw)))
	if s == "" {
		return ""
	}

	if code, ok := languageNames[s]; ok {
		return code
	}
	if code, ok := bibliographicCodes[s]; ok {
		return code
	}

	tag, err := language.Parse(s)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

// LanguageOrRaw returns LanguageCode(raw), falling back to the trimmed,
// lowercased input so unusual values are kept rather than dropped.
func LanguageOrRaw(raw string) string {
	if code := LanguageCode(raw); code != "" {
		return code
	}
	return strings.ToLower(strings.TrimSpace(stripNulls(raw)))
}

// stripNulls removes NUL bytes, which some upstream records carry and
// SQLite text columns do not round-trip cleanly.
func stripNulls(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
