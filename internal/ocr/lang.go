package ocr

import (
	"strings"

	"golang.org/x/text/language"
)

// aliases maps the long language names accepted in settings to BCP 47.
var aliases = map[string]string{
	"japanese": "ja",
	"chinese":  "zh",
	"korean":   "ko",
	"english":  "en",
	"arabic":   "ar",
	"french":   "fr",
	"german":   "de",
	"spanish":  "es",
	"russian":  "ru",
}

// Tag parses a source-language setting ("ja", "zh-TW", "japanese").
func Tag(lang string) language.Tag {
	l := strings.ToLower(strings.TrimSpace(lang))
	if a, ok := aliases[l]; ok {
		l = a
	}
	tag, err := language.Parse(l)
	if err != nil {
		return language.Und
	}
	return tag
}

// IsCJK reports whether lang routes to the local engine.
func IsCJK(lang string) bool {
	base, _ := Tag(lang).Base()
	switch base.String() {
	case "ja", "zh":
		return true
	}
	return false
}

// TesseractLang maps lang to a tesseract traineddata name.
func TesseractLang(lang string) string {
	tag := Tag(lang)
	base, conf := tag.Base()
	if conf == language.No {
		return "eng"
	}
	if base.String() == "zh" {
		if script, _ := tag.Script(); script.String() == "Hant" {
			return "chi_tra"
		}
		return "chi_sim"
	}
	return base.ISO3()
}
