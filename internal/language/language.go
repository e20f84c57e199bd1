package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2 string
	code3 []string
	words []string
}

var languages = []entry{
	{"en", []string{"eng"}, []string{"english"}},
	{"zh", []string{"zho", "chi", "cmn"}, []string{"chinese", "mandarin"}},
	{"yue", []string{"yue"}, []string{"cantonese"}},
	{"ja", []string{"jpn"}, []string{"japanese"}},
	{"ko", []string{"kor"}, []string{"korean"}},
	{"es", []string{"spa"}, []string{"spanish"}},
	{"fr", []string{"fra", "fre"}, []string{"french"}},
	{"de", []string{"deu", "ger"}, []string{"german"}},
	{"ru", []string{"rus"}, []string{"russian"}},
}

var byAlias = func() map[string]string {
	m := make(map[string]string, len(languages)*4)
	for _, e := range languages {
		m[e.code2] = e.code2
		for _, c := range e.code3 {
			m[c] = e.code2
		}
		for _, w := range e.words {
			m[w] = e.code2
		}
	}
	return m
}()

// Normalize folds a code, word, or BCP 47 tag to its base language code.
// Unrecognized input is returned lowercased; empty input stays empty.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if mapped, ok := byAlias[code]; ok {
		return mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	base, conf := tag.Base()
	if conf == language.No {
		return code
	}
	if mapped, ok := byAlias[base.String()]; ok {
		return mapped
	}
	return base.String()
}

// IsChinese reports whether the hint names Chinese in any of its forms.
func IsChinese(code string) bool {
	return Normalize(code) == "zh"
}

// DisplayName returns the English name for a language hint, "Unknown" for
// empty input, or the uppercased input when it cannot be parsed.
func DisplayName(code string) string {
	normalized := Normalize(code)
	if normalized == "" {
		return "Unknown"
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return strings.ToUpper(normalized)
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(normalized)
}
