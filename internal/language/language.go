package language

import (
	"fmt"
	"strings"
	"unicode"

	xlanguage "golang.org/x/text/language"
)

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter)
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms (e.g. "english")
	scripts []*unicode.RangeTable
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}, nil},
	{"es", "spa", "", "Spanish", []string{"spanish"}, nil},
	{"fr", "fra", "fre", "French", []string{"french"}, nil},
	{"de", "deu", "ger", "German", []string{"german"}, nil},
	{"it", "ita", "", "Italian", []string{"italian"}, nil},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}, nil},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}, []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana}},
	{"ko", "kor", "", "Korean", []string{"korean"}, []*unicode.RangeTable{unicode.Hangul}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}, []*unicode.RangeTable{unicode.Han}},
	{"ru", "rus", "", "Russian", []string{"russian"}, []*unicode.RangeTable{unicode.Cyrillic}},
	{"uk", "ukr", "", "Ukrainian", []string{"ukrainian"}, []*unicode.RangeTable{unicode.Cyrillic}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}, []*unicode.RangeTable{unicode.Arabic}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}, []*unicode.RangeTable{unicode.Devanagari}},
	{"th", "tha", "", "Thai", []string{"thai"}, []*unicode.RangeTable{unicode.Thai}},
	{"el", "ell", "gre", "Greek", []string{"greek"}, []*unicode.RangeTable{unicode.Greek}},
	{"he", "heb", "", "Hebrew", []string{"hebrew"}, []*unicode.RangeTable{unicode.Hebrew}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}, nil},
	{"pl", "pol", "", "Polish", []string{"polish"}, nil},
	{"sv", "swe", "", "Swedish", []string{"swedish"}, nil},
	{"tr", "tur", "", "Turkish", []string{"turkish"}, nil},
	{"vi", "vie", "", "Vietnamese", []string{"vietnamese"}, nil},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	if tag, err := xlanguage.Parse(code); err == nil {
		base, _ := tag.Base()
		if e, ok := byCode2[base.String()]; ok {
			return e
		}
	}
	return nil
}

// Normalize canonicalizes a target language code to a BCP 47 tag. Words and
// ISO 639-2 codes map to their 2-letter form; regions are preserved.
func Normalize(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("language: empty code")
	}
	lowered := strings.ToLower(trimmed)
	if e, ok := byCode3[lowered]; ok {
		return e.code2, nil
	}
	if e, ok := byWord[lowered]; ok {
		return e.code2, nil
	}
	tag, err := xlanguage.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("language: parse %q: %w", code, err)
	}
	return tag.String(), nil
}

// ToISO2 converts any recognized language code or word to ISO 639-1 (2-letter).
// Returns empty string for unrecognized input.
func ToISO2(code string) string {
	if e := lookup(code); e != nil {
		return e.code2
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable language name for prompts and tables.
// Chinese variants are distinguished by script.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	e := lookup(trimmed)
	if e == nil {
		return strings.ToUpper(trimmed)
	}
	if e.code2 == "zh" && strings.ContainsAny(trimmed, "-_") {
		if tag, err := xlanguage.Parse(strings.ReplaceAll(trimmed, "_", "-")); err == nil {
			if script, conf := tag.Script(); conf != xlanguage.No {
				switch script.String() {
				case "Hant":
					return "Traditional Chinese"
				case "Hans":
					return "Simplified Chinese"
				}
			}
		}
	}
	return e.display
}

// IsTranslatable reports whether text carries letters worth sending to a
// provider. Very short strings and pure number or symbol runs are skipped.
func IsTranslatable(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < 2 {
		return false
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// IsLikelyTarget reports whether text already appears to be written in the
// target language. Only targets with a distinctive script can be detected;
// for the rest it always reports false.
func IsLikelyTarget(text, target string) bool {
	e := lookup(target)
	if e == nil || len(e.scripts) == 0 {
		return false
	}
	var letters, inScript int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.In(r, e.scripts...) {
			inScript++
		}
	}
	if letters == 0 {
		return false
	}
	return float64(inScript)/float64(letters) > 0.5
}
