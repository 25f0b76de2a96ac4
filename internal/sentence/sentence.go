package sentence

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"captionsync/internal/timeline"
)

// Default grouping limits.
const (
	// DefaultMaxChars caps the joined text of a group, in runes.
	DefaultMaxChars = 160
	// DefaultMaxCues caps how many cues one group may merge.
	DefaultMaxCues = 4
	// DefaultMaxGapMs is the largest silence between cues that still joins them.
	DefaultMaxGapMs = 1200
	// DefaultSoftBreakChars is the length in runes at which trailing clause
	// punctuation closes a group.
	DefaultSoftBreakChars = 60
)

// Limits bounds group growth.
type Limits struct {
	MaxChars       int
	MaxCues        int
	MaxGapMs       int64
	SoftBreakChars int
}

// DefaultLimits returns the repository defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxChars:       DefaultMaxChars,
		MaxCues:        DefaultMaxCues,
		MaxGapMs:       DefaultMaxGapMs,
		SoftBreakChars: DefaultSoftBreakChars,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxChars <= 0 {
		l.MaxChars = DefaultMaxChars
	}
	if l.MaxCues <= 0 {
		l.MaxCues = DefaultMaxCues
	}
	if l.MaxGapMs < 0 {
		l.MaxGapMs = 0
	}
	if l.SoftBreakChars <= 0 {
		l.SoftBreakChars = DefaultSoftBreakChars
	}
	return l
}

// Group is a contiguous run of cues. EndIndex is inclusive.
type Group struct {
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	StartMs    int64  `json:"start_ms"`
	EndMs      int64  `json:"end_ms"`
	Text       string `json:"text"`
}

// CueCount returns the number of cues in the group.
func (g Group) CueCount() int {
	return g.EndIndex - g.StartIndex + 1
}

// Grouping is the result of Build. CueToGroup[i] is the group owning cue i.
type Grouping struct {
	Groups     []Group
	CueToGroup []int
}

// Len returns the number of groups.
func (g Grouping) Len() int {
	return len(g.Groups)
}

// GroupOf returns the group that owns cueIndex.
func (g Grouping) GroupOf(cueIndex int) (Group, bool) {
	if cueIndex < 0 || cueIndex >= len(g.CueToGroup) {
		return Group{}, false
	}
	gi := g.CueToGroup[cueIndex]
	if gi < 0 || gi >= len(g.Groups) {
		return Group{}, false
	}
	return g.Groups[gi], true
}

// Texts returns the group texts in order.
func (g Grouping) Texts() []string {
	out := make([]string, len(g.Groups))
	for i, group := range g.Groups {
		out[i] = group.Text
	}
	return out
}

// Build groups cues greedily. Every cue lands in exactly one group and groups
// are emitted in cue order.
func Build(cues []timeline.Cue, limits Limits) Grouping {
	limits = limits.withDefaults()
	result := Grouping{
		Groups:     make([]Group, 0, len(cues)),
		CueToGroup: make([]int, len(cues)),
	}
	if len(cues) == 0 {
		return result
	}

	current := Group{StartIndex: 0, EndIndex: 0, StartMs: cues[0].StartMs, EndMs: cues[0].EndMs, Text: cues[0].Text}
	for i := 1; i < len(cues); i++ {
		cue := cues[i]
		if joined, ok := extend(current, cue, limits); ok {
			current.EndIndex = i
			current.EndMs = cue.EndMs
			current.Text = joined
			continue
		}
		result.Groups = append(result.Groups, current)
		current = Group{StartIndex: i, EndIndex: i, StartMs: cue.StartMs, EndMs: cue.EndMs, Text: cue.Text}
	}
	result.Groups = append(result.Groups, current)

	for gi, group := range result.Groups {
		for i := group.StartIndex; i <= group.EndIndex; i++ {
			result.CueToGroup[i] = gi
		}
	}
	return result
}

func extend(group Group, cue timeline.Cue, limits Limits) (string, bool) {
	if group.CueCount() >= limits.MaxCues {
		return "", false
	}
	if cue.StartMs-group.EndMs > limits.MaxGapMs {
		return "", false
	}
	if EndsSentence(group.Text) {
		return "", false
	}
	if EndsSoftBreak(group.Text) && utf8.RuneCountInString(group.Text) >= limits.SoftBreakChars {
		return "", false
	}
	joined := Join(group.Text, cue.Text)
	if utf8.RuneCountInString(joined) > limits.MaxChars {
		return "", false
	}
	return joined, true
}

// Join concatenates two caption fragments with a single space, or with no
// separator when both sides of the seam are CJK characters.
func Join(left, right string) string {
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)
	if left == "" {
		return right
	}
	if right == "" {
		return left
	}
	last, _ := utf8.DecodeLastRuneInString(left)
	first, _ := utf8.DecodeRuneInString(right)
	if isCJK(last) && isCJK(first) {
		return left + right
	}
	return left + " " + right
}

const (
	terminalPunct = ".!?…。！？"
	softPunct     = ",;:，；：、"
	closingMarks  = "\"'”’」』)]}）》〉"
	cjkPunct      = "。！？，；：、「」『』（）《》〈〉"
)

// EndsSentence reports whether text ends in sentence-terminal punctuation,
// optionally followed by closing quotes or brackets.
func EndsSentence(text string) bool {
	r, ok := lastSignificantRune(text)
	return ok && strings.ContainsRune(terminalPunct, r)
}

// EndsSoftBreak reports whether text ends in clause punctuation.
func EndsSoftBreak(text string) bool {
	r, ok := lastSignificantRune(text)
	return ok && strings.ContainsRune(softPunct, r)
}

func lastSignificantRune(text string) (rune, bool) {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	text = strings.TrimRight(text, closingMarks)
	if text == "" {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(text)
	return r, true
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) ||
		strings.ContainsRune(cjkPunct, r)
}
