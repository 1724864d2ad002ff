package match

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the a an and or but in on at to for of with by
		how what where when why who is are was were be been
		have has had do does did will would could should may might can
		i you he she it we they me him her us them my your his its our their
		get got getting`) {
		stopWords[w] = struct{}{}
	}
}

// Normalize lowercases and trims an utterance.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Keywords splits text on whitespace, strips non-word characters, and drops
// short tokens and stop words. Text is expected to be lowercase already.
func Keywords(text string) []string {
	var out []string
	for _, tok := range strings.Fields(text) {
		w := stripNonWord(tok)
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

func stripNonWord(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return -1
	}, s)
}

// KeywordScore is the Jaccard index of the two keyword sets. Either side
// being empty scores zero.
func KeywordScore(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]uint8, len(a)+len(b))
	for _, w := range a {
		set[w] |= 1
	}
	for _, w := range b {
		set[w] |= 2
	}
	inter := 0
	for _, mask := range set {
		if mask == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

// Similarity is the normalized Levenshtein similarity
// (maxLen - distance) / maxLen over runes. Two empty strings are identical.
func Similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-d) / float64(maxLen)
}
