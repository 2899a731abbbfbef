// Package matcher scores a query against one command line.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

const (
	// SubstringTier is added to every contiguous match, so any command that
	// contains the query verbatim outranks every scattered match.
	SubstringTier = 1 << 30

	// scoreOffset lifts fuzzy scores, which go negative for long commands
	// with late matches, into the positive range.
	scoreOffset = 1 << 16
)

// Match is a scored hit. Positions are ascending rune indices into the text.
type Match struct {
	Score     int
	Positions []int
}

// single adapts one string to fuzzy.Source.
type single string

func (s single) String(int) string { return string(s) }
func (s single) Len() int          { return 1 }

// Score matches query against text as a subsequence. Matching ignores case
// unless query contains an uppercase letter. It reports false when there is
// no match or either string is not valid UTF-8. An empty query matches with
// score zero. Score keeps no state between calls.
func Score(query, text string) (Match, bool) {
	if !utf8.ValidString(query) || !utf8.ValidString(text) {
		return Match{}, false
	}
	if query == "" {
		return Match{}, true
	}
	smart := hasUpper(query)

	var positions []int
	if smart {
		positions = exactSubsequence(query, text)
		if positions == nil {
			return Match{}, false
		}
	}

	base := 1
	matches := fuzzy.FindFromNoSort(query, single(text))
	if len(matches) == 0 {
		if !smart {
			return Match{}, false
		}
	} else {
		m := matches[0]
		base = clamp(m.Score+scoreOffset, 1, SubstringTier-1)
		if positions == nil {
			positions = runeIndexes(text, m.MatchedIndexes)
		}
	}

	if start, ok := substring(query, text, smart); ok {
		n := utf8.RuneCountInString(query)
		positions = make([]int, n)
		for i := range positions {
			positions[i] = start + i
		}
		return Match{Score: SubstringTier + base, Positions: positions}, true
	}
	return Match{Score: base, Positions: positions}, true
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// substring returns the rune index of the first occurrence of query in text.
// strings.ToLower maps rune by rune, so rune indices of the lowered text line
// up with the original.
func substring(query, text string, caseSensitive bool) (int, bool) {
	if !caseSensitive {
		query = strings.ToLower(query)
		text = strings.ToLower(text)
	}
	i := strings.Index(text, query)
	if i < 0 {
		return 0, false
	}
	return utf8.RuneCountInString(text[:i]), true
}

// exactSubsequence greedily matches query runes in text, case-sensitively,
// returning rune positions or nil.
func exactSubsequence(query, text string) []int {
	want := []rune(query)
	positions := make([]int, 0, len(want))
	ri := 0
	for _, r := range text {
		if len(positions) < len(want) && r == want[len(positions)] {
			positions = append(positions, ri)
		}
		ri++
	}
	if len(positions) < len(want) {
		return nil
	}
	return positions
}

// runeIndexes converts ascending byte offsets into rune indices.
func runeIndexes(text string, byteIdx []int) []int {
	out := make([]int, 0, len(byteIdx))
	ri, k := 0, 0
	for bi := range text {
		if k == len(byteIdx) {
			break
		}
		if bi == byteIdx[k] {
			out = append(out, ri)
			k++
		}
		ri++
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
