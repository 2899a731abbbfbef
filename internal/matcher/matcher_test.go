package matcher

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/osh/internal/event/eventtest"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		text      string
		ok        bool
		positions []int
		substring bool
	}{
		{"empty query", "", "anything", true, nil, false},
		{"no match", "xyz", "ls -la", false, nil, false},
		{"substring", "stat", "git status", true, []int{4, 5, 6, 7}, true},
		{"case folded substring", "STATUS", "git STATUS", true, []int{4, 5, 6, 7, 8, 9}, true},
		{"lowercase query ignores case", "git", "Git Status", true, []int{0, 1, 2}, true},
		{"uppercase query is case sensitive", "Git", "git status", false, nil, false},
		{"smart case scattered", "MkF", "Make kFile", true, nil, false},
		{"non-ascii substring", "日本", "echo 日本語", true, []int{5, 6}, true},
		{"non-ascii scattered", "éo", "héllo", true, []int{1, 4}, false},
		{"invalid utf8 text", "a", "a\xffb", false, nil, false},
		{"invalid utf8 query", "\xff", "abc", false, nil, false},
		{"query longer than text", "lsla", "ls", false, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Score(tt.query, tt.text)
			require.Equal(t, tt.ok, ok)
			if !ok {
				assert.Zero(t, m.Score)
				return
			}
			if tt.positions != nil {
				assert.Equal(t, tt.positions, m.Positions)
			}
			if tt.query == "" {
				assert.Zero(t, m.Score)
				return
			}
			assert.Positive(t, m.Score)
			assert.Equal(t, tt.substring, m.Score > SubstringTier, "score %d", m.Score)
			assert.Len(t, m.Positions, len([]rune(tt.query)))
		})
	}
}

func TestSubstringOutranksScattered(t *testing.T) {
	exact, ok := Score("gst", "gst --all")
	require.True(t, ok)
	scattered, ok := Score("gst", "git status")
	require.True(t, ok)
	assert.GreaterOrEqual(t, exact.Score, scattered.Score)

	// the same holds for a long command where the substring sits late
	late, ok := Score("gst", strings.Repeat("x", 400)+" gst")
	require.True(t, ok)
	assert.Greater(t, late.Score, scattered.Score)
}

func TestPositionsAreValidRuneIndexes(t *testing.T) {
	g := eventtest.New(11)
	r := rand.New(rand.NewPCG(11, 12))
	for range 2000 {
		text := g.Event().Command
		runes := []rune(text)
		if len(runes) == 0 {
			continue
		}
		// a random subsequence of the text always matches
		var q []rune
		for _, c := range runes {
			if r.IntN(3) == 0 {
				q = append(q, c)
			}
		}
		query := strings.ToLower(string(q))
		if query == "" || strings.ToLower(query) != query {
			continue
		}
		m, ok := Score(query, text)
		require.Truef(t, ok, "query %q text %q", query, text)
		require.Len(t, m.Positions, len([]rune(query)))
		for i, p := range m.Positions {
			require.Less(t, p, len(runes))
			if i > 0 {
				require.Greater(t, p, m.Positions[i-1])
			}
			assert.True(t, strings.EqualFold(string(runes[p]), string([]rune(query)[i])), "query %q text %q", query, text)
		}
	}
}

func TestExtendingQueryNeverRevivesNoMatch(t *testing.T) {
	g := eventtest.New(12)
	r := rand.New(rand.NewPCG(12, 13))
	alphabet := []rune("abcdegiklmnorstu -/|日")
	for range 2000 {
		text := g.Event().Command
		var q []rune
		matched := true
		for range 6 {
			q = append(q, alphabet[r.IntN(len(alphabet))])
			m, ok := Score(string(q), text)
			if !matched {
				require.False(t, ok, "extension of a failing query matched: %q in %q", string(q), text)
				assert.Zero(t, m.Score)
			}
			matched = ok
		}
	}
}

func TestScattersNeverReachSubstringTier(t *testing.T) {
	g := eventtest.New(13)
	r := rand.New(rand.NewPCG(13, 14))
	for range 2000 {
		text := g.Event().Command
		runes := []rune(strings.ToLower(text))
		if len(runes) < 3 {
			continue
		}
		i := r.IntN(len(runes) - 2)
		q := string([]rune{runes[i], runes[i+2]})
		m, ok := Score(q, text)
		if !ok {
			continue
		}
		contiguous := strings.Contains(strings.ToLower(text), q)
		assert.Equal(t, contiguous, m.Score > SubstringTier, "query %q text %q", q, text)
	}
}

func TestScoreIsPure(t *testing.T) {
	a, _ := Score("mk", "make check")
	b, _ := Score("mk", "make check")
	assert.Equal(t, a, b)
}
