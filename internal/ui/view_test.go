package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.Local)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
		{15 * 24 * time.Hour, "2w ago"},
		{60 * 24 * time.Hour, "Apr 16"},
		{400 * 24 * time.Hour, "May 11 2025"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.ago), now), tt.ago.String())
	}
	assert.Empty(t, RelativeTime(time.Time{}, now))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
	cut := truncate("日本語のコマンド", 7)
	assert.LessOrEqual(t, runewidth.StringWidth(cut), 7)
	assert.True(t, strings.HasSuffix(cut, ellipsis))
}

func TestSingleLineKeepsRuneCount(t *testing.T) {
	in := "for f in *;\ndo\techo $f; done"
	out := singleLine(in)
	assert.NotContains(t, out, "\n")
	assert.Equal(t, len([]rune(in)), len([]rune(out)))
}

func TestHighlightKeepsText(t *testing.T) {
	// styles render plain when tests run without a terminal
	assert.Equal(t, "git status", highlight("git status", []int{0, 1, 2}, 80, false))
	assert.Equal(t, "git status", highlight("git status", []int{4, 9, 42}, 80, true))
	assert.Equal(t, "git…", highlight("git status", nil, 4, false))
}

func TestCommandLines(t *testing.T) {
	lines := commandLines("echo one two three four five six seven", 10, 3)
	assert.Len(t, lines, 3)
	for _, l := range lines {
		assert.LessOrEqual(t, runewidth.StringWidth(l), 10)
	}
	assert.True(t, strings.HasSuffix(lines[2], ellipsis))

	assert.Equal(t, []string{"ls"}, commandLines("ls", 10, 3))
	assert.Equal(t, []string{"a", "b"}, commandLines("a\nb", 10, 3))
}

func TestParseColorProfile(t *testing.T) {
	for in, want := range map[string]termenv.Profile{
		"truecolor": termenv.TrueColor,
		"256":       termenv.ANSI256,
		"16":        termenv.ANSI,
		"none":      termenv.Ascii,
	} {
		p, ok := ParseColorProfile(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, p, in)
	}
	_, ok := ParseColorProfile("")
	assert.False(t, ok)
}
