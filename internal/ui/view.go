package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/osh/internal/event"
)

const (
	// previewLines is the preview content height, border excluded.
	previewLines  = 5
	previewChrome = 2

	// footerLines holds the status line and the input.
	footerLines = 2

	ellipsis = "…"
)

func (m *Model) listHeight() int {
	return max(m.height-previewLines-previewChrome-footerLines, 1)
}

// View renders preview, list (best match at the bottom), status and input.
func (m *Model) View() string {
	themeMu.RLock()
	defer themeMu.RUnlock()

	if m.state != editing {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderPreview())
	b.WriteString("\n")

	rows := m.listHeight()
	for i := rows - 1; i >= 0; i-- {
		rank := m.offset + i
		if rank < m.idx.Len() {
			b.WriteString(m.renderRow(rank))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

func (m *Model) renderRow(rank int) string {
	e := m.pool.At(m.idx.Get(rank))
	selected := rank == m.selected

	width := m.width - 2
	var prefix string
	if m.showScore {
		s := fmt.Sprintf("%10d ", m.idx.Score(rank))
		prefix = scoreStyle.Render(s)
		width -= len(s)
	}

	line := highlight(singleLine(e.Command), m.idx.Positions(rank), max(width, 1), selected)
	if selected {
		return markerStyle.Render("▌ ") + prefix + line
	}
	return "  " + prefix + line
}

// highlight renders text styled per rune, matched positions emphasized,
// cut to width terminal cells.
func highlight(text string, positions []int, width int, selected bool) string {
	base, hit := rowStyle, matchStyle
	if selected {
		base, hit = selectedRowStyle, selectedMatch
	}

	text = truncate(text, width)
	var b, run strings.Builder
	matched := false
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if matched {
			b.WriteString(hit.Render(run.String()))
		} else {
			b.WriteString(base.Render(run.String()))
		}
		run.Reset()
	}

	p := 0
	i := 0
	for _, r := range text {
		for p < len(positions) && positions[p] < i {
			p++
		}
		isHit := p < len(positions) && positions[p] == i
		if isHit != matched {
			flush()
			matched = isHit
		}
		run.WriteRune(r)
		i++
	}
	flush()
	return b.String()
}

// truncate cuts s to width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, ellipsis)
}

// singleLine maps line breaks to spaces rune-for-rune so match positions
// stay valid.
func singleLine(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
}

func (m *Model) renderStatus() string {
	var b strings.Builder
	b.WriteString(statusStyle.Render(fmt.Sprintf("  %d/%d", m.idx.Len(), m.pool.Len())))
	if !m.filters.Empty() {
		b.WriteString(" ")
		b.WriteString(filterOnStyle.Render("[" + m.filters.String() + "]"))
	}
	if m.collector != nil && !m.collector.Done() {
		b.WriteString(dimStyle.Render("  loading"))
	}
	return b.String()
}

func (m *Model) renderPreview() string {
	width := max(m.width-4, 10)
	lines := make([]string, 0, previewLines)

	if m.idx.Len() == 0 {
		lines = append(lines, dimStyle.Render("no matches"))
	} else {
		e := m.pool.At(m.idx.Get(m.selected))
		lines = append(lines, previewHeader(e, time.Now()))
		lines = append(lines, previewKeyStyle.Render("dir  ")+truncate(e.Folder, width-5))
		for i, l := range commandLines(e.Command, width-5, previewLines-2) {
			key := "     "
			if i == 0 {
				key = "cmd  "
			}
			lines = append(lines, previewKeyStyle.Render(key)+l)
		}
	}
	for len(lines) < previewLines {
		lines = append(lines, "")
	}
	return previewStyle.Width(width + 2).Render(strings.Join(lines, "\n"))
}

func previewHeader(e event.Event, now time.Time) string {
	exit := exitOKStyle.Render(fmt.Sprintf("%d", e.ExitCode))
	if !e.Succeeded() {
		exit = exitFailStyle.Render(fmt.Sprintf("%d", e.ExitCode))
	}
	return previewKeyStyle.Render("exit ") + exit + "  " +
		previewKeyStyle.Render("ended ") + timeStyle.Render(RelativeTime(e.EndTime(), now))
}

// commandLines wraps cmd to width and keeps at most n lines.
func commandLines(cmd string, width, n int) []string {
	width = max(width, 1)
	var out []string
	for _, raw := range strings.Split(cmd, "\n") {
		for _, l := range strings.Split(runewidth.Wrap(raw, width), "\n") {
			if len(out) == n {
				out[n-1] = truncate(out[n-1]+" "+ellipsis, width)
				return out
			}
			out = append(out, truncate(l, width))
		}
	}
	return out
}

// RelativeTime formats t against now as "just now", "5m ago", "3h ago",
// "2d ago", "1w ago", or a date once older than a month.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	case diff < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(diff.Hours()/(24*7)))
	case t.Year() == now.Year():
		return t.Local().Format("Jan 2")
	default:
		return t.Local().Format("Jan 2 2006")
	}
}
