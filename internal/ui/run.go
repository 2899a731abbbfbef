package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/pool"
)

// ErrNoTerminal is returned when no terminal is available for the session.
var ErrNoTerminal = errors.New("no terminal available")

// RunOptions adds terminal settings to Options.
type RunOptions struct {
	Options
	// Theme is "dark" or "light".
	Theme string
	// Color forces a color profile: truecolor, 256, 16 or none. Empty
	// detects it from the terminal.
	Color string
}

// ParseColorProfile maps an OSH_COLOR value to a termenv profile.
func ParseColorProfile(name string) (termenv.Profile, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "truecolor", "24bit":
		return termenv.TrueColor, true
	case "256", "ansi256":
		return termenv.ANSI256, true
	case "16", "ansi":
		return termenv.ANSI, true
	case "none", "ascii", "off":
		return termenv.Ascii, true
	}
	return termenv.Ascii, false
}

// Run draws the session on the controlling terminal so stdout stays free for
// the accepted command. The terminal is restored on every return path,
// including panics inside the program.
func Run(ctx context.Context, collector *pool.Collector, opts RunOptions) (event.Event, bool, error) {
	in, out, closeTTY, err := openTerminal()
	if err != nil {
		return event.Event{}, false, err
	}
	defer closeTTY()

	r := lipgloss.NewRenderer(out)
	if p, ok := ParseColorProfile(opts.Color); ok {
		r.SetColorProfile(p)
	}
	lipgloss.SetDefaultRenderer(r)
	InitTheme(opts.Theme)

	m := New(collector, opts.Options)
	prog := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := prog.Run()
	opts.Themes.Close()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
			uiLog.Info("session_interrupted", slog.String("error", err.Error()))
			return event.Event{}, false, nil
		}
		return event.Event{}, false, fmt.Errorf("search session: %w", err)
	}

	fm, ok := final.(*Model)
	if !ok {
		return event.Event{}, false, nil
	}
	e, accepted := fm.Result()
	uiLog.Info("session_finished",
		slog.Bool("accepted", accepted),
		slog.Int("pool", fm.Total()),
		slog.Int("visible", fm.Visible()),
	)
	return e, accepted, nil
}

// openTerminal prefers /dev/tty and falls back to stdin/stderr when those
// are terminals.
func openTerminal() (io.Reader, io.Writer, func(), error) {
	if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		return tty, tty, func() { tty.Close() }, nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd())) {
		return os.Stdin, os.Stderr, func() {}, nil
	}
	return nil, nil, nil, ErrNoTerminal
}
