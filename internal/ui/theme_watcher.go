package ui

import (
	"context"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	dark "github.com/thiagokokada/dark-mode-go"
)

// themeChangedMsg carries the new OS appearance.
type themeChangedMsg struct{ dark bool }

// ThemeWatcher follows OS dark mode while the theme is "system".
type ThemeWatcher struct {
	changes   chan bool
	closed    chan struct{}
	closeOnce sync.Once
}

// NewThemeWatcher starts watching. It returns nil when the platform cannot
// report changes; the session then keeps its initial theme.
func NewThemeWatcher(parent context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parent)
	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Debug("theme_watch_unavailable", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		changes: make(chan bool, 1),
		closed:  make(chan struct{}),
	}
	go tw.loop(cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) loop(cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closed:
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			// keep only the latest appearance
			select {
			case <-tw.changes:
			default:
			}
			tw.changes <- isDark
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				uiLog.Warn("theme_watch_error", slog.String("error", err.Error()))
			}
		}
	}
}

// wait returns a command delivering the next change. A nil watcher never
// delivers.
func (tw *ThemeWatcher) wait() tea.Cmd {
	if tw == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case isDark := <-tw.changes:
			return themeChangedMsg{dark: isDark}
		case <-tw.closed:
			return nil
		}
	}
}

// Close stops the watcher. Safe to call more than once and on nil.
func (tw *ThemeWatcher) Close() {
	if tw == nil {
		return
	}
	tw.closeOnce.Do(func() { close(tw.closed) })
}
