package logging

import (
	"bytes"
	"log/slog"
	"strings"
)

// BridgeWriter routes output of the standard log package into slog so that
// nothing a dependency prints with log.Printf reaches the terminal while the
// TUI is running. A leading "[name] " is turned into the component field.
type BridgeWriter struct {
	component string
}

// NewBridgeWriter returns a writer whose records default to component.
func NewBridgeWriter(component string) *BridgeWriter {
	return &BridgeWriter{component: component}
}

func (bw *BridgeWriter) Write(p []byte) (int, error) {
	msg := stripLogTimestamp(string(bytes.TrimSpace(p)))
	if msg == "" {
		return len(p), nil
	}

	component := bw.component
	if rest, ok := strings.CutPrefix(msg, "["); ok {
		if name, body, found := strings.Cut(rest, "] "); found && name != "" {
			component = canonicalComponent(strings.ToLower(name))
			msg = body
		}
	}
	Logger().Info(msg, slog.String("component", component))
	return len(p), nil
}

// stripLogTimestamp drops the "15:04:05 " or "15:04:05.000000 " prefix the
// log package adds when time flags are set.
func stripLogTimestamp(s string) string {
	if len(s) > 16 && s[2] == ':' && s[5] == ':' && s[8] == '.' && s[15] == ' ' {
		return s[16:]
	}
	if len(s) > 9 && s[2] == ':' && s[5] == ':' && s[8] == ' ' {
		return s[9:]
	}
	return s
}

func canonicalComponent(name string) string {
	switch name {
	case "tui", "tea", "bubbletea":
		return CompUI
	case "watch", "watcher", "fsnotify", "tail":
		return CompFollow
	case "mmap", "codec", "storage":
		return CompStore
	case "merge", "load":
		return CompLoader
	}
	return name
}
