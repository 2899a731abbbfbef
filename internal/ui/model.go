// Package ui runs the interactive search session.
package ui

import (
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/index"
	"github.com/asheshgoplani/osh/internal/logging"
	"github.com/asheshgoplani/osh/internal/pool"
)

var uiLog = logging.ForComponent(logging.CompUI)

// tickInterval is how often newly loaded events are pulled into the pool.
const tickInterval = 100 * time.Millisecond

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Options configures a session.
type Options struct {
	// Query pre-fills the input box.
	Query string
	// Filters start active.
	Filters index.FilterSet
	// Scope is what the session and folder filters compare against.
	Scope index.Scope
	// ShowScore shows match scores next to each row.
	ShowScore bool
	// Themes, when set, live-switches the palette with the OS appearance.
	Themes *ThemeWatcher
}

type outcome int

const (
	editing outcome = iota
	accepted
	cancelled
)

type tickMsg time.Time

// Model is the search session. It owns the pool; the collector is the only
// thing it shares with the loader.
type Model struct {
	input     textinput.Model
	collector *pool.Collector
	pool      pool.Pool
	idx       *index.Index

	filters   index.FilterSet
	scope     index.Scope
	showScore bool
	themes    *ThemeWatcher

	// selected is the highlighted rank; offset is the lowest rank on screen.
	selected int
	offset   int

	width  int
	height int

	state  outcome
	result event.Event
}

// New creates a session fed by collector.
func New(collector *pool.Collector, opts Options) *Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.Placeholder = "search history"
	ti.SetValue(opts.Query)
	ti.Focus()

	m := &Model{
		input:     ti,
		collector: collector,
		filters:   opts.Filters,
		scope:     opts.Scope,
		showScore: opts.ShowScore,
		themes:    opts.Themes,
		width:     defaultWidth,
		height:    defaultHeight,
	}
	m.rebuild()
	return m
}

// Init starts the ingestion tick.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick(), m.themes.wait())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
		m.scroll()
		return m, nil

	case tickMsg:
		return m, m.ingest()

	case themeChangedMsg:
		if msg.dark {
			InitTheme(string(ThemeDark))
		} else {
			InitTheme(string(ThemeLight))
		}
		m.input.PromptStyle = promptStyle
		uiLog.Info("theme_changed", slog.String("theme", string(CurrentTheme())))
		return m, m.themes.wait()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ingest drains the collector and keeps ticking until the loader is done
// and nothing is left.
func (m *Model) ingest() tea.Cmd {
	if m.collector == nil {
		return nil
	}
	done := m.collector.Done()
	if m.pool.Append(m.collector.Take()) {
		m.refresh()
	}
	if done {
		uiLog.Debug("ingest_complete", slog.Int("pool", m.pool.Len()))
		return nil
	}
	return tick()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if m.idx.Len() == 0 {
			return m, nil
		}
		m.result = m.pool.At(m.idx.Get(m.selected))
		m.state = accepted
		return m, tea.Quit

	case "esc", "ctrl+c", "ctrl+d":
		m.state = cancelled
		return m, tea.Quit

	// rank 0 sits at the bottom, so up walks towards older results
	case "up", "ctrl+p":
		m.selected = min(m.selected+1, max(m.idx.Len()-1, 0))
		m.scroll()
		return m, nil

	case "down", "ctrl+n":
		m.selected = max(m.selected-1, 0)
		m.scroll()
		return m, nil

	case "ctrl+u":
		return m, m.toggle(index.Duplicates)
	case "ctrl+s":
		return m, m.toggle(index.SessionID)
	case "ctrl+f":
		return m, m.toggle(index.Folder)
	case "ctrl+e":
		return m, m.toggle(index.ExitCodeSuccess)

	case "ctrl+x":
		m.showScore = !m.showScore
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.rebuild()
	}
	return m, cmd
}

func (m *Model) toggle(f index.Filter) tea.Cmd {
	m.filters = m.filters.Toggle(f)
	uiLog.Debug("filter_toggled", slog.String("filter", f.String()), slog.Bool("on", m.filters.Has(f)))
	m.rebuild()
	return nil
}

// rebuild re-ranks after the query or filters changed and selects the best
// match.
func (m *Model) rebuild() {
	m.idx = index.Build(m.pool.Events(), m.input.Value(), m.filters, m.scope)
	m.selected = 0
	m.offset = 0
}

// refresh re-ranks after the pool grew, keeping the selection in range.
func (m *Model) refresh() {
	m.idx = index.Build(m.pool.Events(), m.input.Value(), m.filters, m.scope)
	m.selected = min(m.selected, max(m.idx.Len()-1, 0))
	m.scroll()
}

// scroll keeps the selection inside the list viewport.
func (m *Model) scroll() {
	rows := m.listHeight()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+rows {
		m.offset = m.selected - rows + 1
	}
	m.offset = max(m.offset, 0)
}

// Result reports the accepted event. ok is false when the session was
// cancelled or is still running.
func (m *Model) Result() (e event.Event, ok bool) {
	return m.result, m.state == accepted
}

// Cancelled reports whether the session ended without a selection.
func (m *Model) Cancelled() bool { return m.state == cancelled }

// Query is the current input text.
func (m *Model) Query() string { return m.input.Value() }

// Filters is the active filter set.
func (m *Model) Filters() index.FilterSet { return m.filters }

// Visible is the number of ranked rows.
func (m *Model) Visible() int { return m.idx.Len() }

// Total is the pool size.
func (m *Model) Total() int { return m.pool.Len() }

// Selected is the highlighted rank.
func (m *Model) Selected() int { return m.selected }
