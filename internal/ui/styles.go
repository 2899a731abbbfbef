package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the active color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

var currentTheme = ThemeDark

type palette struct {
	Bg, Surface, Border, Text, TextDim lipgloss.Color
	Accent, Purple, Cyan, Green        lipgloss.Color
	Yellow, Red, Comment               lipgloss.Color
}

// Tokyo Night
var darkPalette = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Tokyo Night Light
var lightPalette = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

// colors is the palette in use.
var colors palette

// themeMu guards colors and the styles below while the theme changes.
var themeMu sync.RWMutex

// InitTheme selects the palette: "light" or anything else for dark.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	if theme == string(ThemeLight) {
		currentTheme = ThemeLight
		colors = lightPalette
	} else {
		currentTheme = ThemeDark
		colors = darkPalette
	}
	initStyles()
}

// CurrentTheme returns the active theme.
func CurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme("dark")
}

var (
	promptStyle      lipgloss.Style
	rowStyle         lipgloss.Style
	selectedRowStyle lipgloss.Style
	markerStyle      lipgloss.Style
	matchStyle       lipgloss.Style
	selectedMatch    lipgloss.Style
	scoreStyle       lipgloss.Style
	statusStyle      lipgloss.Style
	filterOnStyle    lipgloss.Style
	previewStyle     lipgloss.Style
	previewKeyStyle  lipgloss.Style
	exitOKStyle      lipgloss.Style
	exitFailStyle    lipgloss.Style
	timeStyle        lipgloss.Style
	dimStyle         lipgloss.Style
)

func initStyles() {
	promptStyle = lipgloss.NewStyle().Foreground(colors.Accent).Bold(true)

	rowStyle = lipgloss.NewStyle().Foreground(colors.Text)
	selectedRowStyle = lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface).
		Bold(true)
	markerStyle = lipgloss.NewStyle().
		Foreground(colors.Purple).
		Background(colors.Surface).
		Bold(true)

	matchStyle = lipgloss.NewStyle().Foreground(colors.Yellow).Bold(true)
	selectedMatch = lipgloss.NewStyle().
		Foreground(colors.Yellow).
		Background(colors.Surface).
		Bold(true).
		Underline(true)
	scoreStyle = lipgloss.NewStyle().Foreground(colors.Comment)

	statusStyle = lipgloss.NewStyle().Foreground(colors.TextDim)
	filterOnStyle = lipgloss.NewStyle().Foreground(colors.Cyan).Bold(true)

	previewStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.Border).
		Padding(0, 1)
	previewKeyStyle = lipgloss.NewStyle().Foreground(colors.Accent)
	exitOKStyle = lipgloss.NewStyle().Foreground(colors.Green)
	exitFailStyle = lipgloss.NewStyle().Foreground(colors.Red)
	timeStyle = lipgloss.NewStyle().Foreground(colors.Purple)
	dimStyle = lipgloss.NewStyle().Foreground(colors.Comment).Italic(true)
}
