package index

import (
	"fmt"
	"strings"

	"github.com/asheshgoplani/osh/internal/event"
)

// Filter is one toggleable predicate of the live index.
type Filter uint8

const (
	// Duplicates hides older runs of a command already shown.
	Duplicates Filter = iota
	// SessionID shows only the invoking shell session.
	SessionID
	// Folder shows only commands run in the current directory.
	Folder
	// ExitCodeSuccess shows only commands that exited 0.
	ExitCodeSuccess

	numFilters
)

var filterNames = [numFilters]string{"duplicates", "session_id", "folder", "exit_code_success"}
var filterLetters = [numFilters]string{"U", "S", "F", "E"}

// AllFilters lists every filter in display order.
func AllFilters() []Filter {
	return []Filter{Duplicates, SessionID, Folder, ExitCodeSuccess}
}

func (f Filter) String() string {
	if f < numFilters {
		return filterNames[f]
	}
	return fmt.Sprintf("Filter(%d)", uint8(f))
}

// Letter is the one-letter tag shown in the status line.
func (f Filter) Letter() string {
	if f < numFilters {
		return filterLetters[f]
	}
	return "?"
}

// ParseFilter accepts a filter name, case-insensitively, with - or _.
func ParseFilter(s string) (Filter, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range filterNames {
		if norm == name {
			return Filter(i), nil
		}
	}
	switch norm {
	case "unique", "u":
		return Duplicates, nil
	case "session", "s":
		return SessionID, nil
	case "cwd", "f":
		return Folder, nil
	case "success", "e":
		return ExitCodeSuccess, nil
	}
	return 0, fmt.Errorf("unknown filter %q (want one of %s)", s, strings.Join(filterNames[:], ", "))
}

// FilterSet is a set of active filters.
type FilterSet uint8

// NewFilterSet returns a set holding fs.
func NewFilterSet(fs ...Filter) FilterSet {
	var s FilterSet
	for _, f := range fs {
		s = s.With(f)
	}
	return s
}

// ParseFilterSet parses filter names.
func ParseFilterSet(names []string) (FilterSet, error) {
	var s FilterSet
	for _, n := range names {
		f, err := ParseFilter(n)
		if err != nil {
			return 0, err
		}
		s = s.With(f)
	}
	return s, nil
}

func (s FilterSet) Has(f Filter) bool          { return s&(1<<f) != 0 }
func (s FilterSet) With(f Filter) FilterSet    { return s | 1<<f }
func (s FilterSet) Without(f Filter) FilterSet { return s &^ (1 << f) }
func (s FilterSet) Empty() bool                { return s == 0 }

// Toggle flips f.
func (s FilterSet) Toggle(f Filter) FilterSet {
	return s ^ 1<<f
}

// Filters lists the members in display order.
func (s FilterSet) Filters() []Filter {
	var out []Filter
	for _, f := range AllFilters() {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// String renders the status tag, e.g. "U | S".
func (s FilterSet) String() string {
	var parts []string
	for _, f := range s.Filters() {
		parts = append(parts, f.Letter())
	}
	return strings.Join(parts, " | ")
}

// Scope is the context predicates compare against: the invoking shell
// session and working directory.
type Scope struct {
	SessionID string
	Folder    string
}

// admits evaluates the per-event predicates of s. Duplicates depends on the
// other entries and is applied separately. A predicate whose scope value is
// empty admits everything.
func (s FilterSet) admits(e event.Event, scope Scope) bool {
	if s.Has(SessionID) && scope.SessionID != "" && e.Session != scope.SessionID {
		return false
	}
	if s.Has(Folder) && scope.Folder != "" && e.Folder != scope.Folder {
		return false
	}
	if s.Has(ExitCodeSuccess) && !e.Succeeded() {
		return false
	}
	return true
}
