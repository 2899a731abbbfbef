package event

// Filter decides whether a record survives loading. A nil Filter keeps
// everything.
type Filter func(Event) bool

// Keep applies f, treating nil as accept-all.
func (f Filter) Keep(e Event) bool {
	return f == nil || f(e)
}

// BySession keeps events from one shell session. An empty id disables the
// filter.
func BySession(id string) Filter {
	if id == "" {
		return nil
	}
	return func(e Event) bool { return e.Session == id }
}

// ByFolder keeps events executed in folder. An empty folder disables the
// filter.
func ByFolder(folder string) Filter {
	if folder == "" {
		return nil
	}
	return func(e Event) bool { return e.Folder == folder }
}

// All combines filters with AND. Nil entries are skipped.
func All(filters ...Filter) Filter {
	var active []Filter
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(e Event) bool {
		for _, f := range active {
			if !f(e) {
				return false
			}
		}
		return true
	}
}
