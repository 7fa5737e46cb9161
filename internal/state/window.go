package state

// Window is the bounded win history: persona ids the matcher favored over the
// most recent turns, oldest first.
type Window []string

// Push returns a new window with id appended and the oldest entries evicted so
// that at most m remain. The receiver is not modified.
func (w Window) Push(id string, m int) Window {
	if m <= 0 {
		return Window{}
	}
	out := make(Window, 0, m)
	start := 0
	if len(w)+1 > m {
		start = len(w) + 1 - m
	}
	if start < len(w) {
		out = append(out, w[start:]...)
	}
	return append(out, id)
}

// Count returns how many entries equal id.
func (w Window) Count(id string) int {
	n := 0
	for _, v := range w {
		if v == id {
			n++
		}
	}
	return n
}

// Last returns the newest entry, or "" for an empty window.
func (w Window) Last() string {
	if len(w) == 0 {
		return ""
	}
	return w[len(w)-1]
}
