package broadcast

// dedupWindow remembers the last N distinct message IDs: a bounded FIFO for
// eviction order plus a membership set for O(1) lookup. The window is
// count-based, not time-based. Callers provide synchronization.
type dedupWindow struct {
	seen  map[string]struct{}
	order []string
	head  int
	count int
}

func newDedupWindow(limit int) *dedupWindow {
	if limit < 1 {
		limit = 1
	}
	return &dedupWindow{
		seen:  make(map[string]struct{}, limit),
		order: make([]string, limit),
	}
}

// observe records an ID and reports whether it was already present. When the
// window is full, the oldest remembered ID is evicted from both the FIFO and
// the set.
func (w *dedupWindow) observe(id string) bool {
	if _, ok := w.seen[id]; ok {
		return true
	}

	if w.count == len(w.order) {
		oldest := w.order[w.head]
		delete(w.seen, oldest)
		w.head = (w.head + 1) % len(w.order)
		w.count--
	}

	w.order[(w.head+w.count)%len(w.order)] = id
	w.count++
	w.seen[id] = struct{}{}
	return false
}
