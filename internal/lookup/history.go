package lookup

import "time"

// State is where an item sits in its lifecycle.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateRetrying   State = "retrying"
	StateCompleted  State = "completed"
	StateNotFound   State = "not_found"
	StateFailed     State = "failed"
)

// Terminal reports whether the item has resolved.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateNotFound || s == StateFailed
}

// ItemStatus is the observable state of one item, live or recently finished.
type ItemStatus struct {
	ItemInfo
	State      State      `json:"state"`
	Result     *Result    `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// history keeps the last size finished items, evicting the oldest first.
type history struct {
	size    int
	order   []string
	entries map[string]ItemStatus
}

func newHistory(size int) *history {
	return &history{
		size:    size,
		order:   make([]string, 0, size),
		entries: make(map[string]ItemStatus, size),
	}
}

func (h *history) add(st ItemStatus) {
	if _, ok := h.entries[st.ID]; !ok {
		if len(h.order) == h.size {
			delete(h.entries, h.order[0])
			h.order = h.order[1:]
		}
		h.order = append(h.order, st.ID)
	}
	h.entries[st.ID] = st
}

func (h *history) get(itemID string) (ItemStatus, bool) {
	st, ok := h.entries[itemID]
	return st, ok
}

// finishedStatus builds the terminal status of an item.
func finishedStatus(it *item, result Result, err error, at time.Time) ItemStatus {
	st := ItemStatus{ItemInfo: it.info(), FinishedAt: &at}
	switch {
	case err != nil:
		st.State = StateFailed
		st.Error = err.Error()
	case result.NotFound:
		st.State = StateNotFound
	default:
		st.State = StateCompleted
		st.Result = &result
	}
	return st
}
