package webhook

import "time"

// SetClock replaces the clock used for deduplication.
func SetClock(h *Handler, now func() time.Time) {
	h.now = now
}
