package dashboard

import (
	"sync"
	"time"
)

// ProgressUpdate is one export status snapshot published by the pipeline.
type ProgressUpdate struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Progress  float64   `json:"progress"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Hub fans export progress out to SSE subscribers and keeps the latest
// update per session for the /api/exports listing.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan ProgressUpdate]struct{}
	latest map[string]ProgressUpdate
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[chan ProgressUpdate]struct{}),
		latest: make(map[string]ProgressUpdate),
	}
}

// Publish records the update and delivers it to every subscriber. Slow
// subscribers drop updates rather than block the exporter.
func (h *Hub) Publish(u ProgressUpdate) {
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest[u.SessionID] = u
	for ch := range h.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Subscribe returns a channel of future updates and a cancel func that
// must be called when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan ProgressUpdate, func()) {
	ch := make(chan ProgressUpdate, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the latest update for every session seen so far.
func (h *Hub) Snapshot() []ProgressUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ProgressUpdate, 0, len(h.latest))
	for _, u := range h.latest {
		out = append(out, u)
	}
	return out
}
