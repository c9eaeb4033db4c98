// Package auditws fans the audit stream out to websocket subscribers.
package auditws

import (
	"sync"

	"go.uber.org/zap"

	"tradecore/internal/auditlog"
)

// Hub broadcasts audit records to every subscriber. Slow subscribers are
// skipped, not waited on: the live stream is best-effort and clients recover
// missed ids from the journal.
type Hub struct {
	log *zap.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan auditlog.Record
	closed bool
}

// NewHub builds an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:  log,
		subs: make(map[int]chan auditlog.Record),
	}
}

// Subscribe registers a new subscriber with the given channel buffer and
// returns the stream plus an unsubscribe func. Unsubscribe closes the stream.
func (h *Hub) Subscribe(buffer int) (<-chan auditlog.Record, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan auditlog.Record, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	unsub := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, unsub
}

// Broadcast delivers one record to every subscriber that has buffer space.
func (h *Hub) Broadcast(record auditlog.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subs {
		select {
		case sub <- record:
		default:
			h.log.Debug("audit subscriber lagging, record skipped",
				zap.Int("subscriber", id),
				zap.Uint64("id", record.ID),
			)
		}
	}
}

// Subscribers reports the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber stream. Later Broadcasts are no-ops and
// later Subscribes return a closed stream.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub)
	}
}
