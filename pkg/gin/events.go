package gin

import (
	"sync"
	"time"

	tips "github.com/attentionrush/tips"
)

// Event types streamed to session subscribers
const (
	EventQueued       = "queued"
	EventBatchSent    = "batch_sent"
	EventBatchSkipped = "batch_skipped"
	EventBatchFailed  = "batch_failed"
	EventTipSent      = "tip_sent"
	EventTipSkipped   = "tip_skipped"
	EventTipFailed    = "tip_failed"
)

// subscriberBuffer is how many events a slow subscriber may lag before
// events are dropped for it
const subscriberBuffer = 64

// Event is one payment notification for a session
type Event struct {
	Type    string    `json:"type"`
	Session string    `json:"session"`
	Casts   []string  `json:"casts,omitempty"`
	Address string    `json:"address,omitempty"`
	CallsID string    `json:"callsId,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Hub fans session events out to websocket subscribers
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel of the session's events and a cancel func
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if _, ok := h.subscribers[sessionID]; !ok {
		h.subscribers[sessionID] = make(map[chan Event]struct{})
	}
	h.subscribers[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subscribers[sessionID]; ok {
				if _, ok := subs[ch]; ok {
					delete(subs, ch)
					close(ch)
				}
				if len(subs) == 0 {
					delete(h.subscribers, sessionID)
				}
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event without blocking; full subscribers miss it
func (h *Hub) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[event.Session] {
		select {
		case ch <- event:
		default:
		}
	}
}

// CloseSession ends every subscription of a session
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[sessionID] {
		close(ch)
	}
	delete(h.subscribers, sessionID)
}

// Subscribers returns the number of subscriptions of a session
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sessionID])
}

// Attach publishes a session's batch and tip outcomes
func (h *Hub) Attach(s *tips.Session) {
	id := s.ID()
	s.OnBatch(func(o tips.BatchOutcome) {
		h.Publish(batchEvent(id, o))
	}).OnTip(func(o tips.TipOutcome) {
		h.Publish(tipEvent(id, o))
	})
}

func batchEvent(sessionID string, o tips.BatchOutcome) Event {
	casts := make([]string, len(o.Items))
	for i, item := range o.Items {
		casts[i] = item.ContentHash
	}

	event := Event{Session: sessionID, Casts: casts, CallsID: o.Result.CallsID, Reason: o.Result.Reason}
	switch {
	case o.Err != nil:
		event.Type = EventBatchFailed
		event.Error = o.Err.Error()
	case o.Result.Sent():
		event.Type = EventBatchSent
	case o.Result.Status == tips.TransferSkipped:
		event.Type = EventBatchSkipped
	default:
		event.Type = EventBatchFailed
	}
	return event
}

func tipEvent(sessionID string, o tips.TipOutcome) Event {
	event := Event{
		Session: sessionID,
		Casts:   []string{o.Item.Hash},
		Address: o.Address,
		CallsID: o.Result.CallsID,
		Reason:  o.Result.Reason,
	}
	switch {
	case o.Err != nil:
		event.Type = EventTipFailed
		event.Error = o.Err.Error()
	case o.Result.Sent():
		event.Type = EventTipSent
	case o.Result.Status == tips.TransferSkipped:
		event.Type = EventTipSkipped
	default:
		event.Type = EventTipFailed
	}
	return event
}
