package notify

import (
	"sync"
	"time"

	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/domain"
)

const (
	// subscriberBuffer bounds the per-subscriber event queue; a
	// subscriber that falls this far behind loses status events
	subscriberBuffer = 16

	// staleAfter is how long a binding with no subscriber survives
	// before the sweeper reclaims it
	staleAfter = 10 * time.Minute
)

// Subscription is one client's view of a submission's event stream.
// The channel is closed after the terminal event has been delivered.
type Subscription struct {
	submissionID string
	ch           chan domain.Event
}

// Events returns the receive side of the subscription
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

type binding struct {
	lastStatus string
	terminal   *domain.Event
	subs       map[*Subscription]struct{}
	createdAt  time.Time
}

// Hub is the per-submission notification channel registry. It retains
// the most recent status and the single terminal event per submission
// so a client connecting after publication still learns the outcome.
// Publishing never blocks on subscriber presence or speed.
type Hub struct {
	mu       sync.Mutex
	bindings map[string]*binding
	logger   primary.Logger
	now      func() time.Time
}

// NewHub creates an empty hub
func NewHub(logger primary.Logger) *Hub {
	return &Hub{
		bindings: make(map[string]*binding),
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates the binding for a submission so events published
// before any client connects are retained
func (h *Hub) Register(submissionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureBinding(submissionID)
}

// Subscribe attaches a client to a submission's stream. The retained
// status and terminal event, when present, are replayed immediately.
func (h *Hub) Subscribe(submissionID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.ensureBinding(submissionID)
	sub := &Subscription{
		submissionID: submissionID,
		ch:           make(chan domain.Event, subscriberBuffer),
	}

	if b.lastStatus != "" {
		sub.ch <- domain.StatusEvent(submissionID, b.lastStatus)
	}
	if b.terminal != nil {
		sub.ch <- *b.terminal
		close(sub.ch)
		return sub
	}

	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a client; the submission's binding and any
// in-flight grading are unaffected
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.bindings[sub.submissionID]
	if !ok {
		return
	}
	if _, attached := b.subs[sub]; attached {
		delete(b.subs, sub)
		close(sub.ch)
	}
	// terminal already delivered and nobody left listening
	if b.terminal != nil && len(b.subs) == 0 {
		delete(h.bindings, sub.submissionID)
	}
}

// Publish delivers an event to current subscribers. Status events are
// retained as the binding's latest status; a terminal event is
// retained permanently (until sweep) and ends every subscription.
// Publish on an already-terminal binding is ignored.
func (h *Hub) Publish(submissionID string, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b := h.ensureBinding(submissionID)
	if b.terminal != nil {
		return
	}

	if event.Type == domain.EventStatus {
		b.lastStatus = event.Message
	}

	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			// slow subscriber, drop rather than stall grading
		}
	}

	if event.IsTerminal() {
		retained := event
		b.terminal = &retained
		for sub := range b.subs {
			close(sub.ch)
			delete(b.subs, sub)
		}
	}
}

// StartSweeper reclaims stale bindings until stop is closed
func (h *Hub) StartSweeper(stop <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if removed := h.sweep(); removed > 0 {
					h.logger.Debug("Swept stale notification bindings", "count", removed)
				}
			}
		}
	}()
}

// sweep removes idle bindings: terminal ones right away, non-terminal
// ones once staleAfter has passed. A binding with a subscriber is
// never reclaimed, no matter how long grading takes; its stream stays
// open until the terminal event arrives or the client leaves. A
// reclaimed non-terminal binding is re-created by the next Publish, so
// the terminal event is still retained for late subscribers.
func (h *Hub) sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	removed := 0
	for id, b := range h.bindings {
		if len(b.subs) > 0 {
			continue
		}
		if b.terminal != nil || now.Sub(b.createdAt) > staleAfter {
			delete(h.bindings, id)
			removed++
		}
	}
	return removed
}

func (h *Hub) ensureBinding(submissionID string) *binding {
	b, ok := h.bindings[submissionID]
	if !ok {
		b = &binding{
			subs:      make(map[*Subscription]struct{}),
			createdAt: h.now(),
		}
		h.bindings[submissionID] = b
	}
	return b
}
