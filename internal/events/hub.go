// Package events fans committed contributions out to live subscribers.
package events

import (
	"sync"

	"tokenart/internal/domain"
)

const defaultBuffer = 16

// Hub delivers contribution events to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

// Subscription receives events for one target, or for every target when its
// filter is empty.
type Subscription struct {
	hub     *Hub
	target  domain.TargetID
	ch      chan domain.ContributionEvent
	once    sync.Once
	mu      sync.Mutex
	dropped uint64
}

// NewHub returns a Hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber for target. A nil target subscribes to all.
func (h *Hub) Subscribe(target domain.TargetID) *Subscription {
	s := &Subscription{
		hub:    h,
		target: append(domain.TargetID(nil), target...),
		ch:     make(chan domain.ContributionEvent, h.buffer),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish implements domain.EventPublisher.
func (h *Hub) Publish(ev domain.ContributionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.target != nil && !s.target.Equal(ev.Contribution.Target) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// CloseAll ends every subscription, which disconnects live streams.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		s.Close()
	}
}

// Events returns the channel of delivered events. It is closed by Close.
func (s *Subscription) Events() <-chan domain.ContributionEvent {
	return s.ch
}

// Dropped returns how many events were skipped because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

var _ domain.EventPublisher = (*Hub)(nil)
