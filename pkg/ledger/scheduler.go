package ledger

import (
	"context"
	"log"
	"sync"
	"time"
)

// ExpiryScheduler arms one cancellable timer per issued token.
//
// When a timer fires the token is marked expired unless it already left
// the pending state. Redeeming a token cancels its timer so a stale timer
// never runs against a consumed token.
type ExpiryScheduler struct {
	mu     sync.Mutex
	ledger Ledger
	ttl    time.Duration
	timers map[string]*time.Timer
	closed bool
}

// NewExpiryScheduler creates a scheduler that expires tokens after ttl.
func NewExpiryScheduler(l Ledger, ttl time.Duration) *ExpiryScheduler {
	return &ExpiryScheduler{
		ledger: l,
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms the expiry timer for a freshly issued token.
func (s *ExpiryScheduler) Schedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(s.ttl, func() {
		s.fire(id)
	})
}

// Cancel disarms the timer for a token, typically because it was redeemed.
func (s *ExpiryScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Stop disarms all outstanding timers. Used on shutdown.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *ExpiryScheduler) fire(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.ledger.Expire(ctx, id); err != nil && err != ErrTokenNotFound {
		log.Printf("ledger: failed to expire token %s: %v", id, err)
	}
}
