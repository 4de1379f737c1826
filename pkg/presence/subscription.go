package presence

import (
	"sync"

	"github.com/mahaj/relay/pkg/model"
)

// Subscription is a per-subscriber single-slot mailbox. Only the most recent
// state matters, so a stale undelivered value is replaced rather than queued;
// memory stays bounded no matter how slow the subscriber is.
type Subscription struct {
	C chan model.PresenceState

	t      *Tracker
	userID string
	once   sync.Once
}

// Subscribe starts watching one user. The current state is delivered
// immediately; subsequent transitions arrive at-least-once, latest-wins.
func (t *Tracker) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		C:      make(chan model.PresenceState, 1),
		t:      t,
		userID: userID,
	}

	t.mu.Lock()
	if t.subs[userID] == nil {
		t.subs[userID] = make(map[*Subscription]struct{})
	}
	t.subs[userID][sub] = struct{}{}
	st := t.stateLocked(userID)
	t.mu.Unlock()

	sub.offer(st)
	return sub
}

// Cancel detaches the subscription. Safe to call more than once; C is never
// closed so late offers cannot panic a racing publisher.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.t.mu.Lock()
		delete(s.t.subs[s.userID], s)
		if len(s.t.subs[s.userID]) == 0 {
			delete(s.t.subs, s.userID)
		}
		s.t.mu.Unlock()
	})
}

func (s *Subscription) offer(st model.PresenceState) {
	for {
		select {
		case s.C <- st:
			return
		default:
		}
		// Slot occupied by a stale state; evict it and retry.
		select {
		case <-s.C:
		default:
		}
	}
}
