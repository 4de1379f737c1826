// Package presence derives online/offline/typing state from session edges
// and explicit typing signals, and fans it out latest-wins to subscribers.
package presence

import (
	"sync"
	"time"

	"github.com/mahaj/relay/pkg/model"
	"github.com/rs/zerolog"
)

// DefaultTypingTTL bounds how long a typing signal stays valid when not
// superseded. Typing has no explicit "stopped" signal on the wire.
const DefaultTypingTTL = 6 * time.Second

// WatchFunc observes every presence transition for every user. Watchers run
// on a separate goroutine so slow observers (e.g. a Redis mirror) never sit
// inside the tracker's critical section.
type WatchFunc func(userID string, st model.PresenceState)

type typingMark struct {
	conversationID string
	at             time.Time
}

type Tracker struct {
	mu       sync.RWMutex
	online   map[string]bool
	typing   map[string]typingMark
	subs     map[string]map[*Subscription]struct{}
	watchers []WatchFunc

	typingTTL time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		online:    make(map[string]bool),
		typing:    make(map[string]typingMark),
		subs:      make(map[string]map[*Subscription]struct{}),
		typingTTL: DefaultTypingTTL,
		now:       time.Now,
		log:       log.With().Str("component", "presence").Logger(),
	}
}

// Watch registers a global observer for all transitions. Not safe to call
// concurrently with traffic; install watchers during wiring.
func (t *Tracker) Watch(fn WatchFunc) { t.watchers = append(t.watchers, fn) }

// OnSessionEdge consumes the registry's 0->1 / 1->0 transitions.
func (t *Tracker) OnSessionEdge(userID string, online bool) {
	t.mu.Lock()
	if online {
		t.online[userID] = true
	} else {
		delete(t.online, userID)
		delete(t.typing, userID) // typing requires a live session
	}
	st := t.stateLocked(userID)
	t.mu.Unlock()

	t.publish(userID, st)
}

// SetTyping records an advisory typing signal. Signals for offline users are
// dropped silently: typing requires a live session.
func (t *Tracker) SetTyping(userID, conversationID string) {
	t.mu.Lock()
	if !t.online[userID] {
		t.mu.Unlock()
		t.log.Debug().Str("user_id", userID).Msg("typing signal for offline user dropped")
		return
	}
	t.typing[userID] = typingMark{conversationID: conversationID, at: t.now()}
	st := t.stateLocked(userID)
	t.mu.Unlock()

	t.publish(userID, st)
}

// Status returns the user's current derived state. Typing decays back to
// online once the TTL passes.
func (t *Tracker) Status(userID string) model.PresenceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stateLocked(userID)
}

func (t *Tracker) stateLocked(userID string) model.PresenceState {
	if !t.online[userID] {
		return model.PresenceState{Status: model.StatusOffline}
	}
	if mark, ok := t.typing[userID]; ok && t.now().Sub(mark.at) <= t.typingTTL {
		return model.PresenceState{Status: model.StatusTyping, ConversationID: mark.conversationID}
	}
	return model.PresenceState{Status: model.StatusOnline}
}

func (t *Tracker) publish(userID string, st model.PresenceState) {
	t.mu.RLock()
	targets := make([]*Subscription, 0, len(t.subs[userID]))
	for sub := range t.subs[userID] {
		targets = append(targets, sub)
	}
	t.mu.RUnlock()

	for _, sub := range targets {
		sub.offer(st)
	}
	if len(t.watchers) > 0 {
		go func() {
			for _, fn := range t.watchers {
				fn(userID, st)
			}
		}()
	}
}
