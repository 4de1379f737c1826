// Package registry maps authenticated user identity to live connections.
// It is the single source of truth for "is this user online": the 0->1 and
// 1->0 session-count transitions are the only presence edges it emits.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mahaj/relay/pkg/model"
	"github.com/rs/zerolog"
)

const outboundQueueSize = 256

// EdgeFunc is invoked outside the registry lock whenever a user transitions
// between zero and one live sessions.
type EdgeFunc func(userID string, online bool)

type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Session // user id -> session id -> session
	byID   map[string]*Session
	byConn map[Conn]*Session

	// Edge computation and callback delivery run under the user's edge
	// lock, so two racing transitions for one user can never apply their
	// callbacks out of order (a stale offline edge must not land after a
	// newer online edge).
	edgeLockMu sync.Mutex
	edgeLocks  map[string]*sync.Mutex

	edge EdgeFunc
	log  zerolog.Logger
}

func New(log zerolog.Logger) *Registry {
	return &Registry{
		byUser:    make(map[string]map[string]*Session),
		byID:      make(map[string]*Session),
		byConn:    make(map[Conn]*Session),
		edgeLocks: make(map[string]*sync.Mutex),
		log:       log.With().Str("component", "registry").Logger(),
	}
}

func (r *Registry) edgeLock(userID string) *sync.Mutex {
	r.edgeLockMu.Lock()
	defer r.edgeLockMu.Unlock()
	lock, ok := r.edgeLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.edgeLocks[userID] = lock
	}
	return lock
}

// OnEdge installs the presence edge callback. Must be set before traffic;
// the router depends on the registry, so the hook is wired after construction.
func (r *Registry) OnEdge(fn EdgeFunc) { r.edge = fn }

// Register creates a session for an authenticated connection. Registering
// the same connection handle twice fails with ErrDuplicateSession.
func (r *Registry) Register(userID string, conn Conn) (*Session, error) {
	s := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		out:         make(chan []byte, outboundQueueSize),
		done:        make(chan struct{}),
	}
	s.Touch()

	lock := r.edgeLock(userID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if _, dup := r.byConn[conn]; dup {
		r.mu.Unlock()
		return nil, model.ErrDuplicateSession
	}
	wentOnline := len(r.byUser[userID]) == 0
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]*Session)
	}
	r.byUser[userID][s.ID] = s
	r.byID[s.ID] = s
	r.byConn[conn] = s
	r.mu.Unlock()

	r.log.Debug().Str("user_id", userID).Str("session_id", s.ID).Msg("session registered")

	if wentOnline && r.edge != nil {
		r.edge(userID, true)
	}
	return s, nil
}

// Unregister tears down a session. Unknown session ids are a no-op, which
// absorbs the race between a heartbeat timeout and an explicit disconnect.
func (r *Registry) Unregister(sessionID string) {
	r.mu.RLock()
	s, ok := r.byID[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	lock := r.edgeLock(s.UserID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	// Re-check: a concurrent teardown may have won the edge lock first.
	s, ok = r.byID[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byID, sessionID)
	delete(r.byConn, s.conn)
	delete(r.byUser[s.UserID], sessionID)
	wentOffline := len(r.byUser[s.UserID]) == 0
	if wentOffline {
		delete(r.byUser, s.UserID)
	}
	r.mu.Unlock()

	s.close()
	r.log.Debug().Str("user_id", s.UserID).Str("session_id", sessionID).Msg("session unregistered")

	if wentOffline && r.edge != nil {
		r.edge(s.UserID, false)
	}
}

// SessionsFor returns the user's live sessions; empty means offline.
func (r *Registry) SessionsFor(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[userID]
	out := make([]*Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// IsOnline reports whether the user has at least one live session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Touch refreshes heartbeat liveness for a session. Unknown ids are a no-op.
func (r *Registry) Touch(sessionID string) {
	r.mu.RLock()
	s := r.byID[sessionID]
	r.mu.RUnlock()
	if s != nil {
		s.Touch()
	}
}

// RunReaper force-unregisters sessions without a heartbeat for the given
// window, sweeping every interval. Blocks until ctx is cancelled.
func (r *Registry) RunReaper(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-window)
			r.mu.RLock()
			var expired []string
			for id, s := range r.byID {
				if s.LastSeen().Before(cutoff) {
					expired = append(expired, id)
				}
			}
			r.mu.RUnlock()
			for _, id := range expired {
				r.log.Info().Str("session_id", id).Msg("reaping idle session")
				r.Unregister(id)
			}
		}
	}
}
