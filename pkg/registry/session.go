package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is the transport handle a session owns. The registry only ever needs
// to tear it down; reads and writes stay in the gateway.
type Conn interface {
	Close() error
}

var (
	// ErrSessionClosed is returned when enqueueing to a torn-down session.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionStalled is returned when a session's outbound queue is full.
	// The caller is expected to tear the session down rather than block.
	ErrSessionStalled = errors.New("session outbound queue full")
)

// Session is one authenticated live connection for a user.
type Session struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	conn     Conn
	out      chan []byte
	done     chan struct{}
	once     sync.Once
	lastSeen atomic.Int64 // unix nanos
}

// Enqueue queues an already-marshaled frame for the write pump. It never
// blocks: a closed session fails with ErrSessionClosed, a full queue with
// ErrSessionStalled.
func (s *Session) Enqueue(payload []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- payload:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrSessionStalled
	}
}

// Outbound is drained by the gateway's write pump.
func (s *Session) Outbound() <-chan []byte { return s.out }

// Done is closed when the session is unregistered.
func (s *Session) Done() <-chan struct{} { return s.done }

// Touch records heartbeat liveness.
func (s *Session) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// LastSeen returns the time of the most recent heartbeat or registration.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
