package presence

import (
	"testing"
	"time"

	"github.com/mahaj/relay/pkg/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) model.PresenceState {
	t.Helper()
	select {
	case st := <-sub.C:
		return st
	case <-time.After(time.Second):
		t.Fatal("no presence state delivered")
		return model.PresenceState{}
	}
}

func TestStatusFollowsEdges(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	assert.Equal(t, model.StatusOffline, tr.Status("alice").Status)

	tr.OnSessionEdge("alice", true)
	assert.Equal(t, model.StatusOnline, tr.Status("alice").Status)

	tr.OnSessionEdge("alice", false)
	assert.Equal(t, model.StatusOffline, tr.Status("alice").Status)
}

func TestTypingRequiresLiveSession(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	// Offline typing signals are dropped, not an error.
	tr.SetTyping("alice", "c1")
	assert.Equal(t, model.StatusOffline, tr.Status("alice").Status)

	tr.OnSessionEdge("alice", true)
	tr.SetTyping("alice", "c1")
	st := tr.Status("alice")
	assert.Equal(t, model.StatusTyping, st.Status)
	assert.Equal(t, "c1", st.ConversationID)

	// Going offline clears the typing mark.
	tr.OnSessionEdge("alice", false)
	assert.Equal(t, model.StatusOffline, tr.Status("alice").Status)
}

func TestTypingDecaysAfterTTL(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	now := time.Now()
	tr.now = func() time.Time { return now }

	tr.OnSessionEdge("alice", true)
	tr.SetTyping("alice", "c1")
	assert.Equal(t, model.StatusTyping, tr.Status("alice").Status)

	now = now.Add(tr.typingTTL + time.Second)
	assert.Equal(t, model.StatusOnline, tr.Status("alice").Status)
}

func TestSubscribeDeliversCurrentThenLatest(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.OnSessionEdge("alice", true)

	sub := tr.Subscribe("alice")
	defer sub.Cancel()
	assert.Equal(t, model.StatusOnline, recv(t, sub).Status)

	tr.OnSessionEdge("alice", false)
	assert.Equal(t, model.StatusOffline, recv(t, sub).Status)
}

func TestSlowSubscriberSeesLatestOnly(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	sub := tr.Subscribe("alice")
	defer sub.Cancel()

	// Nothing drained: the single-slot mailbox keeps only the newest state.
	tr.OnSessionEdge("alice", true)
	tr.SetTyping("alice", "c1")
	tr.OnSessionEdge("alice", false)

	assert.Equal(t, model.StatusOffline, recv(t, sub).Status)
	select {
	case st := <-sub.C:
		t.Fatalf("unexpected queued state %v", st)
	default:
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	sub := tr.Subscribe("alice")
	recv(t, sub) // initial offline
	sub.Cancel()
	sub.Cancel() // idempotent

	tr.OnSessionEdge("alice", true)
	select {
	case <-sub.C:
		t.Fatal("delivery after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchersObserveTransitions(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	type event struct {
		userID string
		st     model.PresenceState
	}
	events := make(chan event, 8)
	tr.Watch(func(userID string, st model.PresenceState) {
		events <- event{userID, st}
	})

	tr.OnSessionEdge("bob", true)

	select {
	case ev := <-events:
		require.Equal(t, "bob", ev.userID)
		assert.Equal(t, model.StatusOnline, ev.st.Status)
	case <-time.After(time.Second):
		t.Fatal("watcher never invoked")
	}
}
