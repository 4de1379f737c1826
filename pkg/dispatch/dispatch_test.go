package dispatch_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mahaj/relay/pkg/dispatch"
	"github.com/mahaj/relay/pkg/model"
	"github.com/mahaj/relay/pkg/registry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{ id int }

func (*nopConn) Close() error { return nil }

func TestPushOfflineUserReachesNobody(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	d := dispatch.New(reg, zerolog.Nop())

	assert.Equal(t, 0, d.Push("ghost", model.UnreadFrame("c1", 1)))
}

func TestPushFansOutToAllSessions(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	d := dispatch.New(reg, zerolog.Nop())

	s1, err := reg.Register("alice", &nopConn{id: 1})
	require.NoError(t, err)
	s2, err := reg.Register("alice", &nopConn{id: 2})
	require.NoError(t, err)

	frame := model.MessagesReadFrame("c1", "bob")
	assert.Equal(t, 2, d.Push("alice", frame))

	for _, s := range []*registry.Session{s1, s2} {
		select {
		case payload := <-s.Outbound():
			var got model.Frame
			require.NoError(t, json.Unmarshal(payload, &got))
			assert.Equal(t, model.FrameMessagesRead, got.Type)
			assert.Equal(t, "c1", got.ConversationID)
			assert.Equal(t, "bob", got.ReaderID)
		case <-time.After(time.Second):
			t.Fatal("session never received the frame")
		}
	}
}

func TestStalledSessionDoesNotBlockOthers(t *testing.T) {
	reg := registry.New(zerolog.Nop())
	d := dispatch.New(reg, zerolog.Nop())

	stalled, err := reg.Register("alice", &nopConn{id: 1})
	require.NoError(t, err)
	healthy, err := reg.Register("alice", &nopConn{id: 2})
	require.NoError(t, err)

	// Nobody drains this session; saturate its outbound queue.
	for stalled.Enqueue([]byte("{}")) == nil {
	}

	reached := d.Push("alice", model.UnreadFrame("c1", 1))
	assert.Equal(t, 1, reached)

	select {
	case <-healthy.Outbound():
	case <-time.After(time.Second):
		t.Fatal("healthy session starved by stalled sibling")
	}

	// The stalled session is torn down asynchronously.
	assert.Eventually(t, func() bool {
		return len(reg.SessionsFor("alice")) == 1
	}, time.Second, 10*time.Millisecond)
	select {
	case <-stalled.Done():
	case <-time.After(time.Second):
		t.Fatal("stalled session not closed")
	}
}
