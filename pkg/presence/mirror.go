package presence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mahaj/relay/pkg/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	onlineSetKey    = "relay:online"
	presenceChannel = "relay:presence"
	mirrorTimeout   = 2 * time.Second
)

// RedisMirror replicates presence transitions into Redis: a set of online
// users plus a pub/sub channel, so sibling relay instances and HTTP-side
// consumers can observe presence without talking to this process. Mirror
// failures are logged and never affect in-process delivery.
type RedisMirror struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewRedisMirror(rdb *redis.Client, log zerolog.Logger) *RedisMirror {
	return &RedisMirror{rdb: rdb, log: log.With().Str("component", "presence_mirror").Logger()}
}

type mirrorEvent struct {
	UserID string              `json:"user_id"`
	State  model.PresenceState `json:"state"`
}

// OnPresence implements WatchFunc.
func (m *RedisMirror) OnPresence(userID string, st model.PresenceState) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	var err error
	if st.Online() {
		err = m.rdb.SAdd(ctx, onlineSetKey, userID).Err()
	} else {
		err = m.rdb.SRem(ctx, onlineSetKey, userID).Err()
	}
	if err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("failed to mirror presence set")
	}

	payload, err := json.Marshal(mirrorEvent{UserID: userID, State: st})
	if err != nil {
		return
	}
	if err := m.rdb.Publish(ctx, presenceChannel, payload).Err(); err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("failed to publish presence event")
	}
}

// Online lists users currently marked online in the mirror.
func (m *RedisMirror) Online(ctx context.Context) ([]string, error) {
	return m.rdb.SMembers(ctx, onlineSetKey).Result()
}
