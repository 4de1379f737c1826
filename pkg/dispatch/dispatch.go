// Package dispatch fans one frame out to every live session of a user.
package dispatch

import (
	"encoding/json"

	"github.com/mahaj/relay/pkg/model"
	"github.com/mahaj/relay/pkg/registry"
	"github.com/rs/zerolog"
)

type Dispatcher struct {
	reg *registry.Registry
	log zerolog.Logger
}

func New(reg *registry.Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: log.With().Str("component", "dispatch").Logger()}
}

// Push writes the frame to every live session of the user and returns the
// number of sessions reached. A stalled or closed session never blocks the
// others; it is torn down asynchronously and not counted.
func (d *Dispatcher) Push(userID string, frame *model.Frame) int {
	sessions := d.reg.SessionsFor(userID)
	if len(sessions) == 0 {
		return 0
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		d.log.Error().Err(err).Str("frame_type", string(frame.Type)).Msg("failed to marshal frame")
		return 0
	}

	reached := 0
	for _, s := range sessions {
		if err := s.Enqueue(payload); err != nil {
			d.log.Warn().
				Err(err).
				Str("user_id", userID).
				Str("session_id", s.ID).
				Msg("session not keeping up, tearing down")
			go d.reg.Unregister(s.ID)
			continue
		}
		reached++
	}
	return reached
}
