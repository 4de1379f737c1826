package model

// PresenceStatus is a user's visibility state.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
	StatusTyping  PresenceStatus = "typing"
)

// PresenceState is the full derived state for one user. ConversationID is
// set only while Status is StatusTyping.
type PresenceState struct {
	Status         PresenceStatus `json:"status"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

// Online reports whether the state counts as online. Typing implies a live
// session, so it counts.
func (s PresenceState) Online() bool {
	return s.Status == StatusOnline || s.Status == StatusTyping
}
