package model

import (
	"sort"
	"time"
)

// Message is a persisted chat message. Immutable after creation except for
// SeenBy, which only grows.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	SeenBy         []string  `json:"seen_by,omitempty"`
}

// SeenByUser reports whether userID is in the message's seen set.
func (m *Message) SeenByUser(userID string) bool {
	for _, u := range m.SeenBy {
		if u == userID {
			return true
		}
	}
	return false
}

// Before orders messages canonically: by creation time, ties broken by ID.
// This single ordering is used both for delivery and for history pagination.
func (m *Message) Before(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// SortCanonical sorts messages oldest first in the canonical order.
func SortCanonical(msgs []*Message) {
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Before(msgs[j]) })
}
