package model

import "time"

// FrameType discriminates wire frames in both directions.
type FrameType string

// Client to relay.
const (
	FrameSend        FrameType = "send"
	FrameReadReceipt FrameType = "read_receipt"
	FrameTyping      FrameType = "typing"
	FrameStatusQuery FrameType = "status_query"
	FrameHistory     FrameType = "history"
	FrameHeartbeat   FrameType = "heartbeat"
)

// Relay to client.
const (
	FrameMessageReceived FrameType = "message_received"
	FrameSendAck         FrameType = "send_ack"
	FrameUnreadCount     FrameType = "unread_count"
	FramePresence        FrameType = "presence"
	FrameMessagesRead    FrameType = "messages_read"
	FrameStatusSnapshot  FrameType = "status_snapshot"
	FrameHistoryResult   FrameType = "history_result"
	FrameError           FrameType = "error"
)

// PresenceEntry is one row of a status snapshot.
type PresenceEntry struct {
	UserID string         `json:"user_id"`
	Status PresenceStatus `json:"status"`
}

// Frame is the single wire envelope. Fields are populated per Type; unused
// fields are omitted on the wire.
type Frame struct {
	Type           FrameType       `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Content        string          `json:"content,omitempty"`
	MessageID      int64           `json:"message_id,omitempty"`
	SenderID       string          `json:"sender_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	ReaderID       string          `json:"reader_id,omitempty"`
	Status         PresenceStatus  `json:"status,omitempty"`
	Count          int64           `json:"count,omitempty"`
	BeforeID       int64           `json:"before_id,omitempty"`
	Limit          int             `json:"limit,omitempty"`
	CreatedAt      time.Time       `json:"created_at,omitzero"`
	Entries        []PresenceEntry `json:"entries,omitempty"`
	Messages       []*Message      `json:"messages,omitempty"`

	// Error frames only.
	Code    string    `json:"code,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	RefType FrameType `json:"ref_type,omitempty"`
}

// MessageFrame wraps a persisted message for delivery to a recipient.
func MessageFrame(m *Message) *Frame {
	return &Frame{
		Type:           FrameMessageReceived,
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

// AckFrame acknowledges a persisted message to the sender's sessions.
func AckFrame(m *Message) *Frame {
	return &Frame{
		Type:           FrameSendAck,
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		CreatedAt:      m.CreatedAt,
	}
}

// UnreadFrame reports the current unread count for one conversation.
func UnreadFrame(conversationID string, count int64) *Frame {
	return &Frame{Type: FrameUnreadCount, ConversationID: conversationID, Count: count}
}

// PresenceFrame reports a user's presence transition.
func PresenceFrame(userID string, st PresenceState) *Frame {
	return &Frame{
		Type:           FramePresence,
		UserID:         userID,
		Status:         st.Status,
		ConversationID: st.ConversationID,
	}
}

// MessagesReadFrame tells other participants the reader has seen the conversation.
func MessagesReadFrame(conversationID, readerID string) *Frame {
	return &Frame{Type: FrameMessagesRead, ConversationID: conversationID, ReaderID: readerID}
}

// SnapshotFrame carries the presence of all conversation partners in one batch.
func SnapshotFrame(entries []PresenceEntry) *Frame {
	return &Frame{Type: FrameStatusSnapshot, Entries: entries}
}

// HistoryFrame carries one page of conversation history, newest first.
func HistoryFrame(conversationID string, msgs []*Message) *Frame {
	return &Frame{Type: FrameHistoryResult, ConversationID: conversationID, Messages: msgs}
}

// ErrorFrame rejects the frame identified by ref without closing the connection.
func ErrorFrame(code, detail string, ref FrameType) *Frame {
	return &Frame{Type: FrameError, Code: code, Detail: detail, RefType: ref}
}
