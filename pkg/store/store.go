// Package store defines the narrow persistence interface the relay consumes.
// Conversation lifecycle is owned by the external system; the relay only
// reads identity and participant sets, and creates messages.
package store

import (
	"context"

	"github.com/mahaj/relay/pkg/model"
)

type Store interface {
	// CreateMessage persists a new message and returns it with its assigned
	// id and timestamp. Failures wrap model.ErrPersistence.
	CreateMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, error)

	// ListParticipants returns the participant set of a conversation, or
	// model.ErrNotFound for an unknown one.
	ListParticipants(ctx context.Context, conversationID string) ([]string, error)

	// ListPartners returns every distinct user sharing a conversation with
	// userID.
	ListPartners(ctx context.Context, userID string) ([]string, error)

	// ListUnseen returns messages in the conversation authored by others and
	// not yet seen by userID, oldest first in canonical order.
	ListUnseen(ctx context.Context, conversationID, userID string) ([]*model.Message, error)

	// MarkSeen appends userID to a message's seen set. The set only grows;
	// marking an already-seen message is a no-op. The conversation id is
	// required because messages are partitioned by conversation.
	MarkSeen(ctx context.Context, conversationID string, messageID int64, userID string) error

	// History returns up to limit messages older than beforeID (all, when
	// beforeID is zero), newest first in canonical order.
	History(ctx context.Context, conversationID string, beforeID int64, limit int) ([]*model.Message, error)
}
