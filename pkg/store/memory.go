package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mahaj/relay/pkg/model"
	"github.com/mahaj/relay/pkg/snowflake"
	"github.com/pkg/errors"
)

// Memory is an in-process Store used by tests and the dev client. It is the
// reference for the interface's semantics: SeenBy is monotonic, message
// order is canonical, unknown conversations are ErrNotFound.
type Memory struct {
	mu           sync.Mutex
	node         *snowflake.Node
	participants map[string][]string
	messages     map[string][]*model.Message
	byID         map[int64]*model.Message
	failure      error
}

func NewMemory() *Memory {
	node, _ := snowflake.NewNode(0)
	return &Memory{
		node:         node,
		participants: make(map[string][]string),
		messages:     make(map[string][]*model.Message),
		byID:         make(map[int64]*model.Message),
	}
}

// AddConversation seeds a conversation, standing in for the external system
// that owns conversation lifecycle.
func (m *Memory) AddConversation(conversationID string, participantIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[conversationID] = append([]string(nil), participantIDs...)
}

// FailWith makes every subsequent mutation fail with the given cause,
// wrapped as model.ErrPersistence. Pass nil to heal.
func (m *Memory) FailWith(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = cause
}

func (m *Memory) CreateMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, errors.Wrap(model.ErrPersistence, m.failure.Error())
	}
	if _, ok := m.participants[conversationID]; !ok {
		return nil, model.ErrNotFound
	}
	msg := &model.Message{
		ID:             m.node.Generate(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	m.byID[msg.ID] = msg
	return cloneMessage(msg), nil
}

func (m *Memory) ListParticipants(ctx context.Context, conversationID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts, ok := m.participants[conversationID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return append([]string(nil), parts...), nil
}

func (m *Memory) ListPartners(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	for _, parts := range m.participants {
		member := false
		for _, p := range parts {
			if p == userID {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		for _, p := range parts {
			if p != userID {
				seen[p] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ListUnseen(ctx context.Context, conversationID, userID string) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[conversationID]; !ok {
		return nil, model.ErrNotFound
	}
	var out []*model.Message
	for _, msg := range m.messages[conversationID] {
		if msg.SenderID != userID && !msg.SeenByUser(userID) {
			out = append(out, cloneMessage(msg))
		}
	}
	model.SortCanonical(out)
	return out, nil
}

func (m *Memory) MarkSeen(ctx context.Context, conversationID string, messageID int64, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return errors.Wrap(model.ErrPersistence, m.failure.Error())
	}
	msg, ok := m.byID[messageID]
	if !ok || msg.ConversationID != conversationID {
		return model.ErrNotFound
	}
	if !msg.SeenByUser(userID) {
		msg.SeenBy = append(msg.SeenBy, userID)
	}
	return nil
}

func (m *Memory) History(ctx context.Context, conversationID string, beforeID int64, limit int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[conversationID]; !ok {
		return nil, model.ErrNotFound
	}
	var page []*model.Message
	for _, msg := range m.messages[conversationID] {
		if beforeID == 0 || msg.ID < beforeID {
			page = append(page, cloneMessage(msg))
		}
	}
	model.SortCanonical(page)
	// Newest first, capped at limit.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

func cloneMessage(m *model.Message) *model.Message {
	cp := *m
	cp.SeenBy = append([]string(nil), m.SeenBy...)
	return &cp
}
