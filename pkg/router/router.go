// Package router applies inbound frames to the relay's shared state. The
// router itself is stateless apart from a read-through participant cache;
// session, presence and unread state live in their own packages.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mahaj/relay/pkg/bus"
	"github.com/mahaj/relay/pkg/dispatch"
	"github.com/mahaj/relay/pkg/model"
	"github.com/mahaj/relay/pkg/presence"
	"github.com/mahaj/relay/pkg/registry"
	"github.com/mahaj/relay/pkg/store"
	"github.com/mahaj/relay/pkg/unread"
	"github.com/rs/zerolog"
)

// ErrUnknownFrame marks a frame type the router does not handle. The
// gateway counts it toward the protocol-abuse threshold.
var ErrUnknownFrame = errors.New("unknown frame type")

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	partnerLookupTimeout = 5 * time.Second
)

type Router struct {
	store    store.Store
	reg      *registry.Registry
	presence *presence.Tracker
	unread   *unread.Store
	disp     *dispatch.Dispatcher
	sink     bus.Sink
	log      zerolog.Logger

	cacheMu      sync.RWMutex
	participants map[string][]string
}

func New(st store.Store, reg *registry.Registry, pres *presence.Tracker, un *unread.Store, disp *dispatch.Dispatcher, sink bus.Sink, log zerolog.Logger) *Router {
	if sink == nil {
		sink = bus.Nop{}
	}
	return &Router{
		store:        st,
		reg:          reg,
		presence:     pres,
		unread:       un,
		disp:         disp,
		sink:         sink,
		log:          log.With().Str("component", "router").Logger(),
		participants: make(map[string][]string),
	}
}

// HandleFrame applies one inbound frame from an authenticated connection.
// The returned frame, if any, is a direct reply for the originating
// connection only; fan-out to other sessions happens internally.
func (r *Router) HandleFrame(ctx context.Context, userID string, f *model.Frame) (*model.Frame, error) {
	switch f.Type {
	case model.FrameSend:
		return r.Send(ctx, userID, f.ConversationID, f.Content), nil
	case model.FrameReadReceipt:
		return r.ReadReceipt(ctx, userID, f.ConversationID), nil
	case model.FrameTyping:
		r.Typing(ctx, userID, f.ConversationID)
		return nil, nil
	case model.FrameStatusQuery:
		return r.StatusQuery(ctx, userID), nil
	case model.FrameHistory:
		return r.History(ctx, userID, f.ConversationID, f.BeforeID, f.Limit), nil
	default:
		return nil, ErrUnknownFrame
	}
}

// Send validates, persists and fans out one message. The reply is nil on
// success (the ack reaches the sender through regular fan-out) and an error
// frame on rejection or persistence failure.
func (r *Router) Send(ctx context.Context, senderID, conversationID, content string) *model.Frame {
	parts, reject := r.requireParticipant(ctx, senderID, conversationID, model.FrameSend)
	if reject != nil {
		return reject
	}

	msg, err := r.store.CreateMessage(ctx, conversationID, senderID, content)
	if err != nil {
		// Not sent: nothing fans out, the client retries.
		r.log.Error().Err(err).Str("conversation_id", conversationID).Msg("message persist failed")
		return model.ErrorFrame(model.CodePersistence, "message not sent", model.FrameSend)
	}

	for _, p := range parts {
		if p == senderID {
			continue
		}
		if reached := r.disp.Push(p, model.MessageFrame(msg)); reached == 0 {
			// Offline (or went offline mid-dispatch): the message waits as unread.
			count := r.unread.Increment(p, conversationID)
			r.log.Debug().
				Str("recipient", p).
				Str("conversation_id", conversationID).
				Int64("unread", count).
				Msg("recipient offline, unread incremented")
		}
	}

	// Every sender session learns the persisted id, so multi-device stays in sync.
	r.disp.Push(senderID, model.AckFrame(msg))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.sink.Publish(ctx, msg); err != nil {
			r.log.Warn().Err(err).Int64("message_id", msg.ID).Msg("event sink publish failed")
		}
	}()

	return nil
}

// ReadReceipt marks every unseen message in the conversation as seen by the
// reader, resets the unread counter and notifies the other participants.
// Calling it twice is the same as calling it once.
func (r *Router) ReadReceipt(ctx context.Context, readerID, conversationID string) *model.Frame {
	parts, reject := r.requireParticipant(ctx, readerID, conversationID, model.FrameReadReceipt)
	if reject != nil {
		return reject
	}

	msgs, err := r.store.ListUnseen(ctx, conversationID, readerID)
	if err != nil {
		return model.ErrorFrame(model.CodePersistence, "read receipt not applied", model.FrameReadReceipt)
	}

	// The receipt is accepted at this point; finish the writes even if the
	// reader's connection goes away.
	writeCtx := context.WithoutCancel(ctx)
	failed := 0
	for _, m := range msgs {
		if err := r.store.MarkSeen(writeCtx, conversationID, m.ID, readerID); err != nil {
			failed++
			r.log.Warn().Err(err).Int64("message_id", m.ID).Msg("mark seen failed")
		}
	}
	if failed > 0 && failed == len(msgs) {
		// Nothing persisted: reject so the client retries instead of
		// trusting a seen state the store never recorded.
		return model.ErrorFrame(model.CodePersistence, "read receipt not applied", model.FrameReadReceipt)
	}

	r.unread.Reset(readerID, conversationID)

	for _, p := range parts {
		if p != readerID {
			r.disp.Push(p, model.MessagesReadFrame(conversationID, readerID))
		}
	}
	r.disp.Push(readerID, model.UnreadFrame(conversationID, 0))
	return nil
}

// StatusQuery returns the presence of all the user's conversation partners
// in one batch.
func (r *Router) StatusQuery(ctx context.Context, userID string) *model.Frame {
	partners, err := r.store.ListPartners(ctx, userID)
	if err != nil {
		return model.ErrorFrame(model.CodePersistence, "status query failed", model.FrameStatusQuery)
	}
	entries := make([]model.PresenceEntry, 0, len(partners))
	for _, p := range partners {
		entries = append(entries, model.PresenceEntry{UserID: p, Status: r.presence.Status(p).Status})
	}
	return model.SnapshotFrame(entries)
}

// Typing records an advisory typing signal and forwards it to the other
// online participants. Failures are dropped silently; typing never blocks
// or rejects.
func (r *Router) Typing(ctx context.Context, userID, conversationID string) {
	parts, err := r.participantsFor(ctx, conversationID)
	if err != nil || !contains(parts, userID) {
		return
	}
	r.presence.SetTyping(userID, conversationID)

	frame := model.PresenceFrame(userID, model.PresenceState{
		Status:         model.StatusTyping,
		ConversationID: conversationID,
	})
	for _, p := range parts {
		if p != userID {
			r.disp.Push(p, frame)
		}
	}
}

// History serves one reverse-paginated page of conversation messages.
func (r *Router) History(ctx context.Context, userID, conversationID string, beforeID int64, limit int) *model.Frame {
	_, reject := r.requireParticipant(ctx, userID, conversationID, model.FrameHistory)
	if reject != nil {
		return reject
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	msgs, err := r.store.History(ctx, conversationID, beforeID, limit)
	if err != nil {
		return model.ErrorFrame(model.CodePersistence, "history fetch failed", model.FrameHistory)
	}
	return model.HistoryFrame(conversationID, msgs)
}

// OnSessionEdge consumes the registry's presence edges: it feeds the
// tracker, announces the transition to every conversation partner, and on a
// went-online edge runs the initial sync for the reconnecting user.
func (r *Router) OnSessionEdge(userID string, online bool) {
	r.presence.OnSessionEdge(userID, online)

	ctx, cancel := context.WithTimeout(context.Background(), partnerLookupTimeout)
	defer cancel()

	partners, err := r.store.ListPartners(ctx, userID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("partner lookup failed on session edge")
		return
	}

	frame := model.PresenceFrame(userID, r.presence.Status(userID))
	for _, p := range partners {
		r.disp.Push(p, frame)
	}

	if online {
		r.initialSync(userID, partners)
	}
}

// initialSync pushes the unread snapshot and the partner presence batch to a
// freshly online user's sessions. The online edge itself never touches the
// counters; only an explicit read receipt resets them.
func (r *Router) initialSync(userID string, partners []string) {
	for conversationID, count := range r.unread.Snapshot(userID) {
		r.disp.Push(userID, model.UnreadFrame(conversationID, count))
	}
	entries := make([]model.PresenceEntry, 0, len(partners))
	for _, p := range partners {
		entries = append(entries, model.PresenceEntry{UserID: p, Status: r.presence.Status(p).Status})
	}
	r.disp.Push(userID, model.SnapshotFrame(entries))
}

// requireParticipant resolves the participant set and rejects outsiders.
func (r *Router) requireParticipant(ctx context.Context, userID, conversationID string, ref model.FrameType) ([]string, *model.Frame) {
	parts, err := r.participantsFor(ctx, conversationID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return nil, model.ErrorFrame(model.CodeNotFound, "unknown conversation", ref)
	case err != nil:
		return nil, model.ErrorFrame(model.CodePersistence, "participant lookup failed", ref)
	case !contains(parts, userID):
		return nil, model.ErrorFrame(model.CodeForbidden, "not a conversation participant", ref)
	}
	return parts, nil
}

// participantsFor read-through caches participant sets. Conversation
// membership changes are rare relative to message traffic.
func (r *Router) participantsFor(ctx context.Context, conversationID string) ([]string, error) {
	r.cacheMu.RLock()
	parts, ok := r.participants[conversationID]
	r.cacheMu.RUnlock()
	if ok {
		return parts, nil
	}

	parts, err := r.store.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	r.cacheMu.Lock()
	r.participants[conversationID] = parts
	r.cacheMu.Unlock()
	return parts, nil
}

// InvalidateConversation drops a cached participant set.
func (r *Router) InvalidateConversation(conversationID string) {
	r.cacheMu.Lock()
	delete(r.participants, conversationID)
	r.cacheMu.Unlock()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
