package store

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/mahaj/relay/pkg/model"
	"github.com/mahaj/relay/pkg/snowflake"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Scylla implements Store on top of a ScyllaDB/Cassandra cluster. Messages
// are partitioned by conversation and clustered by snowflake id descending,
// which matches the canonical order because snowflake ids are time-ordered.
type Scylla struct {
	session *gocql.Session
	node    *snowflake.Node
	log     zerolog.Logger
}

func NewScylla(hosts []string, keyspace string, node *snowflake.Node, log zerolog.Logger) (*Scylla, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrap(err, "connecting to scylla cluster")
	}

	log.Info().Strs("hosts", hosts).Str("keyspace", keyspace).Msg("connected to scylla")
	return &Scylla{
		session: session,
		node:    node,
		log:     log.With().Str("component", "scylla").Logger(),
	}, nil
}

// Bootstrap creates the relay's tables if missing. Schema ownership in
// production belongs to migrations; this keeps dev environments working.
func (s *Scylla) Bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			conversation_id text,
			id bigint,
			sender_id text,
			content text,
			created_at timestamp,
			seen_by set<text>,
			PRIMARY KEY (conversation_id, id)
		) WITH CLUSTERING ORDER BY (id DESC)`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id text,
			user_id text,
			PRIMARY KEY (conversation_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_partners (
			user_id text,
			partner_id text,
			PRIMARY KEY (user_id, partner_id)
		)`,
	}
	for _, stmt := range stmts {
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return errors.Wrap(err, "bootstrapping schema")
		}
	}
	return nil
}

func (s *Scylla) Close() { s.session.Close() }

func (s *Scylla) CreateMessage(ctx context.Context, conversationID, senderID, content string) (*model.Message, error) {
	msg := &model.Message{
		ID:             s.node.Generate(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	err := s.session.Query(
		`INSERT INTO messages (conversation_id, id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.ID, msg.SenderID, msg.Content, msg.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return nil, errors.Wrapf(model.ErrPersistence, "inserting message: %v", err)
	}
	return msg, nil
}

func (s *Scylla) ListParticipants(ctx context.Context, conversationID string) ([]string, error) {
	iter := s.session.Query(
		`SELECT user_id FROM conversation_participants WHERE conversation_id = ?`,
		conversationID,
	).WithContext(ctx).Iter()

	var parts []string
	var userID string
	for iter.Scan(&userID) {
		parts = append(parts, userID)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(model.ErrPersistence, "listing participants: %v", err)
	}
	if len(parts) == 0 {
		return nil, model.ErrNotFound
	}
	return parts, nil
}

func (s *Scylla) ListPartners(ctx context.Context, userID string) ([]string, error) {
	iter := s.session.Query(
		`SELECT partner_id FROM user_partners WHERE user_id = ?`,
		userID,
	).WithContext(ctx).Iter()

	var partners []string
	var partnerID string
	for iter.Scan(&partnerID) {
		partners = append(partners, partnerID)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(model.ErrPersistence, "listing partners: %v", err)
	}
	return partners, nil
}

func (s *Scylla) ListUnseen(ctx context.Context, conversationID, userID string) ([]*model.Message, error) {
	iter := s.session.Query(
		`SELECT conversation_id, id, sender_id, content, created_at, seen_by FROM messages WHERE conversation_id = ?`,
		conversationID,
	).WithContext(ctx).Iter()

	var out []*model.Message
	for {
		msg := &model.Message{}
		if !iter.Scan(&msg.ConversationID, &msg.ID, &msg.SenderID, &msg.Content, &msg.CreatedAt, &msg.SeenBy) {
			break
		}
		if msg.SenderID != userID && !msg.SeenByUser(userID) {
			out = append(out, msg)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(model.ErrPersistence, "listing unseen messages: %v", err)
	}
	model.SortCanonical(out)
	return out, nil
}

func (s *Scylla) MarkSeen(ctx context.Context, conversationID string, messageID int64, userID string) error {
	err := s.session.Query(
		`UPDATE messages SET seen_by = seen_by + ? WHERE conversation_id = ? AND id = ?`,
		[]string{userID}, conversationID, messageID,
	).WithContext(ctx).Exec()
	if err != nil {
		return errors.Wrapf(model.ErrPersistence, "marking message seen: %v", err)
	}
	return nil
}

func (s *Scylla) History(ctx context.Context, conversationID string, beforeID int64, limit int) ([]*model.Message, error) {
	var iter *gocql.Iter
	if beforeID > 0 {
		iter = s.session.Query(
			`SELECT conversation_id, id, sender_id, content, created_at, seen_by FROM messages WHERE conversation_id = ? AND id < ? LIMIT ?`,
			conversationID, beforeID, limit,
		).WithContext(ctx).Iter()
	} else {
		iter = s.session.Query(
			`SELECT conversation_id, id, sender_id, content, created_at, seen_by FROM messages WHERE conversation_id = ? LIMIT ?`,
			conversationID, limit,
		).WithContext(ctx).Iter()
	}

	var out []*model.Message
	for {
		msg := &model.Message{}
		if !iter.Scan(&msg.ConversationID, &msg.ID, &msg.SenderID, &msg.Content, &msg.CreatedAt, &msg.SeenBy) {
			break
		}
		out = append(out, msg)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(model.ErrPersistence, "fetching history: %v", err)
	}
	// Clustering order already yields newest first.
	return out, nil
}
