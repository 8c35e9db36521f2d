package cassandra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
)

const logTable = "message_log"

// Records are partitioned by conversation and clustered by a time-based
// log id, so a partition reads newest first.
const createLogTable = `
	CREATE TABLE IF NOT EXISTS message_log (
		conversation_id text,
		log_id timeuuid,
		message_id bigint,
		sender text,
		content text,
		type text,
		status text,
		metadata text,
		created_at timestamp,
		PRIMARY KEY ((conversation_id), log_id)
	) WITH CLUSTERING ORDER BY (log_id DESC)`

// Store appends log records to Cassandra and reads them back.
type Store struct {
	session *gocql.Session
}

// NewStore creates a new Store.
func NewStore(client *Client) *Store {
	return &Store{
		session: client.Session(),
	}
}

// Append inserts one record.
func (s *Store) Append(ctx context.Context, rec *domain.LogRecord) error {
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO message_log (
			conversation_id, log_id, message_id, sender, content, type, status, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err = s.session.Query(query,
		rec.ConversationID,
		gocql.UUIDFromTime(rec.RecordedAt),
		rec.MessageID,
		rec.Sender,
		rec.Content,
		rec.Type,
		rec.Status,
		metadata,
		rec.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to append log record: %w", err)
	}
	return nil
}

// Records returns the newest records of a conversation.
func (s *Store) Records(ctx context.Context, conversationID string, limit int) ([]domain.LogRecord, error) {
	query := `SELECT log_id, message_id, sender, content, type, status, metadata, created_at
			  FROM message_log
			  WHERE conversation_id = ?
			  LIMIT ?`

	iter := s.session.Query(query, conversationID, limit).WithContext(ctx).Iter()

	records := make([]domain.LogRecord, 0, limit)
	var (
		logID     gocql.UUID
		messageID *int64
		metadata  string
		createdAt time.Time
		rec       domain.LogRecord
	)
	for iter.Scan(&logID, &messageID, &rec.Sender, &rec.Content, &rec.Type, &rec.Status, &metadata, &createdAt) {
		rec.ConversationID = conversationID
		rec.MessageID = messageID
		rec.CreatedAt = createdAt.UTC()
		rec.RecordedAt = logID.Time().UTC()
		rec.Metadata = decodeMetadata(metadata)
		records = append(records, rec)

		rec = domain.LogRecord{}
		messageID = nil
		metadata = ""
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate log records: %w", err)
	}
	return records, nil
}

// Close is a no-op; the client owns the session.
func (s *Store) Close() error {
	return nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
