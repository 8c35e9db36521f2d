// Package segment appends log records to object storage as NDJSON
// segments, one object per flush.
package segment

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

const (
	contentType  = "application/x-ndjson"
	maxLineBytes = 1 << 20
	closeTimeout = 10 * time.Second
)

// Config controls segment size and cadence.
type Config struct {
	Prefix        string        `mapstructure:"prefix"`
	MaxRecords    int           `mapstructure:"max_records"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// MaxPending bounds how many records are kept while storage is
	// failing. Older records are dropped beyond it.
	MaxPending int `mapstructure:"max_pending"`
}

// Sink buffers records and writes them out as immutable segments.
type Sink struct {
	storage storage.Storage
	cfg     Config
	now     func() time.Time

	mu      sync.Mutex
	pending []*domain.LogRecord
	entropy io.Reader // guarded by mu
}

// NewSink creates a sink writing under cfg.Prefix.
func NewSink(st storage.Storage, cfg Config) *Sink {
	if cfg.Prefix == "" {
		cfg.Prefix = "chat-log"
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, "/")
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxPending < cfg.MaxRecords {
		cfg.MaxPending = cfg.MaxRecords * 20
	}
	return &Sink{
		storage: st,
		cfg:     cfg,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Append buffers rec and flushes when the segment is full.
func (s *Sink) Append(ctx context.Context, rec *domain.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.pending = append(s.pending, &cp)
	if len(s.pending) < s.cfg.MaxRecords {
		return nil
	}
	return s.flushLocked(ctx)
}

// Flush writes buffered records as one segment.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Sink) flushLocked(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range s.pending {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode log record: %w", err)
		}
	}

	key, err := s.segmentKey()
	if err != nil {
		return err
	}
	if err := s.storage.Write(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), contentType); err != nil {
		if over := len(s.pending) - s.cfg.MaxPending; over > 0 {
			s.pending = append([]*domain.LogRecord(nil), s.pending[over:]...)
			return fmt.Errorf("failed to write segment %s, dropped %d records: %w", key, over, err)
		}
		return fmt.Errorf("failed to write segment %s: %w", key, err)
	}

	s.pending = s.pending[:0]
	return nil
}

// segmentKey sorts lexically in write order: ULIDs order by time, and
// by the monotonic entropy within one millisecond.
func (s *Sink) segmentKey() (string, error) {
	now := s.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate segment id: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s.ndjson", s.cfg.Prefix, now.Format("2006/01/02"), id), nil
}

// Run flushes on FlushInterval until ctx is done.
func (s *Sink) Run(ctx context.Context) {
	logger := log.Ctx(ctx)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				logger.Warn().Err(err).Msg("segment flush failed")
			}
		}
	}
}

// Close flushes what is left.
func (s *Sink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return s.Flush(ctx)
}

// Records returns the newest records of a conversation, newest first,
// including records not flushed yet.
func (s *Sink) Records(ctx context.Context, conversationID string, limit int) ([]domain.LogRecord, error) {
	records := make([]domain.LogRecord, 0, limit)

	s.mu.Lock()
	for i := len(s.pending) - 1; i >= 0 && len(records) < limit; i-- {
		if s.pending[i].ConversationID == conversationID {
			records = append(records, *s.pending[i])
		}
	}
	s.mu.Unlock()

	if len(records) >= limit {
		return records, nil
	}

	objects, err := s.storage.List(ctx, s.cfg.Prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	for i := len(objects) - 1; i >= 0 && len(records) < limit; i-- {
		segment, err := s.readSegment(ctx, objects[i].Key, conversationID)
		if err != nil {
			return nil, err
		}
		for j := len(segment) - 1; j >= 0 && len(records) < limit; j-- {
			records = append(records, segment[j])
		}
	}
	return records, nil
}

func (s *Sink) readSegment(ctx context.Context, key, conversationID string) ([]domain.LogRecord, error) {
	rc, err := s.storage.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment %s: %w", key, err)
	}
	defer rc.Close()
	return decodeSegment(rc, conversationID)
}

func decodeSegment(r io.Reader, conversationID string) ([]domain.LogRecord, error) {
	var out []domain.LogRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec domain.LogRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("corrupt segment line: %w", err)
		}
		if rec.ConversationID == conversationID {
			out = append(out, rec)
		}
	}
	return out, scanner.Err()
}
