package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-chat/message-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/message-service/internal/filter"
	"github.com/weiawesome/wes-io-chat/message-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/message-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 500
)

// messageServiceImpl implements MessageService interface.
type messageServiceImpl struct {
	repo      repository.MessageRepository
	filter    *filter.Filter
	publisher EventPublisher
	metrics   *metrics.Metrics
}

// NewMessageService creates a new message service.
func NewMessageService(repo repository.MessageRepository, f *filter.Filter, pub EventPublisher, m *metrics.Metrics) MessageService {
	return &messageServiceImpl{
		repo:      repo,
		filter:    f,
		publisher: pub,
		metrics:   m,
	}
}

// Post validates, stores and announces a new message.
func (s *messageServiceImpl) Post(ctx context.Context, username string, req *domain.PostMessageRequest) (*domain.Message, error) {
	l := log.Ctx(ctx)

	checked, err := s.filter.Check(req.Content)
	if err != nil {
		s.metrics.Rejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: filter.NormalizeSlug(req.ConversationID),
		Sender:         username,
		Content:        checked.Content,
		Type:           filter.NormalizeType(req.Type),
		Metadata:       req.Metadata,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to create message")
		return nil, err
	}

	s.metrics.Posted.Inc()
	if checked.Flagged {
		s.metrics.Flagged.Inc()
	}
	l.Info().
		Str(log.FieldUsername, username).
		Str(log.FieldConversationID, msg.ConversationID).
		Int64(log.FieldMessageID, msg.ID).
		Bool("flagged", checked.Flagged).
		Msg("message created")

	// The write is committed; a failed publish is reported by the
	// publisher and does not fail the request.
	_ = s.publisher.Publish(ctx, msg.Event())
	return msg, nil
}

// Recall tombstones a message owned by username and announces it.
func (s *messageServiceImpl) Recall(ctx context.Context, username string, id int64) (*domain.Message, error) {
	l := log.Ctx(ctx)

	msg, err := s.repo.Recall(ctx, id, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotSender) && !errors.Is(err, repository.ErrMessageNotFound) {
			l.Error().Err(err).Int64(log.FieldMessageID, id).Msg("failed to recall message")
		}
		return nil, err
	}

	s.metrics.Recalled.Inc()
	audit.Log(ctx, audit.ActionRecall, username, "message recalled")

	_ = s.publisher.Publish(ctx, msg.Event())
	return msg, nil
}

// List returns a page of history.
func (s *messageServiceImpl) List(ctx context.Context, q *domain.ListMessagesQuery) ([]*domain.Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, filter.NormalizeSlug(q.ConversationID), limit, offset)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, filter.ErrContentRequired):
		return "required"
	case errors.Is(err, filter.ErrContentTooShort):
		return "too_short"
	case errors.Is(err, filter.ErrContentTooLong):
		return "too_long"
	case errors.Is(err, filter.ErrTooManyRepeats):
		return "repeated"
	default:
		return "other"
	}
}
