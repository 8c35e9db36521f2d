// Package store defines where log records are appended and read back.
package store

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
)

// Store appends log records. Records are never updated or deleted.
type Store interface {
	Append(ctx context.Context, rec *domain.LogRecord) error
	Close() error
}

// Reader reads back the newest records of a conversation, newest first.
type Reader interface {
	Records(ctx context.Context, conversationID string, limit int) ([]domain.LogRecord, error)
}

// Multi appends every record to each of its stores.
type Multi []Store

// Append writes rec to every store and joins their errors. A failing
// store does not prevent the others from receiving the record.
func (m Multi) Append(ctx context.Context, rec *domain.LogRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every store.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
