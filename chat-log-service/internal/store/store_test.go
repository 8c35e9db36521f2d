package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
)

type countingStore struct {
	appended int
	err      error
	closed   bool
}

func (s *countingStore) Append(context.Context, *domain.LogRecord) error {
	s.appended++
	return s.err
}

func (s *countingStore) Close() error {
	s.closed = true
	return nil
}

func TestMultiAppendsToEveryStore(t *testing.T) {
	failing := &countingStore{err: errors.New("cassandra down")}
	healthy := &countingStore{}
	m := Multi{failing, healthy}

	err := m.Append(context.Background(), &domain.LogRecord{})
	assert.ErrorContains(t, err, "cassandra down")
	assert.Equal(t, 1, failing.appended)
	assert.Equal(t, 1, healthy.appended)

	assert.NoError(t, m.Close())
	assert.True(t, failing.closed)
	assert.True(t, healthy.closed)
}
