package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/events"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: ":memory:", MaxOpenConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	return db
}

func post(t *testing.T, repo *GormMessageRepository, sender, conv, content string) *domain.Message {
	t.Helper()
	msg := &domain.Message{
		ConversationID: conv,
		Sender:         sender,
		Content:        content,
		Type:           events.TypeText,
		Metadata:       map[string]any{"client": "web"},
	}
	require.NoError(t, repo.Create(context.Background(), msg))
	return msg
}

func TestCreateAssignsIDAndCreatesConversation(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormMessageRepository(db)

	first := post(t, repo, "alice", "general", "hi")
	second := post(t, repo, "alice", "general", "again")
	post(t, repo, "bob", "general", "hello")

	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, events.StatusActive, first.Status)
	assert.False(t, first.CreatedAt.IsZero())

	var conversations []domain.ConversationModel
	require.NoError(t, db.Find(&conversations).Error)
	require.Len(t, conversations, 1)
	assert.Equal(t, "general", conversations[0].Slug)
	assert.Equal(t, defaultConversationTitle, conversations[0].Title)

	var members int64
	require.NoError(t, db.Model(&domain.ConversationMemberModel{}).Count(&members).Error)
	assert.Equal(t, int64(2), members)

	var users int64
	require.NoError(t, db.Model(&domain.UserModel{}).Count(&users).Error)
	assert.Equal(t, int64(2), users)
}

func TestRecallOnlyBySender(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()
	msg := post(t, repo, "alice", "room-1", "secret")

	_, err := repo.Recall(ctx, msg.ID, "bob")
	assert.ErrorIs(t, err, ErrNotSender)

	_, err = repo.Recall(ctx, msg.ID+100, "alice")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	recalled, err := repo.Recall(ctx, msg.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, recalled.ID)
	assert.Equal(t, "room-1", recalled.ConversationID)
	assert.Equal(t, events.StatusRecalled, recalled.Status)
	assert.Equal(t, events.TypeRecall, recalled.Type)
	assert.Empty(t, recalled.Content)
	assert.Nil(t, recalled.Metadata)

	again, err := repo.Recall(ctx, msg.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, recalled, again)

	history, err := repo.List(ctx, "room-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, events.StatusRecalled, history[0].Status)
	assert.Empty(t, history[0].Content)
	assert.Nil(t, history[0].Metadata)
}

func TestListIsAscendingAndPaged(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		post(t, repo, "alice", "general", c)
	}
	post(t, repo, "alice", "other-room", "elsewhere")

	all, err := repo.List(ctx, "general", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Content)
	assert.Equal(t, "three", all[2].Content)
	assert.Equal(t, map[string]any{"client": "web"}, all[0].Metadata)

	page, err := repo.List(ctx, "general", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "two", page[0].Content)

	none, err := repo.List(ctx, "missing", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBanAndUnban(t *testing.T) {
	repo := NewGormUserRepository(newTestDB(t))
	ctx := context.Background()

	until, err := repo.BannedUntil(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, until.IsZero())

	assert.ErrorIs(t, repo.Unban(ctx, "bob"), ErrUserNotFound)

	want := time.Now().UTC().Add(time.Hour)
	require.NoError(t, repo.Ban(ctx, "bob", want))

	until, err = repo.BannedUntil(ctx, "bob")
	require.NoError(t, err)
	assert.WithinDuration(t, want, until, time.Second)

	require.NoError(t, repo.Unban(ctx, "bob"))
	until, err = repo.BannedUntil(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, until.IsZero())

	require.NoError(t, repo.Unban(ctx, "bob"), "unbanning twice is fine")
}

func TestSensitiveWordsUpsert(t *testing.T) {
	repo := NewGormSettingsRepository(newTestDB(t))
	ctx := context.Background()

	words, err := repo.SensitiveWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, words)

	require.NoError(t, repo.SetSensitiveWords(ctx, []string{"spam"}))
	require.NoError(t, repo.SetSensitiveWords(ctx, []string{"spam", "scam"}))

	words, err = repo.SensitiveWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam", "scam"}, words)

	require.NoError(t, repo.SetSensitiveWords(ctx, nil))
	words, err = repo.SensitiveWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestAccountCreateRejectsTakenUsername(t *testing.T) {
	repo := NewGormAccountRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "alice", "hash-1"))
	assert.ErrorIs(t, repo.Create(ctx, "alice", "hash-2"), ErrAccountExists)

	hash, err := repo.PasswordHash(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", hash)

	_, err = repo.PasswordHash(ctx, "bob")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
