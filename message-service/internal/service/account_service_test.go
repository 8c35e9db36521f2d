package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/message-service/internal/repository"
)

type memAccounts struct{ hashes map[string]string }

func (m *memAccounts) Create(_ context.Context, username, hash string) error {
	if _, ok := m.hashes[username]; ok {
		return repository.ErrAccountExists
	}
	m.hashes[username] = hash
	return nil
}

func (m *memAccounts) PasswordHash(_ context.Context, username string) (string, error) {
	h, ok := m.hashes[username]
	if !ok {
		return "", repository.ErrAccountNotFound
	}
	return h, nil
}

type banLookup struct {
	repository.UserRepository
	until map[string]time.Time
}

func (b *banLookup) BannedUntil(_ context.Context, username string) (time.Time, error) {
	return b.until[username], nil
}

type stubIssuer struct{ exp time.Time }

func (s stubIssuer) Issue(username string) (string, time.Time, error) {
	return "token-for-" + username, s.exp, nil
}

func newAccountService(now time.Time, bans map[string]time.Time) *accountServiceImpl {
	svc := NewAccountService(
		&memAccounts{hashes: map[string]string{}},
		&banLookup{until: bans},
		stubIssuer{exp: now.Add(time.Hour)},
	).(*accountServiceImpl)
	svc.cost = bcrypt.MinCost
	svc.now = func() time.Time { return now }
	return svc
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := newAccountService(time.Now(), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{name: "too short username", username: "ab", password: "secret1", want: ErrInvalidUsername},
		{name: "bad characters", username: "a b c", password: "secret1", want: ErrInvalidUsername},
		{name: "short password", username: "alice", password: "12345", want: ErrInvalidPassword},
		{name: "ok", username: " Alice ", password: "secret1"},
		{name: "taken", username: "alice", password: "another1", want: repository.ErrAccountExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(ctx, &domain.RegisterRequest{Username: tt.username, Password: tt.password})
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestLoginIssuesToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newAccountService(now, map[string]time.Time{})
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, &domain.RegisterRequest{Username: "alice", Password: "secret1"}))

	resp, err := svc.Login(ctx, &domain.LoginRequest{Username: "ALICE", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "token-for-alice", resp.Token)
	assert.Equal(t, now.Add(time.Hour), resp.ExpiresAt)

	_, err = svc.Login(ctx, &domain.LoginRequest{Username: "alice", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &domain.LoginRequest{Username: "nobody", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsBannedUser(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bans := map[string]time.Time{"mallory": now.Add(time.Minute)}
	svc := newAccountService(now, bans)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, &domain.RegisterRequest{Username: "mallory", Password: "secret1"}))

	_, err := svc.Login(ctx, &domain.LoginRequest{Username: "mallory", Password: "secret1"})
	assert.ErrorIs(t, err, ErrBanned)

	bans["mallory"] = now.Add(-time.Minute)
	_, err = svc.Login(ctx, &domain.LoginRequest{Username: "mallory", Password: "secret1"})
	assert.NoError(t, err)
}
