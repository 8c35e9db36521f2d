package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-chat/message-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/message-service/internal/filter"
	"github.com/weiawesome/wes-io-chat/message-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/message-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/events"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const (
	DefaultBanMinutes = 24 * 60
	MaxBanMinutes     = 30 * 24 * 60
)

var ErrUsernameRequired = errors.New("username required")

// moderationServiceImpl implements ModerationService interface.
type moderationServiceImpl struct {
	users     repository.UserRepository
	settings  repository.SettingsRepository
	filter    *filter.Filter
	publisher EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewModerationService creates a new moderation service.
func NewModerationService(users repository.UserRepository, settings repository.SettingsRepository, f *filter.Filter, pub EventPublisher, m *metrics.Metrics) ModerationService {
	return &moderationServiceImpl{
		users:     users,
		settings:  settings,
		filter:    f,
		publisher: pub,
		metrics:   m,
		now:       time.Now,
	}
}

// Ban blocks a user for the requested minutes and evicts their live
// sessions through the control topic.
func (s *moderationServiceImpl) Ban(ctx context.Context, admin string, req *domain.BanRequest) (*domain.BanResponse, error) {
	l := log.Ctx(ctx)

	username := normalizeUsername(req.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	minutes := clampMinutes(req.Minutes)
	until := s.now().UTC().Add(time.Duration(minutes) * time.Minute)

	if err := s.users.Ban(ctx, username, until); err != nil {
		l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to ban user")
		return nil, err
	}

	s.metrics.Bans.WithLabelValues(events.ControlBan).Inc()
	audit.LogAdmin(ctx, audit.ActionBan, admin, username, "minutes="+strconv.Itoa(minutes), "user banned")

	_ = s.publisher.Publish(ctx, events.UserBanned{Username: username})
	return &domain.BanResponse{Message: "banned", UntilMinutes: minutes, BannedUntil: until}, nil
}

// Unban lifts a ban.
func (s *moderationServiceImpl) Unban(ctx context.Context, admin string, req *domain.UnbanRequest) error {
	l := log.Ctx(ctx)

	username := normalizeUsername(req.Username)
	if username == "" {
		return ErrUsernameRequired
	}

	if err := s.users.Unban(ctx, username); err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to unban user")
		}
		return err
	}

	s.metrics.Bans.WithLabelValues(events.ControlUnban).Inc()
	audit.LogAdmin(ctx, audit.ActionUnban, admin, username, "", "user unbanned")

	_ = s.publisher.Publish(ctx, events.UserUnbanned{Username: username})
	return nil
}

// SensitiveWords returns the list the filter currently applies.
func (s *moderationServiceImpl) SensitiveWords(ctx context.Context) []string {
	return s.filter.Words()
}

// SetSensitiveWords stores and applies a new list.
func (s *moderationServiceImpl) SetSensitiveWords(ctx context.Context, admin string, words []string) ([]string, error) {
	normalized := filter.NormalizeWords(words)
	if err := s.settings.SetSensitiveWords(ctx, normalized); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to store sensitive words")
		return nil, err
	}
	s.filter.SetWords(normalized)

	audit.LogAdmin(ctx, audit.ActionSetSensitiveWords, admin, "", "count="+strconv.Itoa(len(normalized)), "sensitive words updated")
	return s.filter.Words(), nil
}

// LoadSensitiveWords refreshes the filter from the store.
func (s *moderationServiceImpl) LoadSensitiveWords(ctx context.Context) error {
	words, err := s.settings.SensitiveWords(ctx)
	if err != nil {
		return err
	}
	s.filter.SetWords(words)
	return nil
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clampMinutes(minutes int) int {
	if minutes <= 0 {
		return DefaultBanMinutes
	}
	if minutes > MaxBanMinutes {
		return MaxBanMinutes
	}
	return minutes
}
