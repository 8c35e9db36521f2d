package service

import (
	"context"
	"errors"
	"regexp"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-chat/message-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/message-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 100
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("password must be 6 to 100 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBanned             = errors.New("user is banned")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,32}$`)

// accountServiceImpl implements AccountService interface.
type accountServiceImpl struct {
	accounts repository.AccountRepository
	users    repository.UserRepository
	tokens   TokenIssuer
	cost     int
	now      func() time.Time
}

// NewAccountService creates a new account service.
func NewAccountService(accounts repository.AccountRepository, users repository.UserRepository, tokens TokenIssuer) AccountService {
	return &accountServiceImpl{
		accounts: accounts,
		users:    users,
		tokens:   tokens,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Register creates an account with a bcrypt password hash.
func (s *accountServiceImpl) Register(ctx context.Context, req *domain.RegisterRequest) error {
	l := log.Ctx(ctx)

	username := normalizeUsername(req.Username)
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if n := utf8.RuneCountInString(req.Password); n < MinPasswordLength || n > MaxPasswordLength {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return err
	}

	if err := s.accounts.Create(ctx, username, string(hash)); err != nil {
		if !errors.Is(err, repository.ErrAccountExists) {
			l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to create account")
		}
		return err
	}

	audit.Log(ctx, audit.ActionRegister, username, "account registered")
	return nil
}

// Login verifies the password and issues a token. Banned users get
// ErrBanned instead of a token.
func (s *accountServiceImpl) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	l := log.Ctx(ctx)

	username := normalizeUsername(req.Username)
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}

	hash, err := s.accounts.PasswordHash(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			audit.LogAdmin(ctx, audit.ActionLoginFailed, username, "", "unknown account", "login failed")
			return nil, ErrInvalidCredentials
		}
		l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to load account")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		audit.LogAdmin(ctx, audit.ActionLoginFailed, username, "", "wrong password", "login failed")
		return nil, ErrInvalidCredentials
	}

	until, err := s.users.BannedUntil(ctx, username)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to check ban")
		return nil, err
	}
	if until.After(s.now()) {
		return nil, ErrBanned
	}

	token, expiresAt, err := s.tokens.Issue(username)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to issue token")
		return nil, err
	}

	audit.Log(ctx, audit.ActionLogin, username, "user logged in")

	return &domain.LoginResponse{Token: token, ExpiresAt: expiresAt, Username: username}, nil
}
