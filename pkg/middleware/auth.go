package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

const (
	UsernameKey    = pkglog.FieldUsername
	AuthHeaderKey  = "Authorization"
	AdminHeaderKey = "X-Admin-Token"
	BearerPrefix   = "Bearer "
)

// BanChecker reports until when a user is banned. A zero time means the
// user is not banned.
type BanChecker interface {
	BannedUntil(ctx context.Context, username string) (time.Time, error)
}

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// AuthMiddleware validates JWT tokens with the shared secret and rejects
// banned users.
type AuthMiddleware struct {
	tokens TokenValidator
	bans   BanChecker
	now    func() time.Time
}

// NewAuthMiddleware creates a new auth middleware. bans may be nil.
func NewAuthMiddleware(tokens TokenValidator, bans BanChecker) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, bans: bans, now: time.Now}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix)), true
}

// RequireAuth returns a Gin middleware that validates JWT tokens.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			response.AbortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
			return
		}

		token, ok := BearerToken(authHeader)
		if !ok {
			response.AbortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization format")
			return
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "token has expired"
			}
			response.AbortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", msg)
			return
		}

		username := claims.Username()
		if m.bans != nil {
			until, err := m.bans.BannedUntil(c.Request.Context(), username)
			if err != nil {
				l := pkglog.Ctx(c.Request.Context())
				l.Error().Err(err).Str(pkglog.FieldUsername, username).Msg("ban lookup failed")
				response.AbortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to check user status")
				return
			}
			if until.After(m.now()) {
				response.AbortWithError(c, http.StatusForbidden, "BANNED", "banned")
				return
			}
		}

		c.Set(UsernameKey, username)

		c.Next()
	}
}

// RequireAdmin allows only the configured admin username presenting the
// admin token. It must run after RequireAuth.
func RequireAdmin(adminUsername, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" || GetUsername(c) != adminUsername || c.GetHeader(AdminHeaderKey) != adminToken {
			response.AbortWithError(c, http.StatusForbidden, "FORBIDDEN", "admin only")
			return
		}
		c.Next()
	}
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(UsernameKey); exists {
		if s, ok := username.(string); ok {
			return s
		}
	}
	return ""
}
