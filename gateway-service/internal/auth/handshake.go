package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
)

// TokenQueryParam is the query parameter carrying the bearer token.
const TokenQueryParam = "token"

var ErrAuthRejected = errors.New("handshake rejected")

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// Authenticator checks the credentials presented with an upgrade request.
type Authenticator struct {
	tokens TokenValidator
}

func NewAuthenticator(tokens TokenValidator) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate returns the username bound to the request's token. The
// query parameter wins over the Authorization header. Errors wrap both
// ErrAuthRejected and the jwt cause.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	token := r.URL.Query().Get(TokenQueryParam)
	if token == "" {
		if bearer, ok := middleware.BearerToken(r.Header.Get(middleware.AuthHeaderKey)); ok {
			token = bearer
		}
	}

	claims, err := a.tokens.Validate(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthRejected, err)
	}
	return claims.Username(), nil
}

// Reason maps an authentication error to a short metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrMissingToken):
		return "missing"
	case errors.Is(err, jwt.ErrExpiredToken):
		return "expired"
	default:
		return "invalid"
	}
}
