package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

func TestAuthenticate(t *testing.T) {
	tokens, err := jwt.NewManager("secret", time.Hour, "")
	require.NoError(t, err)
	a := NewAuthenticator(tokens)

	alice, _, err := tokens.Issue("alice")
	require.NoError(t, err)
	bob, _, err := tokens.Issue("bob")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/chat/ws?token="+alice, nil)
	username, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	r = httptest.NewRequest(http.MethodGet, "/chat/ws", nil)
	r.Header.Set("Authorization", "Bearer "+bob)
	username, err = a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "bob", username)

	// Query parameter takes precedence.
	r = httptest.NewRequest(http.MethodGet, "/chat/ws?token="+alice, nil)
	r.Header.Set("Authorization", "Bearer "+bob)
	username, err = a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestAuthenticateRejects(t *testing.T) {
	tokens, err := jwt.NewManager("secret", time.Hour, "")
	require.NoError(t, err)
	a := NewAuthenticator(tokens)

	expiredIssuer, err := jwt.NewManager("secret", time.Minute, "", jwt.WithClock(func() time.Time {
		return time.Now().Add(-time.Hour)
	}))
	require.NoError(t, err)
	expired, _, err := expiredIssuer.Issue("alice")
	require.NoError(t, err)

	cases := []struct {
		name   string
		target string
		reason string
	}{
		{"missing", "/chat/ws", "missing"},
		{"garbage", "/chat/ws?token=abc", "invalid"},
		{"expired", "/chat/ws?token=" + expired, "expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Authenticate(httptest.NewRequest(http.MethodGet, tc.target, nil))
			require.ErrorIs(t, err, ErrAuthRejected)
			assert.Equal(t, tc.reason, Reason(err))
		})
	}
}
