package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key")

func signedSessionToken(t *testing.T, sub string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	s, err := token.SignedString(testSigningKey)
	require.NoError(t, err)
	return s
}

func sessionRequest(cookieName, value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if value != "" {
		r.AddCookie(&http.Cookie{Name: cookieName, Value: value})
	}
	return r
}

func TestClient_UserFromRequest(t *testing.T) {
	c := NewClient(Config{SigningKey: testSigningKey})

	user, err := c.UserFromRequest(sessionRequest("__session", signedSessionToken(t, "user_123", time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user_123", user.ID)
}

func TestClient_UserFromRequest_NoSession(t *testing.T) {
	c := NewClient(Config{SigningKey: testSigningKey})

	_, err := c.UserFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)
}

// TestPurpose: Validates session token rejection: expired tokens, wrong keys, and garbage all fail closed.
// Scope: Unit Test
// Security: Session forgery resistance (HMAC verification, expiry enforcement)
// Expected: Every unusable token yields ErrInvalidSession, never a user.
// Test Case ID: AUT-04
func TestClient_UserFromRequest_RejectsBadTokens(t *testing.T) {
	c := NewClient(Config{SigningKey: testSigningKey})

	expired := signedSessionToken(t, "user_123", -time.Hour)
	_, err := c.UserFromRequest(sessionRequest("__session", expired))
	assert.ErrorIs(t, err, ErrInvalidSession)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user_123"})
	forged, signErr := other.SignedString([]byte("wrong-key"))
	require.NoError(t, signErr)
	_, err = c.UserFromRequest(sessionRequest("__session", forged))
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = c.UserFromRequest(sessionRequest("__session", "not-a-jwt"))
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestClient_UserFromRequest_MissingSubject(t *testing.T) {
	c := NewClient(Config{SigningKey: testSigningKey})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString(testSigningKey)
	require.NoError(t, err)

	_, err = c.UserFromRequest(sessionRequest("__session", s))
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestClient_Memberships(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/user_123/organization_memberships", r.URL.Path)
		assert.Equal(t, "Bearer mgmt-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"organizationMemberships":[{"organizationId":"org_acme"},{"organizationId":"org_globex"}]}`))
	}))
	defer provider.Close()

	c := NewClient(Config{
		SigningKey: testSigningKey,
		BaseURL:    provider.URL,
		APIKey:     "mgmt-key",
	})

	memberships, err := c.Memberships(context.Background(), "user_123")
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.Equal(t, "org_acme", memberships[0].OrganizationID)
}

func TestClient_Memberships_ProviderError(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer provider.Close()

	c := NewClient(Config{SigningKey: testSigningKey, BaseURL: provider.URL})

	_, err := c.Memberships(context.Background(), "user_123")
	assert.Error(t, err)
}
