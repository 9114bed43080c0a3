package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domremont/backend/internal/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour)

	userID, err := uuid.NewV4()
	require.NoError(t, err)

	token, err := m.Issue(userID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestValidateRejects(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour)

	userID, err := uuid.NewV4()
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, err := m.Validate("not.a.token")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := auth.NewTokenManager("other-secret", time.Hour)
		token, err := other.Issue(userID)
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := auth.NewTokenManager("test-secret", -time.Minute)
		token, err := expired.Issue(userID)
		require.NoError(t, err)

		_, err = m.Validate(token)
		assert.Error(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour)

	userID, err := uuid.NewV4()
	require.NoError(t, err)

	token, err := m.Issue(userID)
	require.NoError(t, err)

	var gotID uuid.UUID
	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = auth.UserIDFromContext(r.Context())
	})

	t.Run("valid token puts user in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		m.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, gotOK)
		assert.Equal(t, userID, gotID)
	})

	t.Run("missing token passes request through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		m.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

		assert.False(t, gotOK)
	})

	t.Run("invalid token passes request through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bogus")

		m.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

		assert.False(t, gotOK)
	})
}
