package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalrevolution/dr-backend/pkg/auth"
	"github.com/digitalrevolution/dr-backend/pkg/config"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
)

var jwtCfg = config.JWTConfig{Secret: "secret", Issuer: "https://id.digitalrevolution.test"}

type captured struct {
	called bool
	user   string
	guest  string
}

func capture(c *captured) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.user = UserIDFromContext(r.Context())
		c.guest = GuestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func mint(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, issued time.Time) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, issued, time.Hour, userID, "ada@example.org")
	require.NoError(t, err)
	return token
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	var c captured
	handler := Auth(jwtCfg, logger.Nop())(capture(&c))

	for _, header := range []string{"", "Bearer", "Bearer not-a-jwt", "Basic Zm9vOmJhcg=="} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
	assert.False(t, c.called)
}

func TestAuthRejectsExpiredAndForeignTokens(t *testing.T) {
	var c captured
	handler := Auth(jwtCfg, nil)(capture(&c))

	foreign := config.JWTConfig{Secret: "other", Issuer: jwtCfg.Issuer}
	for _, token := range []string{
		mint(t, foreign, uuid.New(), time.Now()),
		mint(t, jwtCfg, uuid.New(), time.Now().Add(-2*time.Hour)),
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.False(t, c.called)
}

func TestAuthSeedsUserID(t *testing.T) {
	var c captured
	userID := uuid.New()
	handler := Auth(jwtCfg, logger.Nop())(capture(&c))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "bearer "+mint(t, jwtCfg, userID, time.Now()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), c.user)
}

func TestOptionalAuthFallsBackToGuestCookie(t *testing.T) {
	var c captured
	handler := OptionalAuth(jwtCfg, logger.Nop())(capture(&c))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: GuestCookie, Value: "guest-123"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, c.user)
	assert.Equal(t, "guest-123", c.guest)
}

func TestOptionalAuthPrefersToken(t *testing.T) {
	var c captured
	userID := uuid.New()
	handler := OptionalAuth(jwtCfg, nil)(capture(&c))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t, jwtCfg, userID, time.Now()))
	req.AddCookie(&http.Cookie{Name: GuestCookie, Value: "guest-123"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, userID.String(), c.user)
	assert.Empty(t, c.guest)
}

func TestOptionalAuthRejectsBadToken(t *testing.T) {
	var c captured
	handler := OptionalAuth(jwtCfg, nil)(capture(&c))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, c.called)
}

func TestOptionalAuthWithoutCredentialsPassesThrough(t *testing.T) {
	var c captured
	handler := OptionalAuth(jwtCfg, nil)(capture(&c))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.True(t, c.called)
	assert.Empty(t, c.user)
	assert.Empty(t, c.guest)
}
