package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

const testSecret = "test-secret"

type stubResolver struct {
	roles map[string]string
	err   error
}

func (s stubResolver) ResolveRole(_ context.Context, userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	role, ok := s.roles[userID]
	if !ok {
		return "", errors.Unauthorized("account no longer exists")
	}
	return role, nil
}

func generateTestToken(t *testing.T, secret, userID, role string, expired bool) string {
	t.Helper()
	issuer := NewTokenIssuer(secret, time.Hour)
	if expired {
		issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	}
	token, _, err := issuer.Sign(userID, role)
	require.NoError(t, err)
	return token
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", GetUserID(r.Context()))
		w.Header().Set("X-Role", GetUserRole(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTokenIssuerSign(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 48*time.Hour)
	token, expires, err := issuer.Sign("u1", RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), expires, time.Minute)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "u1", claims.Subject)
}

func TestNewTokenIssuerDefaultTTL(t *testing.T) {
	assert.Equal(t, 48*time.Hour, NewTokenIssuer(testSecret, 0).ttl)
}

func TestAuthMiddleware_AnonymousPassesThrough(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil, logger.Discard(), nil)
	rec := serve(m.Handler(echoIdentity()), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-User"))
}

func TestAuthMiddleware_InvalidHeaderFormat(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil, logger.Discard(), nil)
	for _, header := range []string{"Basic abc", "Bearer", "Bearer   ", "token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		m.Handler(echoIdentity()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.Equal(t, "UNAUTHORIZED", gjson.Get(rec.Body.String(), "error.code").String(), header)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil, logger.Discard(), nil)
	rec := serve(m.Handler(echoIdentity()), generateTestToken(t, testSecret, "u1", RoleUser, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Header().Get("X-User"))
	assert.Equal(t, RoleUser, rec.Header().Get("X-Role"))
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil, logger.Discard(), nil)
	cases := map[string]string{
		"expired":   generateTestToken(t, testSecret, "u1", RoleUser, true),
		"wrong key": generateTestToken(t, "other-secret", "u1", RoleUser, false),
		"garbage":   "not.a.token",
	}
	for name, token := range cases {
		rec := serve(m.Handler(echoIdentity()), token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Equal(t, "INVALID_TOKEN", gjson.Get(rec.Body.String(), "error.code").String(), name)
	}
}

func TestAuthMiddleware_ResolverOverridesTokenRole(t *testing.T) {
	resolver := stubResolver{roles: map[string]string{"u1": RoleUser}}
	m := NewAuthMiddleware(testSecret, resolver, logger.Discard(), nil)

	// A token minted while the user was an admin no longer grants admin.
	rec := serve(m.Handler(echoIdentity()), generateTestToken(t, testSecret, "u1", RoleAdmin, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RoleUser, rec.Header().Get("X-Role"))
}

func TestAuthMiddleware_ResolverRejectsDeletedAccount(t *testing.T) {
	m := NewAuthMiddleware(testSecret, stubResolver{roles: map[string]string{}}, logger.Discard(), nil)
	rec := serve(m.Handler(echoIdentity()), generateTestToken(t, testSecret, "gone", RoleUser, false))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	m = NewAuthMiddleware(testSecret, stubResolver{err: errors.Forbidden("account is disabled")}, logger.Discard(), nil)
	rec = serve(m.Handler(echoIdentity()), generateTestToken(t, testSecret, "u1", RoleUser, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthMiddleware_SkipPaths(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil, logger.Discard(), []string{"/healthz"})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	m.Handler(echoIdentity()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireUser(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil, logger.Discard(), nil)
	h := m.Handler(RequireUser(echoIdentity()))

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusOK, serve(h, generateTestToken(t, testSecret, "u1", RoleUser, false)).Code)
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil, logger.Discard(), nil)
	h := m.Handler(RequireAdmin(echoIdentity()))

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)

	rec := serve(h, generateTestToken(t, testSecret, "u1", RoleUser, false))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", gjson.Get(rec.Body.String(), "error.code").String())

	assert.Equal(t, http.StatusOK, serve(h, generateTestToken(t, testSecret, "a1", RoleAdmin, false)).Code)
}

func TestAuthMiddleware_PreservesTraceID(t *testing.T) {
	m := NewAuthMiddleware(testSecret, nil, logger.Discard(), nil)
	tracing := NewTracingMiddleware(logger.Discard())

	var seen string
	h := tracing.Handler(m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.GetTraceID(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	req.Header.Set("Authorization", "Bearer "+generateTestToken(t, testSecret, "u1", RoleUser, false))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", seen)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Trace-ID"))
}
