package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthenticator_Require(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	var gotSubject string
	h := auth.Require(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		gotSubject = claims.Subject
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
		wantRes  int
	}{
		{name: "missing token", wantCode: http.StatusUnauthorized, wantRes: ResultError},
		{name: "bad header format", header: "Token abc", wantCode: http.StatusUnauthorized, wantRes: ResultError},
		{name: "garbage token", header: "Bearer invalid.token.here", wantCode: http.StatusUnauthorized, wantRes: ResultError},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, "other", time.Hour), wantCode: http.StatusUnauthorized, wantRes: ResultError},
		{name: "wrong algorithm", header: "Bearer " + signToken(t, jwt.SigningMethodHS512, testSecret, time.Hour), wantCode: http.StatusUnauthorized, wantRes: ResultError},
		{name: "expired", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, -time.Minute), wantCode: http.StatusUnauthorized, wantRes: ResultTokenExpired},
		{name: "valid header", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, time.Hour), wantCode: http.StatusOK},
		{name: "valid query", query: "?token=" + signToken(t, jwt.SigningMethodHS256, testSecret, time.Hour), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(http.MethodGet, "/api/session/current"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "admin", gotSubject)
				return
			}
			assert.Equal(t, tt.wantRes, decodeResult(t, w).Code)
		})
	}
}

func TestAuthenticator_DisabledPassesThrough(t *testing.T) {
	auth := NewAuthenticator("")
	assert.False(t, auth.Enabled())

	called := false
	h := auth.Require(func(w http.ResponseWriter, r *http.Request) { called = true })
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestGateway_ProtectedRoutes(t *testing.T) {
	g, _ := newTestGateway(t, testSecret, false)
	h := g.Handler()

	w := doRequest(t, h, http.MethodGet, "/api/session/current")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 健康检查与客户端入口不需要令牌
	w = doRequest(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ResultSuccess, decodeResult(t, rec).Code)
}
