package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "brainblog"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestIssueAndParseToken(t *testing.T) {
	now := time.Now()
	token, err := IssueToken(testSecret, testIssuer, "ops", time.Hour, now)
	require.NoError(t, err)

	sub, err := ParseToken(testSecret, testIssuer, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", sub)

	_, err = ParseToken(testSecret, "other-issuer", token)
	assert.ErrorIs(t, err, errInvalidToken)

	_, err = ParseToken("another-secret", testIssuer, token)
	assert.ErrorIs(t, err, errInvalidToken)

	expired, err := IssueToken(testSecret, testIssuer, "ops", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseToken(testSecret, testIssuer, expired)
	assert.ErrorIs(t, err, errInvalidToken)

	_, err = IssueToken("", testIssuer, "ops", 0, now)
	assert.ErrorIs(t, err, errNotConfigured)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		err    error
	}{
		{"", "", errMissingHeader},
		{"Bearer", "", errHeaderFormat},
		{"Basic abc", "", errHeaderFormat},
		{"Bearer a b", "", errHeaderFormat},
		{"Bearer abc.def.ghi", "abc.def.ghi", nil},
	}
	for _, tt := range tests {
		got, err := bearerToken(tt.header)
		assert.Equal(t, tt.want, got, tt.header)
		assert.ErrorIs(t, err, tt.err, tt.header)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{APIJWTSecret: testSecret, APIJWTIssuer: testIssuer}
	valid, err := IssueToken(testSecret, testIssuer, "admin", time.Hour, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"no header", "", http.StatusUnauthorized, "Unauthorized: Missing Authorization header"},
		{"bad scheme", "Token " + valid, http.StatusUnauthorized, "Unauthorized: Invalid Authorization header format"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "Unauthorized: Invalid token"},
		{"no expiry", "Bearer " + sign(t, testSecret, jwt.MapClaims{"sub": "admin", "iss": testIssuer}), http.StatusUnauthorized, "Unauthorized: Invalid token"},
		{"no subject", "Bearer " + sign(t, testSecret, jwt.MapClaims{"iss": testIssuer, "exp": time.Now().Add(time.Hour).Unix()}), http.StatusUnauthorized, "Unauthorized: Missing sub claim"},
		{"valid", "Bearer " + valid, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject string
			handler := AuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject, _ = GetSubject(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "admin", subject)
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestAuthMiddleware_NoSecret(t *testing.T) {
	handler := AuthMiddleware(&config.Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran without a configured secret")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "not configured")
}
