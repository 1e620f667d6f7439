package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const SubjectKey contextKey = "subject"

// DefaultTokenTTL is the lifetime of tokens minted by IssueToken callers that
// do not pass one.
const DefaultTokenTTL = 24 * time.Hour

var (
	errNotConfigured = errors.New("API authentication is not configured")
	errMissingHeader = errors.New("Missing Authorization header")
	errHeaderFormat  = errors.New("Invalid Authorization header format")
	errInvalidToken  = errors.New("Invalid token")
	errMissingSub    = errors.New("Missing sub claim")
)

// IssueToken signs an HS256 admin token for subject.
func IssueToken(secret, issuer, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errNotConfigured
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates signature, issuer and expiry and returns the subject.
func ParseToken(secret, issuer, raw string) (string, error) {
	if secret == "" {
		return "", errNotConfigured
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", errMissingSub
	}
	return claims.Subject, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", errHeaderFormat
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, err error) {
	msg := err.Error()
	if errors.Is(err, errInvalidToken) {
		msg = errInvalidToken.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Unauthorized: " + msg})
}

// AuthMiddleware guards the admin routes with tokens signed by
// API_JWT_SECRET and issued by API_JWT_ISSUER.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.APIJWTSecret == "" {
				unauthorized(w, errNotConfigured)
				return
			}
			raw, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				unauthorized(w, err)
				return
			}
			subject, err := ParseToken(cfg.APIJWTSecret, cfg.APIJWTIssuer, raw)
			if err != nil {
				unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), SubjectKey, subject)))
		})
	}
}

func GetSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubjectKey).(string)
	return subject, ok
}
