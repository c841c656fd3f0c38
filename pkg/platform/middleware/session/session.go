// Package session issues and verifies the browser session cookie that scopes
// wizard state. The cookie value is an HS256 token whose subject is the
// session id; a missing, tampered or expired cookie starts a new session.
package session

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	request "taxportal/pkg/platform/middleware/request"
	"taxportal/pkg/requestcontext"
)

const (
	// CookieName is the browser cookie carrying the signed session token.
	CookieName = "taxportal_session"

	issuer = "taxportal"
)

var errInvalidSession = errors.New("invalid session token")

// Manager signs and verifies session tokens.
type Manager struct {
	key    []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Manager)

// WithSecureCookie marks the cookie Secure (HTTPS only).
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a Manager signing with key. ttl bounds the cookie lifetime.
func NewManager(key string, ttl time.Duration, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		key:    []byte(key),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue signs a token for sessionID.
func (m *Manager) Issue(sessionID string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})
	return token.SignedString(m.key)
}

// Verify returns the session id carried by a valid token.
func (m *Manager) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.key, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errInvalidSession
	}
	return claims.Subject, nil
}

// Middleware resolves the session id for every request and places it in the
// context. New sessions get a fresh cookie on the response.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID := ""
		if c, err := r.Cookie(CookieName); err == nil {
			sessionID, err = m.Verify(c.Value)
			if err != nil {
				m.logger.InfoContext(ctx, "discarding session cookie",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
			}
		}

		if sessionID == "" {
			sessionID = uuid.NewString()
			token, err := m.Issue(sessionID)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to sign session cookie",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(m.ttl.Seconds()),
			})
		}

		next.ServeHTTP(w, r.WithContext(requestcontext.WithSessionID(ctx, sessionID)))
	})
}
