package session

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"taxportal/pkg/requestcontext"
)

type SessionSuite struct {
	suite.Suite
	now     time.Time
	manager *Manager
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.manager = NewManager("test-key", time.Hour, logger, WithClock(func() time.Time { return s.now }))
}

func (s *SessionSuite) serve(cookie *http.Cookie) (string, *httptest.ResponseRecorder) {
	var seen string
	h := s.manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.SessionID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/wizards/lbtt-return/start", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec
}

func (s *SessionSuite) TestRoundTrip() {
	token, err := s.manager.Issue("session-1")
	s.Require().NoError(err)

	id, err := s.manager.Verify(token)
	s.Require().NoError(err)
	s.Equal("session-1", id)
}

func (s *SessionSuite) TestMiddleware() {
	s.Run("new visitor gets a session cookie", func() {
		id, rec := s.serve(nil)
		s.NotEmpty(id)
		cookies := rec.Result().Cookies()
		s.Require().Len(cookies, 1)
		s.Equal(CookieName, cookies[0].Name)
		s.True(cookies[0].HttpOnly)
	})

	s.Run("valid cookie keeps the session", func() {
		token, err := s.manager.Issue("session-2")
		s.Require().NoError(err)

		id, rec := s.serve(&http.Cookie{Name: CookieName, Value: token})
		s.Equal("session-2", id)
		s.Empty(rec.Result().Cookies())
	})

	s.Run("tampered cookie starts a new session", func() {
		token, err := s.manager.Issue("session-3")
		s.Require().NoError(err)

		id, rec := s.serve(&http.Cookie{Name: CookieName, Value: token + "x"})
		s.NotEqual("session-3", id)
		s.Len(rec.Result().Cookies(), 1)
	})

	s.Run("expired cookie starts a new session", func() {
		token, err := s.manager.Issue("session-4")
		s.Require().NoError(err)
		s.now = s.now.Add(2 * time.Hour)

		id, _ := s.serve(&http.Cookie{Name: CookieName, Value: token})
		s.NotEqual("session-4", id)
	})
}
