package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"taxportal/pkg/platform/httputil"
	"taxportal/pkg/requestcontext"
)

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware applies a Policy per client IP. Store failures let the request
// through.
type Middleware struct {
	store    Store
	logger   *slog.Logger
	disabled bool
	onReject func(class string)
}

type Option func(*Middleware)

// WithDisabled turns limiting off, e.g. for local demos.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithRejectHook is called with the policy class for every rejected request.
func WithRejectHook(fn func(class string)) Option {
	return func(m *Middleware) {
		if fn != nil {
			m.onReject = fn
		}
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{store: store, logger: logger, onReject: func(string) {}}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit returns middleware enforcing p.
func (m *Middleware) Limit(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			res, err := m.store.Allow(ctx, p.Class+":"+ip, p.Limit, p.Window)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"class", p.Class,
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				m.onReject(p.Class)
				m.logger.WarnContext(ctx, "rate limit exceeded", "class", p.Class, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests. Please try again later.",
					RetryAfter: res.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
