package backoffice

import (
	"context"
	"errors"
	"log/slog"

	"taxportal/pkg/platform/circuit"
	"taxportal/pkg/platform/sentinel"
)

// Guarded fails fast with sentinel.ErrUnavailable while the breaker is open.
// Not-found and conflict answers are normal replies and count as successes.
type Guarded struct {
	next    Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(next Client, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	if !g.breaker.Allow() {
		return Receipt{}, sentinel.ErrUnavailable
	}
	r, err := g.next.Submit(ctx, sub)
	g.record(err)
	return r, err
}

func (g *Guarded) SaveDraft(ctx context.Context, draft Draft) (string, error) {
	if !g.breaker.Allow() {
		return "", sentinel.ErrUnavailable
	}
	ref, err := g.next.SaveDraft(ctx, draft)
	g.record(err)
	return ref, err
}

func (g *Guarded) LoadDraft(ctx context.Context, form, reference string) (Draft, error) {
	if !g.breaker.Allow() {
		return Draft{}, sentinel.ErrUnavailable
	}
	d, err := g.next.LoadDraft(ctx, form, reference)
	g.record(err)
	return d, err
}

func (g *Guarded) record(err error) {
	if err == nil || errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.Info("back office circuit closed", "breaker", g.breaker.Name())
		}
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.Warn("back office circuit opened", "breaker", g.breaker.Name(), "error", err)
	}
}
