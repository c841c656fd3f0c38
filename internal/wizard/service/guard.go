package service

import (
	"context"
	"errors"

	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/models"
	dErrors "taxportal/pkg/domain-errors"
	"taxportal/pkg/platform/sentinel"
)

// guard loads the cached entry for a step request. A request without a cached
// entry, or for a step the user has not reached, becomes a RedirectError.
func (s *Service) guard(ctx context.Context, seq flow.Sequence, key models.Key, step string) (*models.Entry, error) {
	if !seq.Has(step) {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown step "+step)
	}
	entry, err := s.store.Load(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.redirect(ctx, key.Wizard, "", models.ReasonNoSession)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wizard")
	}
	if !entry.Reached(step) {
		return nil, s.redirect(ctx, key.Wizard, entry.Step, models.ReasonNotReached)
	}
	return entry, nil
}

// loadAny loads the entry without a step check.
func (s *Service) loadAny(ctx context.Context, key models.Key) (*models.Entry, error) {
	entry, err := s.store.Load(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.redirect(ctx, key.Wizard, "", models.ReasonNoSession)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wizard")
	}
	return entry, nil
}

func (s *Service) redirect(ctx context.Context, wizard, step string, reason models.RedirectReason) error {
	if s.metrics != nil {
		s.metrics.GuardRedirects.WithLabelValues(wizard, string(reason)).Inc()
	}
	s.logger.DebugContext(ctx, "wizard redirect", "wizard", wizard, "target", step, "reason", reason)
	return &models.RedirectError{Wizard: wizard, Step: step, Reason: reason}
}
