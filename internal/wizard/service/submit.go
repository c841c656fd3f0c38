package service

import (
	"context"
	"time"

	"taxportal/internal/audit"
	"taxportal/internal/backoffice"
	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/models"
	dErrors "taxportal/pkg/domain-errors"
	"taxportal/pkg/requestcontext"
)

const (
	outcomeAccepted = "accepted"
	outcomeInvalid  = "invalid"
)

// Outcome tells the caller where the user goes next.
// Exactly one of Next and Receipt is set.
type Outcome struct {
	Next    string
	Receipt *backoffice.Receipt
}

// Submit merges params into the cached model for step. Only the step's
// permitted fields are taken; fields of other steps are left alone.
//
// Invalid input is never cached: the caller gets a ValidationError holding the
// merged model. Valid input advances the cursor, or on the last step forwards
// the model to the back office and drops the cached entry.
func (s *Service) Submit(ctx context.Context, wizard, session, step string, params models.Document) (*Outcome, error) {
	ctx, span := s.startSpan(ctx, "wizard.Submit", wizard, step)
	if s.metrics != nil {
		defer s.metrics.ObserveSubmit(wizard, time.Now())
	}
	out, err := s.submit(ctx, wizard, session, step, params)
	endSpan(span, err)
	return out, err
}

func (s *Service) submit(ctx context.Context, wizard, session, step string, params models.Document) (*Outcome, error) {
	seq, key, err := s.resolve(wizard, session)
	if err != nil {
		return nil, err
	}
	entry, err := s.guard(ctx, seq, key, step)
	if err != nil {
		return nil, err
	}

	merged := entry.Model.Clone()
	if err := flow.Merge(merged, flow.Permit(params, seq.Fields(step))); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to merge answers")
	}
	normalized, errs, err := seq.Normalize(step, merged)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read answers")
	}
	if len(errs) > 0 {
		s.countSubmission(wizard, step, outcomeInvalid)
		return nil, &models.ValidationError{Wizard: wizard, Step: step, Errors: errs, Model: merged}
	}

	next, done, err := seq.Next(step, normalized)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find next step")
	}
	entry.Model = normalized
	entry.UpdatedAt = requestcontext.Now(ctx)
	if !done {
		entry.Advance(step, next)
		if err := s.save(ctx, key, entry); err != nil {
			return nil, err
		}
		s.countSubmission(wizard, step, outcomeAccepted)
		return &Outcome{Next: next}, nil
	}
	return s.complete(ctx, seq, key, entry, step)
}

// complete re-validates the whole path and forwards the model. A back office
// failure keeps the entry cached at the final step so the user can retry
// under the same reference.
func (s *Service) complete(ctx context.Context, seq flow.Sequence, key models.Key, entry *models.Entry, step string) (*Outcome, error) {
	badStep, errs, err := flow.ValidatePath(seq, entry.Model)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check answers")
	}
	if len(errs) > 0 {
		s.countSubmission(key.Wizard, step, outcomeInvalid)
		return nil, &models.ValidationError{Wizard: key.Wizard, Step: badStep, Errors: errs, Model: entry.Model}
	}

	// The reference is cached before forwarding: a concurrent submit of the
	// same run loses the save, a later one repeats the reference and the
	// back office refuses it.
	if entry.Reference == "" {
		entry.Reference = backoffice.NewReference(seq.Form())
	}
	if err := s.save(ctx, key, entry); err != nil {
		return nil, err
	}

	receipt, err := s.office.Submit(ctx, backoffice.Submission{
		Form:      seq.Form(),
		Reference: entry.Reference,
		Model:     entry.Model,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.BackOfficeErrors.WithLabelValues("submit").Inc()
		}
		s.logger.ErrorContext(ctx, "back office submit failed", "wizard", key.Wizard, "reference", entry.Reference, "error", err)
		return nil, backOfficeError(err, "your answers have been kept, please try again")
	}

	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to drop completed wizard", "wizard", key.Wizard, "error", err)
	}
	s.countSubmission(key.Wizard, step, outcomeAccepted)
	if s.metrics != nil {
		s.metrics.WizardsCompleted.WithLabelValues(key.Wizard).Inc()
	}
	s.logger.InfoContext(ctx, "wizard completed", "wizard", key.Wizard, "reference", receipt.Reference)
	s.emit(ctx, audit.ActionCompleted, key, step, receipt.Reference)
	return &Outcome{Receipt: &receipt}, nil
}

func (s *Service) countSubmission(wizard, step, outcome string) {
	if s.metrics != nil {
		s.metrics.StepSubmissions.WithLabelValues(wizard, step, outcome).Inc()
	}
}
