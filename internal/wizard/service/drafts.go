package service

import (
	"context"
	"errors"
	"slices"

	"taxportal/internal/audit"
	"taxportal/internal/backoffice"
	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/models"
	dErrors "taxportal/pkg/domain-errors"
	"taxportal/pkg/platform/sentinel"
	"taxportal/pkg/requestcontext"
)

// SaveDraft parks the cached model in the back office and remembers the
// reference, so later saves and the final submission reuse it.
func (s *Service) SaveDraft(ctx context.Context, wizard, session string) (string, error) {
	ctx, span := s.startSpan(ctx, "wizard.SaveDraft", wizard, "")
	ref, err := s.saveDraft(ctx, wizard, session)
	endSpan(span, err)
	return ref, err
}

func (s *Service) saveDraft(ctx context.Context, wizard, session string) (string, error) {
	seq, key, err := s.resolve(wizard, session)
	if err != nil {
		return "", err
	}
	entry, err := s.loadAny(ctx, key)
	if err != nil {
		return "", err
	}
	ref, err := s.office.SaveDraft(ctx, backoffice.Draft{
		Form:      seq.Form(),
		Reference: entry.Reference,
		Model:     entry.Model,
		Step:      entry.Step,
		History:   entry.History,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.BackOfficeErrors.WithLabelValues("save_draft").Inc()
		}
		return "", backOfficeError(err, "the draft could not be saved")
	}
	entry.Reference = ref
	entry.UpdatedAt = requestcontext.Now(ctx)
	if err := s.save(ctx, key, entry); err != nil {
		return "", err
	}
	s.emit(ctx, audit.ActionDraftSaved, key, entry.Step, ref)
	return ref, nil
}

// Resume replaces the cached run with a back office draft. The user lands on
// the first step with every step the draft had reached still open.
func (s *Service) Resume(ctx context.Context, wizard, session, reference string) (*Outcome, error) {
	ctx, span := s.startSpan(ctx, "wizard.Resume", wizard, "")
	out, err := s.resume(ctx, wizard, session, reference)
	endSpan(span, err)
	return out, err
}

func (s *Service) resume(ctx context.Context, wizard, session, reference string) (*Outcome, error) {
	seq, key, err := s.resolve(wizard, session)
	if err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "reference is required")
	}
	draft, err := s.office.LoadDraft(ctx, seq.Form(), reference)
	if err != nil {
		if s.metrics != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.BackOfficeErrors.WithLabelValues("load_draft").Inc()
		}
		return nil, backOfficeError(err, "the draft could not be loaded")
	}

	step, history := restoreCursor(seq, draft.Step, draft.History)
	now := requestcontext.Now(ctx)
	model := draft.Model
	if model == nil {
		model = models.Document{}
	}
	entry := &models.Entry{
		Wizard:    wizard,
		Step:      step,
		History:   history,
		Model:     model,
		Reference: draft.Reference,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, key, entry); err != nil {
		return nil, err
	}
	s.emit(ctx, audit.ActionResumed, key, step, draft.Reference)
	return &Outcome{Next: seq.First()}, nil
}

// restoreCursor drops steps the flow no longer knows. A draft whose cursor is
// gone restarts at the first step.
func restoreCursor(seq flow.Sequence, step string, history []string) (string, []string) {
	if !seq.Has(step) {
		return seq.First(), nil
	}
	kept := make([]string, 0, len(history))
	for _, h := range history {
		if seq.Has(h) && h != step && !slices.Contains(kept, h) {
			kept = append(kept, h)
		}
	}
	return step, kept
}

func backOfficeError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "draft not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "reference already used")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
}
