package backoffice

import (
	"context"
	"slices"
	"sync"
	"time"

	"taxportal/pkg/platform/sentinel"
)

type submitted struct {
	receipt Receipt
	sub     Submission
}

// InMemory is a back office held in process memory.
type InMemory struct {
	mu          sync.Mutex
	submissions map[string]submitted
	drafts      map[string]Draft
	now         func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		submissions: make(map[string]submitted),
		drafts:      make(map[string]Draft),
		now:         time.Now,
	}
}

func (b *InMemory) Submit(_ context.Context, sub Submission) (Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ref := sub.Reference
	if ref == "" {
		ref = NewReference(sub.Form)
	}
	if _, dup := b.submissions[ref]; dup {
		return Receipt{}, sentinel.ErrConflict
	}
	receipt := Receipt{Form: sub.Form, Reference: ref, SubmittedAt: b.now()}
	sub.Model = sub.Model.Clone()
	b.submissions[ref] = submitted{receipt: receipt, sub: sub}
	delete(b.drafts, ref)
	return receipt, nil
}

func (b *InMemory) SaveDraft(_ context.Context, draft Draft) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if draft.Reference == "" {
		draft.Reference = NewReference(draft.Form)
	}
	if existing, ok := b.drafts[draft.Reference]; ok && existing.Form != draft.Form {
		return "", sentinel.ErrConflict
	}
	if _, done := b.submissions[draft.Reference]; done {
		return "", sentinel.ErrConflict
	}
	draft.Model = draft.Model.Clone()
	draft.History = slices.Clone(draft.History)
	draft.SavedAt = b.now()
	b.drafts[draft.Reference] = draft
	return draft.Reference, nil
}

func (b *InMemory) LoadDraft(_ context.Context, form, reference string) (Draft, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.drafts[reference]
	if !ok || d.Form != form {
		return Draft{}, sentinel.ErrNotFound
	}
	d.Model = d.Model.Clone()
	d.History = slices.Clone(d.History)
	return d, nil
}

// Submission returns what was submitted under reference.
func (b *InMemory) Submission(reference string) (Submission, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.submissions[reference]
	return s.sub, ok
}
