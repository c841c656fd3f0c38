package service

import (
	"context"
	"time"

	"taxportal/internal/audit"
	"taxportal/internal/backoffice"
	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/models"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Store caches wizard entries between requests.
type Store interface {
	Load(ctx context.Context, key models.Key) (*models.Entry, error)
	Save(ctx context.Context, key models.Key, entry *models.Entry, ttl time.Duration) error
	Delete(ctx context.Context, key models.Key) error
}

// BackOffice receives completed models and parks drafts.
type BackOffice interface {
	Submit(ctx context.Context, sub backoffice.Submission) (backoffice.Receipt, error)
	SaveDraft(ctx context.Context, draft backoffice.Draft) (string, error)
	LoadDraft(ctx context.Context, form, reference string) (backoffice.Draft, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Flows resolves a wizard name to its step table.
type Flows interface {
	Get(name string) (flow.Sequence, error)
}

// TTLResolver picks the cache lifetime of a wizard.
type TTLResolver interface {
	TTLFor(name string, fallback time.Duration) time.Duration
}
