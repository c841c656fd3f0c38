// Package service runs wizard requests: it guards step access, merges posted
// values into the cached model, advances the cursor and hands finished models
// to the back office.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taxportal/internal/audit"
	"taxportal/internal/device"
	"taxportal/internal/platform/metrics"
	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/models"
	dErrors "taxportal/pkg/domain-errors"
	"taxportal/pkg/platform/sentinel"
	"taxportal/pkg/requestcontext"
)

// DefaultTTL is used when no TTL option is given.
const DefaultTTL = 60 * time.Minute

// Service drives every registered wizard.
type Service struct {
	flows   Flows
	store   Store
	office  BackOffice
	audit   AuditPublisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	devices *device.Service
	ttl     time.Duration
	ttlFor  TTLResolver
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTTL sets the default cache lifetime and optional per-wizard overrides.
func WithTTL(ttl time.Duration, overrides TTLResolver) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
		s.ttlFor = overrides
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

// WithDevices enables device fingerprints on audit events.
func WithDevices(d *device.Service) Option {
	return func(s *Service) {
		s.devices = d
	}
}

func New(flows Flows, store Store, office BackOffice, opts ...Option) *Service {
	s := &Service{
		flows:   flows,
		store:   store,
		office:  office,
		logger:  slog.Default(),
		devices: device.NewService(false),
		ttl:     DefaultTTL,
		tracer:  otel.Tracer("taxportal/wizard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start discards any cached run and opens a new one at the first step.
func (s *Service) Start(ctx context.Context, wizard, session string, params models.Document) (*models.Entry, error) {
	ctx, span := s.startSpan(ctx, "wizard.Start", wizard, "")
	entry, err := s.start(ctx, wizard, session, params)
	endSpan(span, err)
	return entry, err
}

func (s *Service) start(ctx context.Context, wizard, session string, params models.Document) (*models.Entry, error) {
	seq, key, err := s.resolve(wizard, session)
	if err != nil {
		return nil, err
	}
	doc, err := seq.Setup(params)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to prepare wizard")
	}
	now := requestcontext.Now(ctx)
	entry := &models.Entry{
		Wizard:    wizard,
		Step:      seq.First(),
		Model:     doc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, key, entry); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.WizardsStarted.WithLabelValues(wizard).Inc()
	}
	s.logger.InfoContext(ctx, "wizard started", "wizard", wizard, "request_id", requestcontext.RequestID(ctx))
	s.emit(ctx, audit.ActionStarted, key, entry.Step, "")
	return entry, nil
}

// Show returns the view state of step.
func (s *Service) Show(ctx context.Context, wizard, session, step string) (*models.View, error) {
	ctx, span := s.startSpan(ctx, "wizard.Show", wizard, step)
	view, err := s.show(ctx, wizard, session, step)
	endSpan(span, err)
	return view, err
}

func (s *Service) show(ctx context.Context, wizard, session, step string) (*models.View, error) {
	seq, key, err := s.resolve(wizard, session)
	if err != nil {
		return nil, err
	}
	entry, err := s.guard(ctx, seq, key, step)
	if err != nil {
		return nil, err
	}
	return &models.View{
		Wizard:    wizard,
		Step:      step,
		Previous:  entry.Previous(step),
		Fields:    seq.Fields(step),
		Model:     entry.Model,
		Reference: entry.Reference,
	}, nil
}

// Cancel ends the run. Cancelling a wizard that is not cached is not an error.
func (s *Service) Cancel(ctx context.Context, wizard, session string) error {
	ctx, span := s.startSpan(ctx, "wizard.Cancel", wizard, "")
	_, key, err := s.resolve(wizard, session)
	if err == nil {
		err = s.store.Delete(ctx, key)
		if err != nil {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel wizard")
		}
	}
	endSpan(span, err)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.WizardsCancelled.WithLabelValues(wizard).Inc()
	}
	s.emit(ctx, audit.ActionCancelled, key, "", "")
	return nil
}

// Inspect returns the cached entry without the step guard, for support staff.
func (s *Service) Inspect(ctx context.Context, wizard, session string) (*models.Entry, error) {
	_, key, err := s.resolve(wizard, session)
	if err != nil {
		return nil, err
	}
	entry, err := s.store.Load(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no cached wizard for session")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wizard")
	}
	return entry, nil
}

func (s *Service) resolve(wizard, session string) (flow.Sequence, models.Key, error) {
	seq, err := s.flows.Get(wizard)
	if err != nil {
		return nil, models.Key{}, err
	}
	if session == "" {
		return nil, models.Key{}, dErrors.New(dErrors.CodeUnauthorized, "missing wizard session")
	}
	return seq, models.Key{Wizard: wizard, Session: session}, nil
}

func (s *Service) ttlOf(wizard string) time.Duration {
	if s.ttlFor == nil {
		return s.ttl
	}
	return s.ttlFor.TTLFor(wizard, s.ttl)
}

// save re-caches entry with the wizard's TTL and maps store facts to domain errors.
func (s *Service) save(ctx context.Context, key models.Key, entry *models.Entry) error {
	err := s.store.Save(ctx, key, entry, s.ttlOf(key.Wizard))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrConflict):
		if s.metrics != nil {
			s.metrics.SaveConflicts.WithLabelValues(key.Wizard).Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeConflict, "the form was changed in another window")
	case errors.Is(err, sentinel.ErrNotFound):
		return &models.RedirectError{Wizard: key.Wizard, Reason: models.ReasonNoSession}
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save wizard")
	}
}

func (s *Service) emit(ctx context.Context, action audit.Action, key models.Key, step, reference string) {
	if s.audit == nil {
		return
	}
	ua := requestcontext.UserAgent(ctx)
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    action,
		Wizard:    key.Wizard,
		Session:   key.Session,
		Step:      step,
		Reference: reference,
		RequestID: requestcontext.RequestID(ctx),
		Device:    device.ParseUserAgent(ua),
		DeviceFP:  s.devices.Fingerprint(ua),
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func (s *Service) startSpan(ctx context.Context, name, wizard, step string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("wizard", wizard)}
	if step != "" {
		attrs = append(attrs, attribute.String("step", step))
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan marks the span failed for errors that are not part of normal
// navigation (redirects, validation, conflicts).
func endSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	var redirect *models.RedirectError
	var invalid *models.ValidationError
	if errors.As(err, &redirect) || errors.As(err, &invalid) {
		span.SetAttributes(attribute.String("outcome", "rejected"))
		return
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeUnavailable) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.String("outcome", "rejected"))
}
