package backoffice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"taxportal/internal/wizard/models"
	"taxportal/pkg/platform/sentinel"
	txcontext "taxportal/pkg/platform/tx"
)

const schema = `
CREATE TABLE IF NOT EXISTS backoffice_submissions (
	reference    TEXT PRIMARY KEY,
	form         TEXT NOT NULL,
	payload      JSONB NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS backoffice_drafts (
	reference TEXT PRIMARY KEY,
	form      TEXT NOT NULL,
	payload   JSONB NOT NULL,
	step      TEXT NOT NULL,
	history   TEXT[] NOT NULL DEFAULT '{}',
	saved_at  TIMESTAMPTZ NOT NULL
);`

const uniqueViolation = "23505"

// Postgres stores submissions and drafts in two tables.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate back office schema: %w", err)
	}
	return nil
}

// Submit records the submission and removes the draft it finalises in one
// transaction.
func (p *Postgres) Submit(ctx context.Context, sub Submission) (Receipt, error) {
	payload, err := json.Marshal(sub.Model)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode submission: %w", err)
	}
	ref := sub.Reference
	if ref == "" {
		ref = NewReference(sub.Form)
	}
	receipt := Receipt{Form: sub.Form, Reference: ref, SubmittedAt: p.now().UTC()}

	err = txcontext.Run(ctx, p.db, func(ctx context.Context) error {
		db := txcontext.Use(ctx, p.db)
		_, err := db.ExecContext(ctx,
			`INSERT INTO backoffice_submissions (reference, form, payload, submitted_at) VALUES ($1, $2, $3, $4)`,
			ref, sub.Form, payload, receipt.SubmittedAt)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, `DELETE FROM backoffice_drafts WHERE reference = $1`, ref)
		return err
	})
	if isUniqueViolation(err) {
		return Receipt{}, sentinel.ErrConflict
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("insert submission: %w", err)
	}
	return receipt, nil
}

// SaveDraft upserts a draft. Drafts cannot change form or reuse the reference
// of a completed submission.
func (p *Postgres) SaveDraft(ctx context.Context, draft Draft) (string, error) {
	payload, err := json.Marshal(draft.Model)
	if err != nil {
		return "", fmt.Errorf("encode draft: %w", err)
	}
	if draft.Reference == "" {
		draft.Reference = NewReference(draft.Form)
	}
	history := draft.History
	if history == nil {
		history = []string{}
	}

	var submitted bool
	err = p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM backoffice_submissions WHERE reference = $1)`,
		draft.Reference).Scan(&submitted)
	if err != nil {
		return "", fmt.Errorf("check submission: %w", err)
	}
	if submitted {
		return "", sentinel.ErrConflict
	}

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO backoffice_drafts (reference, form, payload, step, history, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (reference) DO UPDATE
		SET payload = EXCLUDED.payload, step = EXCLUDED.step, history = EXCLUDED.history, saved_at = EXCLUDED.saved_at
		WHERE backoffice_drafts.form = EXCLUDED.form`,
		draft.Reference, draft.Form, payload, draft.Step, pq.Array(history), p.now().UTC())
	if err != nil {
		return "", fmt.Errorf("save draft: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", sentinel.ErrConflict
	}
	return draft.Reference, nil
}

func (p *Postgres) LoadDraft(ctx context.Context, form, reference string) (Draft, error) {
	var (
		d       Draft
		payload []byte
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT reference, form, payload, step, history, saved_at FROM backoffice_drafts WHERE reference = $1 AND form = $2`,
		reference, form).Scan(&d.Reference, &d.Form, &payload, &d.Step, pq.Array(&d.History), &d.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}
	d.Model = models.Document{}
	if err := json.Unmarshal(payload, &d.Model); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
