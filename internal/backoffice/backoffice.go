// Package backoffice is the portal's side of the back office: it accepts
// completed returns and claims and keeps drafts users can resume later.
package backoffice

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"taxportal/internal/wizard/models"
)

// Submission is a completed wizard model ready for processing.
// Reference is set when the submission finalises a saved draft.
type Submission struct {
	Form      string
	Reference string
	Model     models.Document
}

// Receipt acknowledges a submission.
type Receipt struct {
	Form        string    `json:"form"`
	Reference   string    `json:"reference"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Draft is a partial model parked in the back office.
type Draft struct {
	Form      string
	Reference string
	Model     models.Document
	Step      string
	History   []string
	SavedAt   time.Time
}

// Client is implemented by every back office backend.
type Client interface {
	Submit(ctx context.Context, sub Submission) (Receipt, error)
	SaveDraft(ctx context.Context, draft Draft) (string, error)
	LoadDraft(ctx context.Context, form, reference string) (Draft, error)
}

// NewReference returns a reference such as "LBTT-1A2B3C4D".
func NewReference(form string) string {
	return strings.ToUpper(form + "-" + uuid.NewString()[:8])
}
