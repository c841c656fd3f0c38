// Package audit records wizard lifecycle events off the request path.
package audit

import "time"

// Action names a wizard lifecycle event.
type Action string

const (
	ActionStarted    Action = "wizard_started"
	ActionCompleted  Action = "wizard_completed"
	ActionCancelled  Action = "wizard_cancelled"
	ActionDraftSaved Action = "wizard_draft_saved"
	ActionResumed    Action = "wizard_resumed"
)

// Event is transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Wizard    string    `json:"wizard"`
	Session   string    `json:"session"`
	Step      string    `json:"step,omitempty"`
	Reference string    `json:"reference,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Device    string    `json:"device,omitempty"`
	DeviceFP  string    `json:"device_fingerprint,omitempty"`
}
