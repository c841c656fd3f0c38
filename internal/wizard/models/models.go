// Package models holds the wizard state that is cached between requests and
// the control-flow errors the service hands back to transports.
package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"
)

// Document is the JSON-object form of a wizard model.
type Document map[string]any

// Clone deep-copies the document so merges never touch cached state.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	return cloneMap(d)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Document:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Key scopes a cache entry to one wizard in one browser session.
type Key struct {
	Wizard  string
	Session string
}

func (k Key) String() string {
	return "wizard:" + k.Wizard + ":" + k.Session
}

// Validate rejects keys that would collide across sessions.
func (k Key) Validate() error {
	if k.Wizard == "" || k.Session == "" {
		return fmt.Errorf("wizard key requires wizard and session, got %q", k.String())
	}
	return nil
}

// Entry is the cached partial state of one wizard run.
//
// Step is the cursor: the furthest step the user may open. History lists the
// steps already completed, in order, never containing Step.
type Entry struct {
	Wizard    string    `json:"wizard"`
	Step      string    `json:"step"`
	History   []string  `json:"history"`
	Model     Document  `json:"model"`
	Reference string    `json:"reference,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reached reports whether the user may open step.
func (e *Entry) Reached(step string) bool {
	return e.Step == step || slices.Contains(e.History, step)
}

// Previous returns the step completed before step, "" for the first one.
func (e *Entry) Previous(step string) string {
	i := slices.Index(e.History, step)
	if i < 0 {
		if e.Step != step || len(e.History) == 0 {
			return ""
		}
		return e.History[len(e.History)-1]
	}
	if i == 0 {
		return ""
	}
	return e.History[i-1]
}

// Advance records step as completed and moves the cursor to next. Completing
// an earlier step drops everything after it, so a changed answer cannot leave
// steps from another branch reachable.
func (e *Entry) Advance(step, next string) {
	if i := slices.Index(e.History, step); i >= 0 {
		e.History = e.History[:i]
	}
	e.History = append(e.History, step)
	e.Step = next
}

// FieldErrors maps a dotted field path to a message.
type FieldErrors map[string]string

// Add records msg for field unless the field already has an error.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Merge copies other into f, keeping existing messages.
func (f FieldErrors) Merge(other FieldErrors) {
	for k, v := range other {
		f.Add(k, v)
	}
}

// Fields returns the failing field paths in sorted order.
func (f FieldErrors) Fields() []string {
	keys := slices.Collect(maps.Keys(f))
	sort.Strings(keys)
	return keys
}

// ValidationError is returned when a step submission fails validation.
// Nothing has been cached; Model is the merged input for re-display.
type ValidationError struct {
	Wizard string
	Step   string
	Errors FieldErrors
	Model  Document
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wizard %s step %s invalid: %s", e.Wizard, e.Step, strings.Join(e.Errors.Fields(), ", "))
}

// RedirectReason says why the guard refused a step.
type RedirectReason string

const (
	// ReasonNoSession means nothing is cached for this wizard and session.
	ReasonNoSession RedirectReason = "no_session"
	// ReasonNotReached means the step lies beyond the cursor.
	ReasonNotReached RedirectReason = "not_reached"
)

// RedirectError is the control-flow signal raised when a step URL cannot be
// served from the cached state. An empty Step means the wizard start page.
type RedirectError struct {
	Wizard string
	Step   string
	Reason RedirectReason
}

func (e *RedirectError) Error() string {
	target := e.Step
	if target == "" {
		target = "start"
	}
	return fmt.Sprintf("wizard %s: redirect to %s (%s)", e.Wizard, target, e.Reason)
}

// View is what a step page renders.
type View struct {
	Wizard    string      `json:"wizard"`
	Step      string      `json:"step"`
	Previous  string      `json:"previous,omitempty"`
	Fields    []string    `json:"fields"`
	Model     Document    `json:"model"`
	Reference string      `json:"reference,omitempty"`
	Errors    FieldErrors `json:"errors,omitempty"`
}

// EncodeEntry and DecodeEntry fix the cache wire format shared by all stores.
func EncodeEntry(e *Entry) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode wizard entry: %w", err)
	}
	if e.Model == nil {
		e.Model = Document{}
	}
	return &e, nil
}
