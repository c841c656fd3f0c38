// Package handler exposes the wizards over HTTP. Guard redirects become
// 303 See Other responses; everything else is JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"taxportal/internal/wizard/flow"
	"taxportal/internal/wizard/models"
	"taxportal/internal/wizard/service"
	dErrors "taxportal/pkg/domain-errors"
	"taxportal/pkg/platform/httputil"
	"taxportal/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

// Service is the wizard service as seen by the transport.
type Service interface {
	Start(ctx context.Context, wizard, session string, params models.Document) (*models.Entry, error)
	Show(ctx context.Context, wizard, session, step string) (*models.View, error)
	Submit(ctx context.Context, wizard, session, step string, params models.Document) (*service.Outcome, error)
	SaveDraft(ctx context.Context, wizard, session string) (string, error)
	Resume(ctx context.Context, wizard, session, reference string) (*service.Outcome, error)
	Cancel(ctx context.Context, wizard, session string) error
	Inspect(ctx context.Context, wizard, session string) (*models.Entry, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
	// references guards the routes that take or hand out back-office references.
	references func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithReferenceLimit wraps the draft and resume routes with mw.
func WithReferenceLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		if mw != nil {
			h.references = mw
		}
	}
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		svc:        svc,
		logger:     logger,
		references: func(next http.Handler) http.Handler { return next },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public wizard routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/wizards/{wizard}", func(r chi.Router) {
		r.Get("/start", h.handleStart)
		r.Get("/steps/{step}", h.handleShow)
		r.Post("/steps/{step}", h.handleSubmit)
		r.With(h.references).Post("/draft", h.handleSaveDraft)
		r.With(h.references).Post("/resume", h.handleResume)
		r.Post("/cancel", h.handleCancel)
	})
}

// RegisterAdmin mounts support routes. Callers wrap r with the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/wizards/{wizard}/sessions/{session}", h.handleInspect)
	r.Delete("/admin/wizards/{wizard}/sessions/{session}", h.handleClear)
}

// StartPath and StepPath build the URLs the guard redirects to.
func StartPath(wizard string) string {
	return "/wizards/" + url.PathEscape(wizard) + "/start"
}

func StepPath(wizard, step string) string {
	return "/wizards/" + url.PathEscape(wizard) + "/steps/" + url.PathEscape(step)
}

type draftResponse struct {
	Reference string `json:"reference"`
}

type validationResponse struct {
	Error  string             `json:"error"`
	Wizard string             `json:"wizard"`
	Step   string             `json:"step"`
	Errors models.FieldErrors `json:"errors"`
	Model  models.Document    `json:"model"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wizard := chi.URLParam(r, "wizard")

	entry, err := h.svc.Start(ctx, wizard, requestcontext.SessionID(ctx), flow.FromValues(r.URL.Query()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, StepPath(wizard, entry.Step), http.StatusSeeOther)
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.svc.Show(ctx, chi.URLParam(r, "wizard"), requestcontext.SessionID(ctx), chi.URLParam(r, "step"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wizard := chi.URLParam(r, "wizard")

	params, err := decodeParams(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.svc.Submit(ctx, wizard, requestcontext.SessionID(ctx), chi.URLParam(r, "step"), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if out.Receipt != nil {
		httputil.WriteJSON(w, http.StatusCreated, out.Receipt)
		return
	}
	http.Redirect(w, r, StepPath(wizard, out.Next), http.StatusSeeOther)
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := h.svc.SaveDraft(ctx, chi.URLParam(r, "wizard"), requestcontext.SessionID(ctx))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, draftResponse{Reference: ref})
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wizard := chi.URLParam(r, "wizard")

	params, err := decodeParams(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ref, _ := params["reference"].(string)
	out, err := h.svc.Resume(ctx, wizard, requestcontext.SessionID(ctx), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, StepPath(wizard, out.Next), http.StatusSeeOther)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.Cancel(ctx, chi.URLParam(r, "wizard"), requestcontext.SessionID(ctx)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleInspect(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Inspect(r.Context(), chi.URLParam(r, "wizard"), chi.URLParam(r, "session"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), chi.URLParam(r, "wizard"), chi.URLParam(r, "session")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeParams reads a JSON object or a url-encoded form.
func decodeParams(w http.ResponseWriter, r *http.Request) (models.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		doc := models.Document{}
		err := json.NewDecoder(r.Body).Decode(&doc)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "request body must be a JSON object")
		}
		return doc, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid form body")
	}
	return flow.FromValues(r.PostForm), nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var redirect *models.RedirectError
	if errors.As(err, &redirect) {
		target := StartPath(redirect.Wizard)
		if redirect.Step != "" {
			target = StepPath(redirect.Wizard, redirect.Step)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	var invalid *models.ValidationError
	if errors.As(err, &invalid) {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:  string(dErrors.CodeValidation),
			Wizard: invalid.Wizard,
			Step:   invalid.Step,
			Errors: invalid.Errors,
			Model:  invalid.Model,
		})
		return
	}

	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		h.logger.ErrorContext(ctx, "wizard request failed",
			"request_id", requestcontext.RequestID(ctx),
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		h.logger.DebugContext(ctx, "wizard request rejected", "path", r.URL.Path, "code", code)
	}
	httputil.WriteError(w, err)
}
