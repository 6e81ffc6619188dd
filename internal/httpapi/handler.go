// Package httpapi exposes the sync layer over JSON HTTP.
//
// Routes:
//
//	GET    /health                               → liveness
//	GET    /jobs                                 → cached jobs, newest first
//	POST   /jobs                                 → create a job
//	POST   /jobs/reload                          → full reload from the store
//	GET    /jobs/{id}                            → one cached job
//	PATCH  /jobs/{id}                            → partial update
//	DELETE /jobs/{id}                            → delete
//	POST   /jobs/{id}/like                       → toggle the current user's like
//	POST   /jobs/{id}/save                       → toggle the current user's save
//	POST   /jobs/{id}/comments                   → add a comment
//	POST   /jobs/{id}/comments/{cid}/replies     → reply to a comment
//	GET    /me                                   → current user and relation sets
//	GET    /me/saved                             → the current user's saved jobs
//	PUT    /session                              → log in
//	DELETE /session                              → log out
//	GET    /events                               → websocket notification stream
//
// Comment and reply authors come from the x-user-id, x-user-name and
// x-user-photo headers forwarded by the gateway, falling back to the
// current user.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"jobmate/jobsync/internal/jobsync"
	"jobmate/jobsync/internal/model"
)

// Syncer is the capability set the routes drive.
type Syncer interface {
	LoadAll(ctx context.Context) ([]model.Job, error)
	Loading() bool
	Jobs() []model.Job
	Job(id string) (model.Job, bool)
	Create(ctx context.Context, draft model.JobDraft) (model.Job, error)
	Update(ctx context.Context, id string, update model.JobUpdate) (model.Job, error)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, jobID string) jobsync.ToggleResult
	ToggleSaved(ctx context.Context, jobID string) jobsync.ToggleResult
	AddComment(ctx context.Context, jobID, content string, author model.Author) (model.Comment, error)
	AddReply(ctx context.Context, jobID, commentID, content string, author model.Author) (model.Reply, error)
	SetUser(ctx context.Context, user *model.User) error
	CurrentUser() *model.User
	LikedJobIDs() []string
	SavedJobIDs() []string
	SavedJobs(ctx context.Context) ([]model.Job, error)
}

// SessionStore persists logins across restarts.
type SessionStore interface {
	Save(ctx context.Context, u model.User) error
	Clear(ctx context.Context) error
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	sync     Syncer
	sessions SessionStore
	events   http.Handler
	version  string
}

// Option configures a Handler.
type Option func(*Handler)

// WithSessions persists PUT/DELETE /session through store.
func WithSessions(store SessionStore) Option {
	return func(h *Handler) { h.sessions = store }
}

// WithEvents mounts the websocket notification stream on /events.
func WithEvents(events http.Handler) Option {
	return func(h *Handler) { h.events = events }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(h *Handler) { h.version = v }
}

// NewHandler returns a configured Handler.
func NewHandler(s Syncer, opts ...Option) *Handler {
	h := &Handler{sync: s, version: "dev"}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts every route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("GET /jobs", h.listJobs)
	mux.HandleFunc("POST /jobs", h.createJob)
	mux.HandleFunc("POST /jobs/reload", h.reload)
	mux.HandleFunc("GET /jobs/{id}", h.getJob)
	mux.HandleFunc("PATCH /jobs/{id}", h.updateJob)
	mux.HandleFunc("DELETE /jobs/{id}", h.deleteJob)
	mux.HandleFunc("POST /jobs/{id}/like", h.toggleLike)
	mux.HandleFunc("POST /jobs/{id}/save", h.toggleSaved)
	mux.HandleFunc("POST /jobs/{id}/comments", h.addComment)
	mux.HandleFunc("POST /jobs/{id}/comments/{cid}/replies", h.addReply)

	mux.HandleFunc("GET /me", h.me)
	mux.HandleFunc("GET /me/saved", h.savedJobs)
	mux.HandleFunc("PUT /session", h.login)
	mux.HandleFunc("DELETE /session", h.logout)

	if h.events != nil {
		mux.Handle("GET /events", h.events)
	}
}

// Routes returns a new mux with every route mounted.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": "jobsync",
		"version": h.version,
	})
}

func (h *Handler) listJobs(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]any{
		"jobs":    h.sync.Jobs(),
		"loading": h.sync.Loading(),
	})
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.sync.LoadAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, map[string]int{"count": len(jobs)})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.sync.Job(r.PathValue("id"))
	if !ok {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	jsonOK(w, job)
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var draft model.JobDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	job, err := h.sync.Create(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonStatus(w, http.StatusCreated, job)
}

func (h *Handler) updateJob(w http.ResponseWriter, r *http.Request) {
	var update model.JobUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	job, err := h.sync.Update(r.Context(), r.PathValue("id"), update)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, job)
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toggleResponse flattens a ToggleResult and adds its error text.
type toggleResponse struct {
	jobsync.ToggleResult
	Error string `json:"error,omitempty"`
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	writeToggle(w, h.sync.ToggleLike(r.Context(), r.PathValue("id")))
}

func (h *Handler) toggleSaved(w http.ResponseWriter, r *http.Request) {
	writeToggle(w, h.sync.ToggleSaved(r.Context(), r.PathValue("id")))
}

// writeToggle answers 200 for declined and failed toggles alike: the
// outcome is in the body and failures already went out as notifications.
func writeToggle(w http.ResponseWriter, res jobsync.ToggleResult) {
	out := toggleResponse{ToggleResult: res}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	jsonOK(w, out)
}

type contentBody struct {
	Content string `json:"content"`
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	var body contentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	c, err := h.sync.AddComment(r.Context(), r.PathValue("id"), body.Content, authorFromHeaders(r))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonStatus(w, http.StatusCreated, c)
}

func (h *Handler) addReply(w http.ResponseWriter, r *http.Request) {
	var body contentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	reply, err := h.sync.AddReply(r.Context(), r.PathValue("id"), r.PathValue("cid"), body.Content, authorFromHeaders(r))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonStatus(w, http.StatusCreated, reply)
}

func (h *Handler) me(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]any{
		"user":        h.sync.CurrentUser(),
		"likedJobIds": h.sync.LikedJobIDs(),
		"savedJobIds": h.sync.SavedJobIDs(),
	})
}

func (h *Handler) savedJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.sync.SavedJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonOK(w, jobs)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var u model.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil || u.ID == "" {
		jsonError(w, "body must contain id", http.StatusBadRequest)
		return
	}
	if h.sessions != nil {
		if err := h.sessions.Save(r.Context(), u); err != nil {
			slog.Warn("persist session failed", "userId", u.ID, "err", err)
			jsonError(w, "could not persist session", http.StatusInternalServerError)
			return
		}
	}
	// The identity is set even when the saved listing fails; the next
	// reload reconciles it.
	if err := h.sync.SetUser(r.Context(), &u); err != nil {
		slog.Warn("reconcile after login failed", "userId", u.ID, "err", err)
	}
	h.me(w, r)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		if err := h.sessions.Clear(r.Context()); err != nil {
			slog.Warn("clear session failed", "err", err)
			jsonError(w, "could not clear session", http.StatusInternalServerError)
			return
		}
	}
	if err := h.sync.SetUser(r.Context(), nil); err != nil {
		slog.Warn("reconcile after logout failed", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func authorFromHeaders(r *http.Request) model.Author {
	return model.Author{
		ID:    r.Header.Get("x-user-id"),
		Name:  r.Header.Get("x-user-name"),
		Photo: r.Header.Get("x-user-photo"),
	}
}

// writeError maps sync-layer errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobsync.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, jobsync.ErrInvalidInput):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, jobsync.ErrUnauthenticated):
		jsonError(w, "no current user", http.StatusUnauthorized)
	case errors.Is(err, jobsync.ErrRemoteFailure):
		slog.Warn("remote store failure", "err", err)
		jsonError(w, "remote store unavailable", http.StatusBadGateway)
	default:
		slog.Error("unexpected error", "err", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonStatus(w, http.StatusOK, v)
}

func jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonStatus(w, code, map[string]string{"error": msg})
}
