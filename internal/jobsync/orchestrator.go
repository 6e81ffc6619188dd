package jobsync

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"jobmate/jobsync/internal/model"
	"jobmate/jobsync/internal/notify"
)

// Phase is the state of one mutating operation:
//
//	Idle ──► Applying ──► Confirming ──► Committed
//	                           │
//	                           ├──────► RolledBack  (rollback enabled)
//	                           └──────► Failed      (optimistic state kept)
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseApplying   Phase = "applying"
	PhaseConfirming Phase = "confirming"
	PhaseCommitted  Phase = "committed"
	PhaseRolledBack Phase = "rolled-back"
	PhaseFailed     Phase = "failed"
)

// ToggleResult reports the effect of a like or save toggle.
type ToggleResult struct {
	JobID string `json:"jobId"`
	// Active is the local membership after the operation.
	Active bool `json:"active"`
	// Applied is false when the toggle was declined (no current user).
	Applied bool  `json:"applied"`
	Phase   Phase `json:"phase"`
	// Err holds the remote failure, already reported as a notification.
	Err error `json:"-"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRollback sets whether a failed optimistic toggle is compensated.
// When disabled the optimistic state persists until the next reconcile.
func WithRollback(enabled bool) Option {
	return func(o *Orchestrator) { o.rollback = enabled }
}

// WithNotifier sets where user-facing notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides the generator of placeholder ids.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// Orchestrator coordinates the cache, the relation sets and the comment
// threads around every remote call. It is the capability set handed to the
// presentation layer.
type Orchestrator struct {
	gw       Gateway
	notifier notify.Notifier
	rollback bool
	now      func() time.Time
	newID    func() string

	cache   *Cache
	rel     *Relations
	threads *Threads

	mu   sync.RWMutex
	user *model.User

	loading atomic.Int32
	loads   singleflight.Group
}

// New returns an Orchestrator over gw with an empty cache and no user.
// Rollback of failed toggles is enabled by default.
func New(gw Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:       gw,
		notifier: notify.Discard{},
		rollback: true,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.cache = NewCache(o.now)
	o.rel = NewRelations(gw)
	o.threads = NewThreads(gw, o.cache, o.now, o.newID)
	return o
}

// ─── Identity ────────────────────────────────────────────────────────────────

// SetUser changes the current user (nil logs out) and reconciles the
// relation sets against the cached jobs. The cache itself is kept.
func (o *Orchestrator) SetUser(ctx context.Context, user *model.User) error {
	var id string
	o.mu.Lock()
	if user == nil {
		o.user = nil
	} else {
		u := *user
		o.user = &u
		id = u.ID
	}
	o.mu.Unlock()

	return o.rel.Reconcile(ctx, id, o.cache.Snapshot())
}

// CurrentUser returns a copy of the current user, or nil.
func (o *Orchestrator) CurrentUser() *model.User {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.user == nil {
		return nil
	}
	u := *o.user
	return &u
}

func (o *Orchestrator) currentUserID() string {
	if u := o.CurrentUser(); u != nil {
		return u.ID
	}
	return ""
}

// ─── Loading ─────────────────────────────────────────────────────────────────

// LoadAll replaces the cache with a fresh listing from the gateway and
// reconciles the relation sets. Concurrent calls share one fetch. On
// failure the cache is left untouched.
func (o *Orchestrator) LoadAll(ctx context.Context) ([]model.Job, error) {
	o.loading.Add(1)
	defer o.loading.Add(-1)

	// Joined callers must not fail because the first caller went away.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := o.loads.Do("loadAll", func() (any, error) {
		jobs, err := o.gw.ListJobs(fetchCtx)
		if err != nil {
			return nil, remote("listJobs", err)
		}
		normalized := o.cache.ReplaceAll(jobs)

		if err := o.rel.Reconcile(fetchCtx, o.currentUserID(), normalized); err != nil {
			slog.Warn("reconcile after load failed", "err", err)
		}
		slog.Debug("jobs loaded", "count", len(normalized))
		return normalized, nil
	})
	if err != nil {
		o.emit(ctx, notify.Notification{
			Kind:    notify.KindReloadFailed,
			Level:   notify.LevelError,
			Title:   "Error",
			Message: "Could not load jobs.",
		})
		return nil, err
	}

	shared := v.([]model.Job)
	out := make([]model.Job, len(shared))
	for i := range shared {
		out[i] = shared[i].Clone()
	}
	return out, nil
}

// FetchJobs is an alias of LoadAll.
func (o *Orchestrator) FetchJobs(ctx context.Context) ([]model.Job, error) { return o.LoadAll(ctx) }

// Loading reports whether a full load is in flight.
func (o *Orchestrator) Loading() bool { return o.loading.Load() > 0 }

// ─── Create / update / delete ────────────────────────────────────────────────

// Create asks the gateway to create a job and caches the result. Nothing is
// cached before the gateway confirms: the id is server-assigned.
func (o *Orchestrator) Create(ctx context.Context, draft model.JobDraft) (model.Job, error) {
	if draft.UserID == "" {
		if u := o.CurrentUser(); u != nil {
			draft.UserID, draft.UserName, draft.UserPhoto = u.ID, u.Name, u.Photo
		}
	}
	if draft.Status == "" {
		draft.Status = model.StatusOpen
	}
	if err := validateDraft(draft); err != nil {
		return model.Job{}, err
	}

	created, err := o.gw.CreateJob(ctx, draft)
	if err == nil && created.ID == "" {
		err = errors.New("created job has no id")
	}
	if err != nil {
		o.emit(ctx, notify.Notification{
			Kind:    notify.KindJobCreateFailed,
			Level:   notify.LevelError,
			Title:   "Error",
			Message: "Could not create the job. Try again.",
			UserID:  draft.UserID,
		})
		return model.Job{}, remote("createJob", err)
	}

	created.Likes = []string{}
	created.Comments = []model.Comment{}
	job := o.cache.Upsert(created)

	o.emit(ctx, notify.Notification{
		Kind:    notify.KindJobCreated,
		Level:   notify.LevelInfo,
		Title:   "Success",
		Message: "The job was created.",
		JobID:   job.ID,
		UserID:  job.UserID,
	})
	return job, nil
}

// Update applies a partial update through the gateway and caches the
// confirmed job. The cache is untouched on failure.
func (o *Orchestrator) Update(ctx context.Context, id string, update model.JobUpdate) (model.Job, error) {
	if id == "" {
		return model.Job{}, invalid("job id is required")
	}
	if err := validateUpdate(update); err != nil {
		return model.Job{}, err
	}

	updated, err := o.gw.UpdateJob(ctx, id, update)
	if err != nil {
		return model.Job{}, remote("updateJob", err)
	}
	if updated.ID == "" {
		updated.ID = id
	}
	job := o.cache.Upsert(updated)

	o.emit(ctx, notify.Notification{
		Kind:    notify.KindJobUpdated,
		Level:   notify.LevelInfo,
		Title:   "Success",
		Message: "The job was updated.",
		JobID:   job.ID,
	})
	return job, nil
}

// Delete removes the job remotely and, only on an explicit success, from
// the cache. A declined or failed delete leaves the cache untouched.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("job id is required")
	}

	ok, err := o.gw.DeleteJob(ctx, id)
	if err == nil && !ok {
		err = errors.New("store declined the delete")
	}
	if err != nil {
		o.emit(ctx, notify.Notification{
			Kind:    notify.KindJobDeleteFailed,
			Level:   notify.LevelError,
			Title:   "Error",
			Message: "Could not delete the job. Try again.",
			JobID:   id,
		})
		return remote("deleteJob", err)
	}

	o.cache.Remove(id)
	o.rel.Forget(id)
	o.emit(ctx, notify.Notification{
		Kind:    notify.KindJobDeleted,
		Level:   notify.LevelInfo,
		Title:   "Success",
		Message: "The job was deleted.",
		JobID:   id,
	})
	return nil
}

// ─── Optimistic toggles ──────────────────────────────────────────────────────

// ToggleLike flips the current user's like on jobID. The local liked set and
// the job's likes change before the gateway is called. Without a current
// user the toggle is declined silently.
func (o *Orchestrator) ToggleLike(ctx context.Context, jobID string) ToggleResult {
	res := ToggleResult{JobID: jobID, Phase: PhaseIdle}
	userID := o.currentUserID()
	if userID == "" {
		return res
	}

	liked, applied := o.rel.ToggleLiked(jobID, userID)
	if !applied {
		return res
	}
	res.Applied, res.Active, res.Phase = true, liked, PhaseApplying
	if err := o.cache.MutateLikes(jobID, userID, liked); err != nil {
		slog.Debug("like toggled on uncached job", "jobId", jobID)
	}

	res.Phase = PhaseConfirming
	if err := o.gw.ToggleLike(ctx, jobID, userID); err != nil {
		res.Err = remote("toggleLike", err)
		if o.rollback {
			o.rel.setLiked(jobID, !liked)
			_ = o.cache.MutateLikes(jobID, userID, !liked)
			res.Active, res.Phase = !liked, PhaseRolledBack
		} else {
			res.Phase = PhaseFailed
		}
		slog.Warn("toggle like failed", "jobId", jobID, "userId", userID, "phase", res.Phase, "err", err)
		o.emit(ctx, notify.Notification{
			Kind:    notify.KindLikeFailed,
			Level:   notify.LevelError,
			Title:   "Error",
			Message: "Could not update the like. Try again.",
			JobID:   jobID,
			UserID:  userID,
		})
		return res
	}

	res.Phase = PhaseCommitted
	n := notify.Notification{Kind: notify.KindLikeRemoved, Level: notify.LevelInfo,
		Title: "Like removed", Message: "You no longer like this job.", JobID: jobID, UserID: userID}
	if liked {
		n.Kind, n.Title, n.Message = notify.KindLikeAdded, "Like added", "You like this job."
	}
	o.emit(ctx, n)
	return res
}

// ToggleSaved flips whether the current user saved jobID, optimistically.
func (o *Orchestrator) ToggleSaved(ctx context.Context, jobID string) ToggleResult {
	res := ToggleResult{JobID: jobID, Phase: PhaseIdle}
	userID := o.currentUserID()
	if userID == "" {
		return res
	}

	saved, applied := o.rel.ToggleSaved(jobID, userID)
	if !applied {
		return res
	}
	res.Applied, res.Active, res.Phase = true, saved, PhaseConfirming

	if err := o.gw.ToggleSaved(ctx, userID, jobID); err != nil {
		res.Err = remote("toggleSaved", err)
		if o.rollback {
			o.rel.setSaved(jobID, !saved)
			res.Active, res.Phase = !saved, PhaseRolledBack
		} else {
			res.Phase = PhaseFailed
		}
		slog.Warn("toggle saved failed", "jobId", jobID, "userId", userID, "phase", res.Phase, "err", err)
		o.emit(ctx, notify.Notification{
			Kind:    notify.KindSaveFailed,
			Level:   notify.LevelError,
			Title:   "Error",
			Message: "Could not update the saved state. Try again.",
			JobID:   jobID,
			UserID:  userID,
		})
		return res
	}

	res.Phase = PhaseCommitted
	n := notify.Notification{Kind: notify.KindSaveRemoved, Level: notify.LevelInfo,
		Title: "Job removed from saved", Message: "The job was removed from your saved jobs.", JobID: jobID, UserID: userID}
	if saved {
		n.Kind, n.Title, n.Message = notify.KindSaveAdded, "Job saved", "The job was saved."
	}
	o.emit(ctx, n)
	return res
}

// ─── Comments ────────────────────────────────────────────────────────────────

// AddComment adds a comment to jobID. An empty author defaults to the
// current user.
func (o *Orchestrator) AddComment(ctx context.Context, jobID, content string, author model.Author) (model.Comment, error) {
	author = o.authorOrCurrent(author)
	c, err := o.threads.AddComment(ctx, jobID, content, author)
	if err != nil {
		return model.Comment{}, err
	}
	o.emit(ctx, notify.Notification{
		Kind:    notify.KindCommentAdded,
		Level:   notify.LevelInfo,
		Title:   "Comment added",
		Message: "Your comment was published.",
		JobID:   jobID,
		UserID:  author.ID,
	})
	return c, nil
}

// AddReply adds a reply under commentID of jobID. An empty author defaults
// to the current user.
func (o *Orchestrator) AddReply(ctx context.Context, jobID, commentID, content string, author model.Author) (model.Reply, error) {
	author = o.authorOrCurrent(author)
	r, err := o.threads.AddReply(ctx, jobID, commentID, content, author)
	if err != nil {
		return model.Reply{}, err
	}
	o.emit(ctx, notify.Notification{
		Kind:    notify.KindReplyAdded,
		Level:   notify.LevelInfo,
		Title:   "Reply added",
		Message: "Your reply was published.",
		JobID:   jobID,
		UserID:  author.ID,
	})
	return r, nil
}

func (o *Orchestrator) authorOrCurrent(a model.Author) model.Author {
	if a.ID != "" {
		return a
	}
	if u := o.CurrentUser(); u != nil {
		return u.Author()
	}
	return a
}

// ─── Read-only views ─────────────────────────────────────────────────────────

// Jobs returns a snapshot of every cached job, newest first.
func (o *Orchestrator) Jobs() []model.Job { return o.cache.Snapshot() }

// Job returns the cached job with the given id, without any network call.
func (o *Orchestrator) Job(id string) (model.Job, bool) { return o.cache.Get(id) }

// LikedJobIDs returns the current user's liked job ids, sorted.
func (o *Orchestrator) LikedJobIDs() []string { return o.rel.LikedIDs() }

// SavedJobIDs returns the current user's saved job ids, sorted.
func (o *Orchestrator) SavedJobIDs() []string { return o.rel.SavedIDs() }

// LikeCount returns the number of likes on a cached job.
func (o *Orchestrator) LikeCount(id string) int {
	j, ok := o.cache.Get(id)
	if !ok {
		return 0
	}
	return len(j.Likes)
}

// SavedJobs fetches the current user's saved jobs, refreshes the saved set
// and returns the jobs normalized.
func (o *Orchestrator) SavedJobs(ctx context.Context) ([]model.Job, error) {
	userID := o.currentUserID()
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	jobs, err := o.gw.ListSavedJobs(ctx, userID)
	if err != nil {
		return nil, remote("listSavedJobs", err)
	}

	now := o.now()
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.ID == "" {
			continue
		}
		out = append(out, model.NormalizeJob(j, now))
	}
	o.rel.SetSaved(userID, idsOf(out))
	return out, nil
}

func (o *Orchestrator) emit(ctx context.Context, n notify.Notification) {
	if n.At.IsZero() {
		n.At = o.now()
	}
	o.notifier.Notify(ctx, n)
}

// ─── Validation ──────────────────────────────────────────────────────────────

func validateDraft(d model.JobDraft) error {
	if strings.TrimSpace(d.Title) == "" {
		return invalid("title is required")
	}
	if err := validateBudget(d.Budget); err != nil {
		return err
	}
	if d.UserID == "" {
		return invalid("owner is required")
	}
	if _, err := model.ParseStatus(string(d.Status)); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func validateUpdate(u model.JobUpdate) error {
	if u == (model.JobUpdate{}) {
		return invalid("update has no fields")
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return invalid("title must not be blank")
	}
	if u.Budget != nil {
		if err := validateBudget(*u.Budget); err != nil {
			return err
		}
	}
	if u.Status != nil {
		if _, err := model.ParseStatus(string(*u.Status)); err != nil {
			return invalid("%v", err)
		}
	}
	return nil
}

func validateBudget(b float64) error {
	if math.IsNaN(b) || math.IsInf(b, 0) || b < 0 {
		return invalid("budget must be a non-negative number, got %v", b)
	}
	return nil
}
