package jobsync

import (
	"context"
	"sort"
	"sync"

	"jobmate/jobsync/internal/model"
)

// Relations tracks, for the current user only, which jobs are liked and
// which are saved.
//
// Liked ids are derived from each job's likes. Saved ids cannot be derived
// from Job fields: they come from the gateway's saved-jobs listing and from
// local toggles.
type Relations struct {
	gw Gateway

	mu     sync.RWMutex
	userID string
	liked  map[string]struct{}
	saved  map[string]struct{}
}

// NewRelations returns empty relation sets backed by gw for saved listings.
func NewRelations(gw Gateway) *Relations {
	return &Relations{
		gw:    gw,
		liked: make(map[string]struct{}),
		saved: make(map[string]struct{}),
	}
}

// Reconcile recomputes both sets for userID. Liked becomes exactly the ids
// of jobs whose likes contain userID; saved is fetched from the gateway.
// An empty userID clears both sets.
//
// When the saved listing fails, liked is still recomputed; saved keeps its
// value for the same user and is cleared for a new one.
func (r *Relations) Reconcile(ctx context.Context, userID string, jobs []model.Job) error {
	liked := make(map[string]struct{})
	if userID != "" {
		for _, j := range jobs {
			if j.HasLike(userID) {
				liked[j.ID] = struct{}{}
			}
		}
	}

	r.mu.Lock()
	changed := r.userID != userID
	r.userID = userID
	r.liked = liked
	if userID == "" || changed {
		r.saved = make(map[string]struct{})
	}
	r.mu.Unlock()

	if userID == "" {
		return nil
	}

	savedJobs, err := r.gw.ListSavedJobs(ctx, userID)
	if err != nil {
		return remote("listSavedJobs", err)
	}
	r.SetSaved(userID, idsOf(savedJobs))
	return nil
}

// ToggleLiked flips jobID's membership in the liked set and returns the new
// membership. The flip negates the current local state; it never re-reads
// the server. applied is false, with no change, when either id is empty.
func (r *Relations) ToggleLiked(jobID, userID string) (liked, applied bool) {
	return r.toggle(&r.liked, jobID, userID)
}

// ToggleSaved is ToggleLiked for the saved set.
func (r *Relations) ToggleSaved(jobID, userID string) (saved, applied bool) {
	return r.toggle(&r.saved, jobID, userID)
}

func (r *Relations) toggle(set *map[string]struct{}, jobID, userID string) (bool, bool) {
	if jobID == "" || userID == "" {
		return false, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := (*set)[jobID]; ok {
		delete(*set, jobID)
		return false, true
	}
	(*set)[jobID] = struct{}{}
	return true, true
}

// setLiked forces jobID's liked membership; used to compensate a failed
// optimistic toggle.
func (r *Relations) setLiked(jobID string, member bool) { r.set(&r.liked, jobID, member) }

func (r *Relations) setSaved(jobID string, member bool) { r.set(&r.saved, jobID, member) }

func (r *Relations) set(set *map[string]struct{}, jobID string, member bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if member {
		(*set)[jobID] = struct{}{}
		return
	}
	delete(*set, jobID)
}

// Forget drops jobID from both sets, after a confirmed delete.
func (r *Relations) Forget(jobID string) {
	r.mu.Lock()
	delete(r.liked, jobID)
	delete(r.saved, jobID)
	r.mu.Unlock()
}

// SetSaved replaces the saved set with ids for userID. It is ignored when
// userID is no longer the tracked user.
func (r *Relations) SetSaved(userID string, ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	r.mu.Lock()
	if r.userID == userID {
		r.saved = next
	}
	r.mu.Unlock()
}

// User returns the user the sets were last reconciled for.
func (r *Relations) User() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userID
}

// IsLiked reports whether jobID is in the liked set.
func (r *Relations) IsLiked(jobID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.liked[jobID]
	return ok
}

// IsSaved reports whether jobID is in the saved set.
func (r *Relations) IsSaved(jobID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.saved[jobID]
	return ok
}

// LikedIDs returns the liked set, sorted.
func (r *Relations) LikedIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.liked)
}

// SavedIDs returns the saved set, sorted.
func (r *Relations) SavedIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.saved)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func idsOf(jobs []model.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if j.ID != "" {
			out = append(out, j.ID)
		}
	}
	return out
}
