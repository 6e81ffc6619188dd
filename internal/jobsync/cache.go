package jobsync

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"jobmate/jobsync/internal/model"
)

// Cache is the in-memory store of every known job, keyed by id. It owns all
// Job, Comment and Reply data; readers always receive deep copies.
//
// The mutex only protects the map for concurrent goroutines. It is never
// held across a gateway call, so optimistic state stays visible to readers
// while a remote call is in flight.
type Cache struct {
	now func() time.Time

	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewCache returns an empty Cache. A nil clock defaults to time.Now.
func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{now: now, jobs: make(map[string]*model.Job)}
}

// ReplaceAll swaps the entire content for the given jobs, normalized.
// It returns the normalized jobs in the same order.
func (c *Cache) ReplaceAll(jobs []model.Job) []model.Job {
	now := c.now()
	next := make(map[string]*model.Job, len(jobs))
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.ID == "" {
			continue
		}
		n := model.NormalizeJob(j, now)
		next[n.ID] = &n
		out = append(out, n.Clone())
	}

	c.mu.Lock()
	c.jobs = next
	c.mu.Unlock()
	return out
}

// Get returns a copy of the job with the given id.
func (c *Cache) Get(id string) (model.Job, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	j, ok := c.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return j.Clone(), true
}

// Upsert normalizes job and inserts or replaces it by id. Jobs without an
// id are returned normalized but not stored.
func (c *Cache) Upsert(job model.Job) model.Job {
	n := model.NormalizeJob(job, c.now())
	if n.ID == "" {
		return n
	}
	c.mu.Lock()
	c.jobs[n.ID] = &n
	c.mu.Unlock()
	return n.Clone()
}

// Remove evicts a job together with its comments. Unknown ids are a no-op.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	delete(c.jobs, id)
	c.mu.Unlock()
}

// MutateLikes adds or removes userID in the job's likes set. Adding a
// present id or removing an absent one succeeds without change.
func (c *Cache) MutateLikes(id, userID string, adding bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, ok := c.jobs[id]
	if !ok {
		return fmt.Errorf("mutateLikes %s: %w", id, ErrNotFound)
	}
	has := j.HasLike(userID)
	switch {
	case adding && !has:
		j.Likes = append(j.Likes, userID)
	case !adding && has:
		kept := make([]string, 0, len(j.Likes))
		for _, u := range j.Likes {
			if u != userID {
				kept = append(kept, u)
			}
		}
		j.Likes = kept
	}
	return nil
}

// AppendComment appends comment to the job's thread.
func (c *Cache) AppendComment(jobID string, comment model.Comment) error {
	comment = model.NormalizeComment(comment, jobID, c.now())

	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return fmt.Errorf("appendComment job %s: %w", jobID, ErrNotFound)
	}
	j.Comments = append(j.Comments, comment)
	return nil
}

// AppendReply appends reply under the comment commentID of job jobID.
func (c *Cache) AppendReply(jobID, commentID string, reply model.Reply) error {
	reply = model.NormalizeReply(reply, commentID, c.now())

	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return fmt.Errorf("appendReply job %s: %w", jobID, ErrNotFound)
	}
	i := j.CommentIndex(commentID)
	if i < 0 {
		return fmt.Errorf("appendReply comment %s: %w", commentID, ErrNotFound)
	}
	j.Comments[i].Replies = append(j.Comments[i].Replies, reply)
	return nil
}

// ReplaceComment swaps the comment placeholderID for confirmed, keeping its
// position in the thread. Replies already attached to the placeholder are
// carried over.
func (c *Cache) ReplaceComment(jobID, placeholderID string, confirmed model.Comment) error {
	confirmed = model.NormalizeComment(confirmed, jobID, c.now())

	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return fmt.Errorf("replaceComment job %s: %w", jobID, ErrNotFound)
	}
	i := j.CommentIndex(placeholderID)
	if i < 0 {
		return fmt.Errorf("replaceComment comment %s: %w", placeholderID, ErrNotFound)
	}
	if len(confirmed.Replies) == 0 {
		confirmed.Replies = j.Comments[i].Replies
	}
	j.Comments[i] = confirmed
	return nil
}

// RemoveComment drops the comment commentID from job jobID.
func (c *Cache) RemoveComment(jobID, commentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return fmt.Errorf("removeComment job %s: %w", jobID, ErrNotFound)
	}
	i := j.CommentIndex(commentID)
	if i < 0 {
		return fmt.Errorf("removeComment comment %s: %w", commentID, ErrNotFound)
	}
	j.Comments = append(j.Comments[:i:i], j.Comments[i+1:]...)
	return nil
}

// HasComment reports whether commentID exists under jobID.
func (c *Cache) HasComment(jobID, commentID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	j, ok := c.jobs[jobID]
	return ok && j.CommentIndex(commentID) >= 0
}

// Snapshot returns every cached job, newest first (ties broken by id).
func (c *Cache) Snapshot() []model.Job {
	c.mu.RLock()
	out := make([]model.Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		out = append(out, j.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].Timestamp != out[k].Timestamp {
			return out[i].Timestamp > out[k].Timestamp
		}
		return out[i].ID < out[k].ID
	})
	return out
}

// Len returns the number of cached jobs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.jobs)
}
