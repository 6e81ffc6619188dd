// Package store implements jobsync.Gateway: on PostgreSQL for real
// deployments and in memory for tests and local runs.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobmate/jobsync/internal/jobsync"
	"jobmate/jobsync/internal/model"
)

// Memory is an in-process remote store. It assigns ids and timestamps the
// way the Postgres store does and never shares memory with its callers.
type Memory struct {
	now   func() time.Time
	newID func() string

	mu    sync.Mutex
	jobs  map[string]*model.Job
	saved map[string]map[string]time.Time // userID → jobID → saved at
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		now:   time.Now,
		newID: uuid.NewString,
		jobs:  make(map[string]*model.Job),
		saved: make(map[string]map[string]time.Time),
	}
}

// Seed stores jobs as-is, replacing any with the same id. Missing ids are
// generated. It is meant for fixtures and does not normalize.
func (m *Memory) Seed(jobs ...model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range jobs {
		c := j.Clone()
		if c.ID == "" {
			c.ID = m.newID()
		}
		m.jobs[c.ID] = &c
	}
}

var _ jobsync.Gateway = (*Memory)(nil)

// ListJobs implements jobsync.Gateway. Jobs come newest first.
func (m *Memory) ListJobs(ctx context.Context) ([]model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

// GetJob implements jobsync.Gateway.
func (m *Memory) GetJob(ctx context.Context, id string) (model.Job, error) {
	if err := ctx.Err(); err != nil {
		return model.Job{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("job %s: %w", id, jobsync.ErrNotFound)
	}
	return j.Clone(), nil
}

// CreateJob implements jobsync.Gateway.
func (m *Memory) CreateJob(ctx context.Context, draft model.JobDraft) (model.Job, error) {
	if err := ctx.Err(); err != nil {
		return model.Job{}, err
	}
	now := m.now()
	status := draft.Status
	if status == "" {
		status = model.StatusOpen
	}
	j := model.Job{
		ID:          m.newID(),
		Title:       draft.Title,
		Description: draft.Description,
		Budget:      draft.Budget,
		Category:    draft.Category,
		Skills:      append([]string{}, draft.Skills...),
		UserID:      draft.UserID,
		UserName:    draft.UserName,
		UserPhoto:   draft.UserPhoto,
		Timestamp:   now.UnixMilli(),
		Status:      status,
		Comments:    []model.Comment{},
		Likes:       []string{},
		CreatedAt:   now.UTC().Format(time.RFC3339),
	}

	m.mu.Lock()
	m.jobs[j.ID] = &j
	m.mu.Unlock()
	return j.Clone(), nil
}

// UpdateJob implements jobsync.Gateway.
func (m *Memory) UpdateJob(ctx context.Context, id string, update model.JobUpdate) (model.Job, error) {
	if err := ctx.Err(); err != nil {
		return model.Job{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("job %s: %w", id, jobsync.ErrNotFound)
	}
	update.Apply(j)
	j.UpdatedAt = m.now().UTC().Format(time.RFC3339)
	return j.Clone(), nil
}

// DeleteJob implements jobsync.Gateway. It reports false for unknown ids.
func (m *Memory) DeleteJob(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[id]; !ok {
		return false, nil
	}
	delete(m.jobs, id)
	for _, jobs := range m.saved {
		delete(jobs, id)
	}
	return true, nil
}

// AddComment implements jobsync.Gateway.
func (m *Memory) AddComment(ctx context.Context, jobID, content string, author model.Author) (model.Comment, error) {
	if err := ctx.Err(); err != nil {
		return model.Comment{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return model.Comment{}, fmt.Errorf("job %s: %w", jobID, jobsync.ErrNotFound)
	}
	c := model.Comment{
		ID:        m.newID(),
		JobID:     jobID,
		UserID:    author.ID,
		UserName:  author.Name,
		UserPhoto: author.Photo,
		Content:   content,
		Timestamp: m.now().UnixMilli(),
		Replies:   []model.Reply{},
	}
	j.Comments = append(j.Comments, c)
	return c.Clone(), nil
}

// AddReply implements jobsync.Gateway.
func (m *Memory) AddReply(ctx context.Context, jobID, commentID, content string, author model.Author) (model.Reply, error) {
	if err := ctx.Err(); err != nil {
		return model.Reply{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return model.Reply{}, fmt.Errorf("job %s: %w", jobID, jobsync.ErrNotFound)
	}
	i := j.CommentIndex(commentID)
	if i < 0 {
		return model.Reply{}, fmt.Errorf("comment %s: %w", commentID, jobsync.ErrNotFound)
	}
	r := model.Reply{
		ID:        m.newID(),
		CommentID: commentID,
		UserID:    author.ID,
		UserName:  author.Name,
		UserPhoto: author.Photo,
		Content:   content,
		Timestamp: m.now().UnixMilli(),
	}
	j.Comments[i].Replies = append(j.Comments[i].Replies, r)
	return r, nil
}

// ToggleLike implements jobsync.Gateway.
func (m *Memory) ToggleLike(ctx context.Context, jobID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, jobsync.ErrNotFound)
	}
	if j.HasLike(userID) {
		kept := make([]string, 0, len(j.Likes))
		for _, u := range j.Likes {
			if u != userID {
				kept = append(kept, u)
			}
		}
		j.Likes = kept
		return nil
	}
	j.Likes = append(j.Likes, userID)
	return nil
}

// ToggleSaved implements jobsync.Gateway.
func (m *Memory) ToggleSaved(ctx context.Context, userID, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[jobID]; !ok {
		return fmt.Errorf("job %s: %w", jobID, jobsync.ErrNotFound)
	}
	jobs := m.saved[userID]
	if jobs == nil {
		jobs = make(map[string]time.Time)
		m.saved[userID] = jobs
	}
	if _, ok := jobs[jobID]; ok {
		delete(jobs, jobID)
		return nil
	}
	jobs[jobID] = m.now()
	return nil
}

// ListSavedJobs implements jobsync.Gateway. Jobs come most recently saved
// first.
func (m *Memory) ListSavedJobs(ctx context.Context, userID string) ([]model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	type entry struct {
		job model.Job
		at  time.Time
	}
	entries := make([]entry, 0, len(m.saved[userID]))
	for id, at := range m.saved[userID] {
		if j, ok := m.jobs[id]; ok {
			entries = append(entries, entry{job: j.Clone(), at: at})
		}
	}
	sort.Slice(entries, func(i, k int) bool {
		if !entries[i].at.Equal(entries[k].at) {
			return entries[i].at.After(entries[k].at)
		}
		return entries[i].job.ID < entries[k].job.ID
	})

	out := make([]model.Job, len(entries))
	for i, e := range entries {
		out[i] = e.job
	}
	return out, nil
}

func sortNewestFirst(jobs []model.Job) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].Timestamp != jobs[k].Timestamp {
			return jobs[i].Timestamp > jobs[k].Timestamp
		}
		return jobs[i].ID < jobs[k].ID
	})
}
