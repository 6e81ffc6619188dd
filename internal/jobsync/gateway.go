// Package jobsync keeps a local cache of job listings synchronized with the
// authoritative remote store.
//
// It has four parts:
//   - Cache: the canonical in-process copy of every known job
//   - Relations: the current user's liked and saved job id sets
//   - Threads: append-only comments and one-level replies
//   - Orchestrator: load/create/update/delete and the optimistic toggles
//
// The remote store is reached only through Gateway. Gateway calls are the
// only suspension points; local mutations around them are synchronous and
// no lock is ever held across one.
package jobsync

import (
	"context"

	"jobmate/jobsync/internal/model"
)

// Gateway is the remote job store. Implementations return ErrNotFound
// (possibly wrapped) for missing jobs and comments; any other error is
// treated as a remote failure.
type Gateway interface {
	ListJobs(ctx context.Context) ([]model.Job, error)
	GetJob(ctx context.Context, id string) (model.Job, error)
	CreateJob(ctx context.Context, draft model.JobDraft) (model.Job, error)
	UpdateJob(ctx context.Context, id string, update model.JobUpdate) (model.Job, error)
	DeleteJob(ctx context.Context, id string) (bool, error)
	AddComment(ctx context.Context, jobID, content string, author model.Author) (model.Comment, error)
	AddReply(ctx context.Context, jobID, commentID, content string, author model.Author) (model.Reply, error)
	// ToggleLike flips userID's membership in the job's likes on the server.
	ToggleLike(ctx context.Context, jobID, userID string) error
	// ToggleSaved flips the (user, job) saved relation on the server.
	ToggleSaved(ctx context.Context, userID, jobID string) error
	ListSavedJobs(ctx context.Context, userID string) ([]model.Job, error)
}
