package jobsync_test

import (
	"context"
	"errors"
	"sync"

	"jobmate/jobsync/internal/model"
	"jobmate/jobsync/internal/store"
)

var errBoom = errors.New("connection reset by peer")

// flakyGateway wraps the in-memory store with per-operation failures,
// call counters and gates that hold a call until released.
type flakyGateway struct {
	*store.Memory

	mu            sync.Mutex
	fail          map[string]error
	gates         map[string]chan struct{}
	calls         map[string]int
	declineDelete bool
}

func newFlaky(jobs ...model.Job) *flakyGateway {
	m := store.NewMemory()
	m.Seed(jobs...)
	return &flakyGateway{
		Memory: m,
		fail:   make(map[string]error),
		gates:  make(map[string]chan struct{}),
		calls:  make(map[string]int),
	}
}

func (f *flakyGateway) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// hold makes the next calls of op wait until the returned func is called.
func (f *flakyGateway) hold(op string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[op] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *flakyGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *flakyGateway) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.gates[op]
	err := f.fail[op]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *flakyGateway) ListJobs(ctx context.Context) ([]model.Job, error) {
	if err := f.enter(ctx, "listJobs"); err != nil {
		return nil, err
	}
	return f.Memory.ListJobs(ctx)
}

func (f *flakyGateway) GetJob(ctx context.Context, id string) (model.Job, error) {
	if err := f.enter(ctx, "getJob"); err != nil {
		return model.Job{}, err
	}
	return f.Memory.GetJob(ctx, id)
}

func (f *flakyGateway) CreateJob(ctx context.Context, d model.JobDraft) (model.Job, error) {
	if err := f.enter(ctx, "createJob"); err != nil {
		return model.Job{}, err
	}
	return f.Memory.CreateJob(ctx, d)
}

func (f *flakyGateway) UpdateJob(ctx context.Context, id string, u model.JobUpdate) (model.Job, error) {
	if err := f.enter(ctx, "updateJob"); err != nil {
		return model.Job{}, err
	}
	return f.Memory.UpdateJob(ctx, id, u)
}

func (f *flakyGateway) DeleteJob(ctx context.Context, id string) (bool, error) {
	if err := f.enter(ctx, "deleteJob"); err != nil {
		return false, err
	}
	f.mu.Lock()
	decline := f.declineDelete
	f.mu.Unlock()
	if decline {
		return false, nil
	}
	return f.Memory.DeleteJob(ctx, id)
}

func (f *flakyGateway) AddComment(ctx context.Context, jobID, content string, a model.Author) (model.Comment, error) {
	if err := f.enter(ctx, "addComment"); err != nil {
		return model.Comment{}, err
	}
	return f.Memory.AddComment(ctx, jobID, content, a)
}

func (f *flakyGateway) AddReply(ctx context.Context, jobID, commentID, content string, a model.Author) (model.Reply, error) {
	if err := f.enter(ctx, "addReply"); err != nil {
		return model.Reply{}, err
	}
	return f.Memory.AddReply(ctx, jobID, commentID, content, a)
}

func (f *flakyGateway) ToggleLike(ctx context.Context, jobID, userID string) error {
	if err := f.enter(ctx, "toggleLike"); err != nil {
		return err
	}
	return f.Memory.ToggleLike(ctx, jobID, userID)
}

func (f *flakyGateway) ToggleSaved(ctx context.Context, userID, jobID string) error {
	if err := f.enter(ctx, "toggleSaved"); err != nil {
		return err
	}
	return f.Memory.ToggleSaved(ctx, userID, jobID)
}

func (f *flakyGateway) ListSavedJobs(ctx context.Context, userID string) ([]model.Job, error) {
	if err := f.enter(ctx, "listSavedJobs"); err != nil {
		return nil, err
	}
	return f.Memory.ListSavedJobs(ctx, userID)
}
