package jobsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobsync/internal/jobsync"
	"jobmate/jobsync/internal/model"
	"jobmate/jobsync/internal/notify"
)

var u9 = &model.User{ID: "U9", Name: "Nina"}

func newOrchestrator(t *testing.T, gw *flakyGateway, opts ...jobsync.Option) (*jobsync.Orchestrator, *notify.Recorder) {
	t.Helper()
	rec := notify.NewRecorder(64)
	opts = append([]jobsync.Option{
		jobsync.WithNotifier(rec),
		jobsync.WithClock(fixedClock),
		jobsync.WithIDGenerator(sequentialIDs("tmp")),
	}, opts...)
	return jobsync.New(gw, opts...), rec
}

func kinds(ns []notify.Notification) []notify.Kind {
	out := make([]notify.Kind, len(ns))
	for i, n := range ns {
		out[i] = n.Kind
	}
	return out
}

func TestOrchestrator_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(
		model.Job{ID: "J1", Likes: []string{}, Comments: []model.Comment{}, Timestamp: 2},
		model.Job{ID: "J2", Likes: []string{"U9"}, Comments: []model.Comment{}, Timestamp: 1},
	)
	o, _ := newOrchestrator(t, gw)
	assert.Empty(t, o.Jobs())

	require.NoError(t, o.SetUser(ctx, u9))
	jobs, err := o.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, []string{"J2"}, o.LikedJobIDs())

	release := gw.hold("toggleLike")
	done := make(chan jobsync.ToggleResult, 1)
	go func() { done <- o.ToggleLike(ctx, "J1") }()

	// Optimistic state is visible before the gateway confirms.
	require.Eventually(t, func() bool { return gw.count("toggleLike") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"J1", "J2"}, o.LikedJobIDs())
	assert.Equal(t, 1, o.LikeCount("J1"))

	release()
	res := <-done
	assert.True(t, res.Applied)
	assert.True(t, res.Active)
	assert.Equal(t, jobsync.PhaseCommitted, res.Phase)
	assert.NoError(t, res.Err)

	server, err := gw.Memory.GetJob(ctx, "J1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U9"}, server.Likes)
}

func TestOrchestrator_LoadAllNormalizes(t *testing.T) {
	gw := newFlaky(
		model.Job{ID: "J1", CreatedAt: "2024-05-01", Status: "paused"},
		model.Job{ID: "J2", UserName: "Ana", Status: model.StatusCompleted, Timestamp: 9},
	)
	o, _ := newOrchestrator(t, gw)

	jobs, err := o.LoadAll(context.Background())
	require.NoError(t, err)
	for _, j := range jobs {
		assert.NotNil(t, j.Likes)
		assert.NotNil(t, j.Comments)
		assert.NotZero(t, j.Timestamp)
		assert.NotEmpty(t, j.UserName)
		assert.Contains(t, model.Statuses, j.Status)
	}
	assert.False(t, o.Loading())
}

func TestOrchestrator_LoadAllFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1"})
	o, rec := newOrchestrator(t, gw)
	_, err := o.LoadAll(ctx)
	require.NoError(t, err)

	gw.failOn("listJobs", errBoom)
	_, err = o.LoadAll(ctx)
	assert.ErrorIs(t, err, jobsync.ErrRemoteFailure)

	_, ok := o.Job("J1")
	assert.True(t, ok)
	assert.Equal(t, []notify.Kind{notify.KindReloadFailed}, kinds(rec.Drain()))
}

func TestOrchestrator_LoadAllConcurrentCallsShareFetch(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1"})
	o, _ := newOrchestrator(t, gw)

	release := gw.hold("listJobs")
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.LoadAll(ctx)
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return gw.count("listJobs") == 1 && o.Loading() }, time.Second, 5*time.Millisecond)
	// Give the second caller a chance to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	assert.False(t, o.Loading())
	assert.LessOrEqual(t, gw.count("listJobs"), 2)
	_, ok := o.Job("J1")
	assert.True(t, ok)
}

func TestOrchestrator_LoadAllSurvivesFirstCallerCancel(t *testing.T) {
	gw := newFlaky(model.Job{ID: "J1"})
	o, _ := newOrchestrator(t, gw)

	release := gw.hold("listJobs")
	defer release()

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := o.LoadAll(first)
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return gw.count("listJobs") == 1 }, time.Second, 5*time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		_, err := o.LoadAll(context.Background())
		secondDone <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	release()

	require.NoError(t, <-secondDone)
	require.NoError(t, <-firstDone)
	_, ok := o.Job("J1")
	assert.True(t, ok)
}

func TestOrchestrator_ToggleWithoutUserIsDeclined(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1"})
	o, rec := newOrchestrator(t, gw)
	_, err := o.LoadAll(ctx)
	require.NoError(t, err)

	res := o.ToggleLike(ctx, "J1")
	assert.False(t, res.Applied)
	assert.Equal(t, jobsync.PhaseIdle, res.Phase)

	res = o.ToggleSaved(ctx, "J1")
	assert.False(t, res.Applied)

	assert.Empty(t, o.LikedJobIDs())
	assert.Empty(t, o.SavedJobIDs())
	assert.Zero(t, gw.count("toggleLike"))
	assert.Zero(t, gw.count("toggleSaved"))
	assert.Empty(t, rec.Drain())
}

func TestOrchestrator_ToggleLikeFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1", Likes: []string{"U1"}})
	o, rec := newOrchestrator(t, gw)
	require.NoError(t, o.SetUser(ctx, u9))
	_, err := o.LoadAll(ctx)
	require.NoError(t, err)
	rec.Drain()

	gw.failOn("toggleLike", errBoom)
	res := o.ToggleLike(ctx, "J1")

	assert.True(t, res.Applied)
	assert.False(t, res.Active)
	assert.Equal(t, jobsync.PhaseRolledBack, res.Phase)
	assert.ErrorIs(t, res.Err, jobsync.ErrRemoteFailure)

	assert.Empty(t, o.LikedJobIDs())
	j, _ := o.Job("J1")
	assert.Equal(t, []string{"U1"}, j.Likes)
	assert.Equal(t, []notify.Kind{notify.KindLikeFailed}, kinds(rec.Drain()))
}

func TestOrchestrator_ToggleLikeFailureWithoutRollback(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1"})
	o, rec := newOrchestrator(t, gw, jobsync.WithRollback(false))
	require.NoError(t, o.SetUser(ctx, u9))
	_, err := o.LoadAll(ctx)
	require.NoError(t, err)

	gw.failOn("toggleLike", errBoom)
	res := o.ToggleLike(ctx, "J1")
	assert.Equal(t, jobsync.PhaseFailed, res.Phase)
	assert.True(t, res.Active)

	// The optimistic state persists until the next reload reconciles it.
	assert.Equal(t, []string{"J1"}, o.LikedJobIDs())
	assert.Equal(t, 1, o.LikeCount("J1"))
	assert.Contains(t, kinds(rec.Drain()), notify.KindLikeFailed)

	gw.failOn("toggleLike", nil)
	_, err = o.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, o.LikedJobIDs())
	assert.Equal(t, 0, o.LikeCount("J1"))
}

func TestOrchestrator_ToggleSaved(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1"}, model.Job{ID: "J2"})
	o, rec := newOrchestrator(t, gw)
	require.NoError(t, o.SetUser(ctx, u9))

	res := o.ToggleSaved(ctx, "J1")
	assert.True(t, res.Active)
	assert.Equal(t, jobsync.PhaseCommitted, res.Phase)
	assert.Equal(t, []string{"J1"}, o.SavedJobIDs())
	assert.Equal(t, []notify.Kind{notify.KindSaveAdded}, kinds(rec.Drain()))

	saved, err := o.SavedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "J1", saved[0].ID)

	gw.failOn("toggleSaved", errBoom)
	res = o.ToggleSaved(ctx, "J1")
	assert.Equal(t, jobsync.PhaseRolledBack, res.Phase)
	assert.True(t, res.Active)
	assert.Equal(t, []string{"J1"}, o.SavedJobIDs())
	assert.Equal(t, []notify.Kind{notify.KindSaveFailed}, kinds(rec.Drain()))

	gw.failOn("toggleSaved", nil)
	res = o.ToggleSaved(ctx, "J1")
	assert.False(t, res.Active)
	assert.Empty(t, o.SavedJobIDs())
	assert.Equal(t, []notify.Kind{notify.KindSaveRemoved}, kinds(rec.Drain()))
}

func TestOrchestrator_SavedJobsRequiresUser(t *testing.T) {
	o, _ := newOrchestrator(t, newFlaky())
	_, err := o.SavedJobs(context.Background())
	assert.ErrorIs(t, err, jobsync.ErrUnauthenticated)
}

func TestOrchestrator_DeclinedDeleteKeepsJob(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1", Title: "Paint fence", Budget: 80, Likes: []string{"U9"}})
	o, rec := newOrchestrator(t, gw)
	require.NoError(t, o.SetUser(ctx, u9))
	_, err := o.LoadAll(ctx)
	require.NoError(t, err)
	before, _ := o.Job("J1")
	rec.Drain()

	gw.declineDelete = true
	err = o.Delete(ctx, "J1")
	assert.ErrorIs(t, err, jobsync.ErrRemoteFailure)

	after, ok := o.Job("J1")
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"J1"}, o.LikedJobIDs())
	assert.Equal(t, []notify.Kind{notify.KindJobDeleteFailed}, kinds(rec.Drain()))

	gw.declineDelete = false
	gw.failOn("deleteJob", errBoom)
	assert.ErrorIs(t, o.Delete(ctx, "J1"), jobsync.ErrRemoteFailure)
	_, ok = o.Job("J1")
	assert.True(t, ok)
}

func TestOrchestrator_DeleteRemovesJobAndRelations(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1", Likes: []string{"U9"}})
	o, rec := newOrchestrator(t, gw)
	require.NoError(t, o.SetUser(ctx, u9))
	_, err := o.LoadAll(ctx)
	require.NoError(t, err)
	rec.Drain()

	require.NoError(t, o.Delete(ctx, "J1"))
	_, ok := o.Job("J1")
	assert.False(t, ok)
	assert.Empty(t, o.LikedJobIDs())
	assert.Equal(t, []notify.Kind{notify.KindJobDeleted}, kinds(rec.Drain()))

	assert.ErrorIs(t, o.Delete(ctx, ""), jobsync.ErrInvalidInput)
}

func TestOrchestrator_Create(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky()
	o, rec := newOrchestrator(t, gw)

	_, err := o.Create(ctx, model.JobDraft{Title: "Garden", Budget: 10})
	assert.ErrorIs(t, err, jobsync.ErrInvalidInput, "owner comes from the current user")
	assert.Zero(t, gw.count("createJob"))

	require.NoError(t, o.SetUser(ctx, u9))
	_, err = o.Create(ctx, model.JobDraft{Title: "Garden", Budget: -1})
	assert.ErrorIs(t, err, jobsync.ErrInvalidInput)
	_, err = o.Create(ctx, model.JobDraft{Title: " ", Budget: 1})
	assert.ErrorIs(t, err, jobsync.ErrInvalidInput)
	_, err = o.Create(ctx, model.JobDraft{Title: "Garden", Budget: 1, Status: "paused"})
	assert.ErrorIs(t, err, jobsync.ErrInvalidInput)

	j, err := o.Create(ctx, model.JobDraft{Title: "Garden", Budget: 10, Skills: []string{"plants"}})
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, "U9", j.UserID)
	assert.Equal(t, "Nina", j.UserName)
	assert.Equal(t, model.StatusOpen, j.Status)
	assert.Empty(t, j.Likes)
	assert.Empty(t, j.Comments)

	cached, ok := o.Job(j.ID)
	require.True(t, ok)
	assert.Equal(t, j, cached)
	assert.Equal(t, []notify.Kind{notify.KindJobCreated}, kinds(rec.Drain()))

	gw.failOn("createJob", errBoom)
	_, err = o.Create(ctx, model.JobDraft{Title: "Roof", Budget: 10})
	assert.ErrorIs(t, err, jobsync.ErrRemoteFailure)
	assert.Len(t, o.Jobs(), 1)
	assert.Equal(t, []notify.Kind{notify.KindJobCreateFailed}, kinds(rec.Drain()))
}

func TestOrchestrator_Update(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1", Title: "Old", Budget: 5})
	o, _ := newOrchestrator(t, gw)
	_, err := o.LoadAll(ctx)
	require.NoError(t, err)

	title := "New"
	status := model.StatusInProgress
	j, err := o.Update(ctx, "J1", model.JobUpdate{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "New", j.Title)
	assert.Equal(t, model.StatusInProgress, j.Status)
	assert.Equal(t, 5.0, j.Budget)

	cached, _ := o.Job("J1")
	assert.Equal(t, "New", cached.Title)

	neg := -3.0
	_, err = o.Update(ctx, "J1", model.JobUpdate{Budget: &neg})
	assert.ErrorIs(t, err, jobsync.ErrInvalidInput)
	_, err = o.Update(ctx, "J1", model.JobUpdate{})
	assert.ErrorIs(t, err, jobsync.ErrInvalidInput)
	bad := model.Status("paused")
	_, err = o.Update(ctx, "J1", model.JobUpdate{Status: &bad})
	assert.ErrorIs(t, err, jobsync.ErrInvalidInput)

	gw.failOn("updateJob", errBoom)
	other := "Other"
	_, err = o.Update(ctx, "J1", model.JobUpdate{Title: &other})
	assert.ErrorIs(t, err, jobsync.ErrRemoteFailure)
	cached, _ = o.Job("J1")
	assert.Equal(t, "New", cached.Title)

	gw.failOn("updateJob", nil)
	_, err = o.Update(ctx, "ghost", model.JobUpdate{Title: &other})
	assert.ErrorIs(t, err, jobsync.ErrNotFound)
}

func TestOrchestrator_CommentsUseCurrentUser(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1"})
	o, rec := newOrchestrator(t, gw)
	_, err := o.LoadAll(ctx)
	require.NoError(t, err)

	_, err = o.AddComment(ctx, "J1", "hello", model.Author{})
	assert.ErrorIs(t, err, jobsync.ErrInvalidInput)

	require.NoError(t, o.SetUser(ctx, u9))
	c, err := o.AddComment(ctx, "J1", "hello", model.Author{})
	require.NoError(t, err)
	assert.Equal(t, "U9", c.UserID)
	assert.Equal(t, "Nina", c.UserName)

	r, err := o.AddReply(ctx, "J1", c.ID, "hi", bea)
	require.NoError(t, err)
	assert.Equal(t, bea.ID, r.UserID)

	assert.Equal(t, []notify.Kind{notify.KindCommentAdded, notify.KindReplyAdded}, kinds(rec.Drain()))
}

func TestOrchestrator_SetUserReconciles(t *testing.T) {
	ctx := context.Background()
	gw := newFlaky(model.Job{ID: "J1", Likes: []string{"U9"}}, model.Job{ID: "J2", Likes: []string{"U1"}})
	o, _ := newOrchestrator(t, gw)
	_, err := o.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, o.LikedJobIDs())

	require.NoError(t, o.SetUser(ctx, u9))
	assert.Equal(t, []string{"J1"}, o.LikedJobIDs())
	assert.Equal(t, "U9", o.CurrentUser().ID)

	require.NoError(t, o.SetUser(ctx, &model.User{ID: "U1"}))
	assert.Equal(t, []string{"J2"}, o.LikedJobIDs())

	require.NoError(t, o.SetUser(ctx, nil))
	assert.Nil(t, o.CurrentUser())
	assert.Empty(t, o.LikedJobIDs())
	assert.Len(t, o.Jobs(), 2)
}
