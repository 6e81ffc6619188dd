package session_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobsync/internal/model"
	"jobmate/jobsync/internal/session"
)

func openStore(t *testing.T, path string) *session.Store {
	t.Helper()
	s, err := session.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveCurrentClear(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "session.db"))

	u, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, s.Save(ctx, model.User{ID: "U9", Name: "Nina", Photo: "n.png"}))
	u, err = s.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, model.User{ID: "U9", Name: "Nina", Photo: "n.png"}, *u)

	require.NoError(t, s.Save(ctx, model.User{ID: "U1", Name: "Ana"}))
	u, err = s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "U1", u.ID)
	assert.Empty(t, u.Photo)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	u, err = s.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestStore_SaveRequiresID(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "session.db"))
	assert.Error(t, s.Save(context.Background(), model.User{Name: "nobody"}))
}

func TestStore_PersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	first, err := session.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, model.User{ID: "U9", Name: "Nina"}))
	require.NoError(t, first.Close())

	second := openStore(t, path)
	u, err := second.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "U9", u.ID)
}

func TestWatcher_ReportsChangesFromAnotherConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "session.db")
	server := openStore(t, path)
	cli := openStore(t, path)

	changes := make(chan *model.User, 4)
	w := session.NewWatcher(server, func(_ context.Context, u *model.User) { changes <- u })
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let the watcher register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, cli.Save(ctx, model.User{ID: "U9", Name: "Nina"}))

	select {
	case u := <-changes:
		require.NotNil(t, u)
		assert.Equal(t, "U9", u.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported after login")
	}

	require.NoError(t, cli.Clear(ctx))
	select {
	case u := <-changes:
		assert.Nil(t, u)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported after logout")
	}

	cancel()
	require.NoError(t, <-done)
}
