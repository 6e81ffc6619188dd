package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobsync/internal/notify"
)

func TestEncode(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b, err := Encode(notify.Notification{
		Kind:    notify.KindLikeFailed,
		Level:   notify.LevelError,
		Title:   "Error",
		Message: "Could not update the like. Try again.",
		JobID:   "J1",
		UserID:  "U9",
		At:      at,
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "LIKE_FAILED", got["type"])
	assert.Equal(t, "error", got["level"])
	assert.Equal(t, "J1", got["jobId"])
	assert.Equal(t, "U9", got["userId"])
	assert.Equal(t, "2025-03-01T12:00:00Z", got["at"])
}

func TestEncode_FillsTime(t *testing.T) {
	b, err := Encode(notify.Notification{Kind: notify.KindJobCreated})
	require.NoError(t, err)

	var n notify.Notification
	require.NoError(t, json.Unmarshal(b, &n))
	assert.False(t, n.At.IsZero())
	assert.Empty(t, n.JobID)
}

func TestDecodeInvalidation(t *testing.T) {
	assert.Equal(t, Invalidation{Reason: "bulk import", JobID: "J7"},
		DecodeInvalidation(`{"reason":"bulk import","jobId":"J7"}`))
	assert.Equal(t, Invalidation{Reason: "flush"}, DecodeInvalidation("flush"))
	assert.Equal(t, Invalidation{}, DecodeInvalidation("{}"))
}

func TestInvalidator_HandleReloadsAndSwallowsErrors(t *testing.T) {
	calls := 0
	inv := NewInvalidator(nil, "jobsync:invalidate", ReloaderFunc(func(context.Context) error {
		calls++
		if calls == 2 {
			return errors.New("store down")
		}
		return nil
	}))

	inv.handle(context.Background(), "first")
	inv.handle(context.Background(), `{"reason":"second"}`)
	assert.Equal(t, 2, calls)
}

func TestRedisNotifier_UnreachableServerIsNonFatal(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	n := NewRedisNotifier(rdb, "jobsync:notifications")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NotPanics(t, func() {
		n.Notify(ctx, notify.Notification{Kind: notify.KindJobDeleted, JobID: "J1"})
	})
	assert.Error(t, Publish(ctx, rdb, "jobsync:invalidate", Invalidation{Reason: "test"}))
}
