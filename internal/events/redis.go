// Package events connects the sync layer to Redis pub/sub: notifications
// are published for other processes, and invalidation messages published
// by writers of the remote store trigger a full reload.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/jobsync/internal/notify"
)

// ─── Publishing ──────────────────────────────────────────────────────────────

// RedisNotifier publishes every notification as JSON on one channel.
// Publishing is best effort: failures are logged and never surface.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
}

// NewRedisNotifier returns a notifier publishing on channel.
func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, channel: channel}
}

// Notify implements notify.Notifier.
func (r *RedisNotifier) Notify(ctx context.Context, n notify.Notification) {
	payload, err := Encode(n)
	if err != nil {
		slog.Warn("encode notification failed", "type", n.Kind, "err", err)
		return
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		slog.Warn("publish notification failed", "channel", r.channel, "type", n.Kind, "err", err)
	}
}

// Encode renders a notification as its wire JSON.
func Encode(n notify.Notification) ([]byte, error) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return b, nil
}

// ─── Invalidation ────────────────────────────────────────────────────────────

// Reloader is what an invalidation refreshes.
type Reloader interface {
	LoadAll(ctx context.Context) error
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func(ctx context.Context) error

// LoadAll implements Reloader.
func (f ReloaderFunc) LoadAll(ctx context.Context) error { return f(ctx) }

// Invalidation is the optional payload of an invalidation message.
type Invalidation struct {
	Reason string `json:"reason,omitempty"`
	JobID  string `json:"jobId,omitempty"`
}

// DecodeInvalidation parses an invalidation payload. Anything that is not
// a JSON object is treated as a bare reason string.
func DecodeInvalidation(payload string) Invalidation {
	var inv Invalidation
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		return Invalidation{Reason: payload}
	}
	return inv
}

// Invalidator reloads the cache whenever a message arrives on a channel.
type Invalidator struct {
	rdb     *redis.Client
	channel string
	reload  Reloader
}

// NewInvalidator returns an Invalidator listening on channel.
func NewInvalidator(rdb *redis.Client, channel string, reload Reloader) *Invalidator {
	return &Invalidator{rdb: rdb, channel: channel, reload: reload}
}

// Run subscribes and blocks until ctx is done. Reload failures are logged;
// the subscription stays up.
func (i *Invalidator) Run(ctx context.Context) error {
	sub := i.rdb.Subscribe(ctx, i.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", i.channel, err)
	}
	slog.Info("listening for invalidations", "channel", i.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			i.handle(ctx, msg.Payload)
		}
	}
}

func (i *Invalidator) handle(ctx context.Context, payload string) {
	inv := DecodeInvalidation(payload)
	slog.Info("invalidation received, reloading", "reason", inv.Reason, "jobId", inv.JobID)
	if err := i.reload.LoadAll(ctx); err != nil {
		slog.Warn("reload after invalidation failed", "err", err)
	}
}

// Publish sends an invalidation on channel, for the CLI's reload command.
func Publish(ctx context.Context, rdb *redis.Client, channel string, inv Invalidation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	if err := rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}
