// Package notify carries user-facing notifications (the UI's toasts) from
// the sync layer to whoever presents them: logs, Redis subscribers and
// websocket clients.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Level separates confirmations from failures.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Kind identifies what happened.
type Kind string

const (
	KindJobCreated      Kind = "JOB_CREATED"
	KindJobCreateFailed Kind = "JOB_CREATE_FAILED"
	KindJobUpdated      Kind = "JOB_UPDATED"
	KindJobDeleted      Kind = "JOB_DELETED"
	KindJobDeleteFailed Kind = "JOB_DELETE_FAILED"
	KindLikeAdded       Kind = "LIKE_ADDED"
	KindLikeRemoved     Kind = "LIKE_REMOVED"
	KindLikeFailed      Kind = "LIKE_FAILED"
	KindSaveAdded       Kind = "SAVE_ADDED"
	KindSaveRemoved     Kind = "SAVE_REMOVED"
	KindSaveFailed      Kind = "SAVE_FAILED"
	KindCommentAdded    Kind = "COMMENT_ADDED"
	KindReplyAdded      Kind = "REPLY_ADDED"
	KindReloadFailed    Kind = "RELOAD_FAILED"
)

// Notification is a single user-facing message.
type Notification struct {
	Kind    Kind      `json:"type"`
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	JobID   string    `json:"jobId,omitempty"`
	UserID  string    `json:"userId,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications. Implementations must not block the
// caller for long and must never fail it: delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Fanout delivers every notification to each of its notifiers in order.
type Fanout []Notifier

// Notify implements Notifier.
func (f Fanout) Notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	for _, target := range f {
		if target != nil {
			target.Notify(ctx, n)
		}
	}
}

// LogNotifier writes notifications to a slog.Logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, n.Title,
		"type", n.Kind, "message", n.Message, "jobId", n.JobID, "userId", n.UserID)
}

// Discard drops every notification.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(context.Context, Notification) {}

// Recorder keeps notifications in memory; handy for tests and diagnostics.
type Recorder struct {
	ch chan Notification
}

// NewRecorder returns a Recorder buffering up to size notifications.
// Notifications beyond the buffer are dropped.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Notification, size)}
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	select {
	case r.ch <- n:
	default:
	}
}

// Drain returns and clears every buffered notification.
func (r *Recorder) Drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-r.ch:
			out = append(out, n)
		default:
			return out
		}
	}
}
