package jobsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"jobmate/jobsync/internal/model"
)

// Threads appends comments and replies inside a job's comment tree.
//
// Comments are written optimistically and then the whole job is re-fetched
// so the server-assigned fields win. Replies are confirmed by the gateway
// first and appended without a re-fetch.
type Threads struct {
	gw    Gateway
	cache *Cache
	now   func() time.Time
	newID func() string

	refetch singleflight.Group
}

// NewThreads returns a Threads writing into cache and confirming through gw.
// Nil now and newID default to time.Now and random UUIDs.
func NewThreads(gw Gateway, cache *Cache, now func() time.Time, newID func() string) *Threads {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Threads{gw: gw, cache: cache, now: now, newID: newID}
}

// AddComment appends a comment by author to job jobID and returns the
// comment as confirmed by the gateway.
func (t *Threads) AddComment(ctx context.Context, jobID, content string, author model.Author) (model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return model.Comment{}, invalid("comment content must not be empty")
	}
	if author.ID == "" {
		return model.Comment{}, invalid("comment author is required")
	}

	placeholder := model.Comment{
		ID:        t.newID(),
		JobID:     jobID,
		UserID:    author.ID,
		UserName:  author.Name,
		UserPhoto: author.Photo,
		Content:   content,
		Timestamp: t.now().UnixMilli(),
		Replies:   []model.Reply{},
	}
	if err := t.cache.AppendComment(jobID, placeholder); err != nil {
		return model.Comment{}, err
	}

	confirmed, err := t.gw.AddComment(ctx, jobID, content, author)
	if err != nil {
		if _, ferr := t.Refresh(ctx, jobID); ferr != nil {
			slog.Warn("refresh after failed comment", "jobId", jobID, "err", ferr)
		}
		// The server never accepted the placeholder.
		if rerr := t.cache.RemoveComment(jobID, placeholder.ID); rerr != nil && !errors.Is(rerr, ErrNotFound) {
			slog.Warn("drop placeholder comment", "jobId", jobID, "commentId", placeholder.ID, "err", rerr)
		}
		return model.Comment{}, remote("addComment", err)
	}
	confirmed = t.fillComment(confirmed, jobID, author)

	if _, err := t.Refresh(ctx, jobID); err != nil {
		slog.Warn("refresh after comment failed, keeping confirmed copy", "jobId", jobID, "err", err)
	}
	t.settleComment(jobID, placeholder.ID, confirmed)
	return confirmed, nil
}

// settleComment makes sure the confirmed comment is in the cached thread
// exactly once. A shared re-fetch may have read the job before the comment
// was stored, dropping both the placeholder and the comment.
func (t *Threads) settleComment(jobID, placeholderID string, confirmed model.Comment) {
	if t.cache.HasComment(jobID, confirmed.ID) {
		if placeholderID != confirmed.ID {
			_ = t.cache.RemoveComment(jobID, placeholderID)
		}
		return
	}
	var err error
	if t.cache.HasComment(jobID, placeholderID) {
		err = t.cache.ReplaceComment(jobID, placeholderID, confirmed)
	} else {
		err = t.cache.AppendComment(jobID, confirmed)
	}
	if err != nil {
		slog.Warn("settle confirmed comment", "jobId", jobID, "commentId", confirmed.ID, "err", err)
	}
}

// AddReply appends a reply by author under comment commentID of job jobID.
func (t *Threads) AddReply(ctx context.Context, jobID, commentID, content string, author model.Author) (model.Reply, error) {
	if strings.TrimSpace(content) == "" {
		return model.Reply{}, invalid("reply content must not be empty")
	}
	if author.ID == "" {
		return model.Reply{}, invalid("reply author is required")
	}
	if _, ok := t.cache.Get(jobID); !ok {
		return model.Reply{}, fmt.Errorf("addReply job %s: %w", jobID, ErrNotFound)
	}
	if !t.cache.HasComment(jobID, commentID) {
		return model.Reply{}, fmt.Errorf("addReply comment %s: %w", commentID, ErrNotFound)
	}

	reply, err := t.gw.AddReply(ctx, jobID, commentID, content, author)
	if err != nil {
		return model.Reply{}, remote("addReply", err)
	}
	if reply.ID == "" {
		reply.ID = t.newID()
	}
	if reply.UserName == "" {
		reply.UserName = author.Name
	}
	reply = model.NormalizeReply(reply, commentID, t.now())

	if err := t.cache.AppendReply(jobID, commentID, reply); err != nil {
		return model.Reply{}, err
	}
	return reply, nil
}

// Refresh re-fetches a single job and overwrites the cached copy.
// Concurrent refreshes of the same job share one gateway call.
func (t *Threads) Refresh(ctx context.Context, jobID string) (model.Job, error) {
	v, err, _ := t.refetch.Do(jobID, func() (any, error) {
		job, err := t.gw.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.ID == "" {
			return nil, errors.New("refetched job has no id")
		}
		return t.cache.Upsert(job), nil
	})
	if err != nil {
		return model.Job{}, remote("getJob", err)
	}
	return v.(model.Job).Clone(), nil
}

func (t *Threads) fillComment(c model.Comment, jobID string, author model.Author) model.Comment {
	if c.ID == "" {
		c.ID = t.newID()
	}
	if c.UserID == "" {
		c.UserID = author.ID
	}
	if c.UserName == "" {
		c.UserName = author.Name
	}
	if c.UserPhoto == "" {
		c.UserPhoto = author.Photo
	}
	return model.NormalizeComment(c, jobID, t.now())
}
