package model

import (
	"log/slog"
	"time"
)

// DefaultUserName is shown for records whose author name was never stored.
const DefaultUserName = "Usuario"

// createdAtLayouts are the ISO-8601 shapes legacy records carry in createdAt.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeJob fills the optional fields the remote store may omit for
// legacy records and enforces the likes set invariant. now supplies the
// fallback timestamp when neither timestamp nor createdAt is usable.
func NormalizeJob(j Job, now time.Time) Job {
	out := j.Clone()

	if out.Skills == nil {
		out.Skills = []string{}
	}
	out.Likes = dedupe(out.Likes)

	if out.Comments == nil {
		out.Comments = []Comment{}
	}
	for i := range out.Comments {
		out.Comments[i] = NormalizeComment(out.Comments[i], out.ID, now)
	}

	if out.Timestamp == 0 {
		out.Timestamp = millisFromCreatedAt(out.CreatedAt, now)
	}
	if out.UserName == "" {
		out.UserName = DefaultUserName
	}

	switch {
	case out.Status == "":
		out.Status = StatusOpen
	default:
		if _, err := ParseStatus(string(out.Status)); err != nil {
			slog.Warn("unknown job status, defaulting to open", "jobId", out.ID, "status", out.Status)
			out.Status = StatusOpen
		}
	}
	return out
}

// NormalizeComment defaults the comment's replies, author name and timestamp.
// An empty JobID is filled with jobID.
func NormalizeComment(c Comment, jobID string, now time.Time) Comment {
	out := c.Clone()
	if out.JobID == "" {
		out.JobID = jobID
	}
	if out.UserName == "" {
		out.UserName = DefaultUserName
	}
	if out.Timestamp == 0 {
		out.Timestamp = now.UnixMilli()
	}
	if out.Replies == nil {
		out.Replies = []Reply{}
	}
	for i := range out.Replies {
		out.Replies[i] = NormalizeReply(out.Replies[i], out.ID, now)
	}
	return out
}

// NormalizeReply defaults the reply's author name, timestamp and owner.
func NormalizeReply(r Reply, commentID string, now time.Time) Reply {
	if r.CommentID == "" {
		r.CommentID = commentID
	}
	if r.UserName == "" {
		r.UserName = DefaultUserName
	}
	if r.Timestamp == 0 {
		r.Timestamp = now.UnixMilli()
	}
	return r
}

func millisFromCreatedAt(createdAt string, now time.Time) int64 {
	if createdAt != "" {
		for _, layout := range createdAtLayouts {
			if t, err := time.Parse(layout, createdAt); err == nil {
				return t.UnixMilli()
			}
		}
	}
	return now.UnixMilli()
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
