package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/jobsync/internal/jobsync"
	"jobmate/jobsync/internal/model"
)

// Client calls a JobSync server over an established connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithAuthor attaches the x-user-* metadata the server reads comment
// authors from.
func WithAuthor(ctx context.Context, a model.Author) context.Context {
	kv := []string{"x-user-id", a.ID, "x-user-name", a.Name}
	if a.Photo != "" {
		kv = append(kv, "x-user-photo", a.Photo)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func (c *Client) call(ctx context.Context, method string, req map[string]any, out any) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return FromStruct(resp, out)
}

// ListJobs returns the server's cached jobs.
func (c *Client) ListJobs(ctx context.Context) ([]model.Job, error) {
	var out struct {
		Jobs []model.Job `json:"jobs"`
	}
	if err := c.call(ctx, "ListJobs", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob returns one cached job.
func (c *Client) GetJob(ctx context.Context, id string) (model.Job, error) {
	var j model.Job
	err := c.call(ctx, "GetJob", map[string]any{"id": id}, &j)
	return j, err
}

// DeleteJob deletes a job.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.call(ctx, "DeleteJob", map[string]any{"id": id}, nil)
}

// ToggleLike flips the server user's like on jobID.
func (c *Client) ToggleLike(ctx context.Context, jobID string) (jobsync.ToggleResult, error) {
	var res jobsync.ToggleResult
	err := c.call(ctx, "ToggleLike", map[string]any{"jobId": jobID}, &res)
	return res, err
}

// ToggleSaved flips the server user's save on jobID.
func (c *Client) ToggleSaved(ctx context.Context, jobID string) (jobsync.ToggleResult, error) {
	var res jobsync.ToggleResult
	err := c.call(ctx, "ToggleSaved", map[string]any{"jobId": jobID}, &res)
	return res, err
}

// AddComment comments on jobID. Use WithAuthor to set the author.
func (c *Client) AddComment(ctx context.Context, jobID, content string) (model.Comment, error) {
	var out model.Comment
	err := c.call(ctx, "AddComment", map[string]any{"jobId": jobID, "content": content}, &out)
	return out, err
}

// AddReply replies to commentID on jobID.
func (c *Client) AddReply(ctx context.Context, jobID, commentID, content string) (model.Reply, error) {
	var out model.Reply
	err := c.call(ctx, "AddReply", map[string]any{"jobId": jobID, "commentId": commentID, "content": content}, &out)
	return out, err
}

// Reload asks the server to reload from the remote store and returns the
// number of jobs cached.
func (c *Client) Reload(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.call(ctx, "Reload", map[string]any{}, &out)
	return out.Count, err
}
