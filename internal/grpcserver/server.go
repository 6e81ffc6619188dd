// Package grpcserver implements the JobSync gRPC service.
//
// It delegates all behaviour to the sync layer and handles only the gRPC
// transport concerns: metadata extraction, error mapping and conversion
// between the domain model and protobuf Struct messages.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/jobsync/internal/jobsync"
	"jobmate/jobsync/internal/model"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "jobsync.v1.JobSync"

// Syncer is the part of the sync layer the service exposes.
type Syncer interface {
	LoadAll(ctx context.Context) ([]model.Job, error)
	Jobs() []model.Job
	Job(id string) (model.Job, bool)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, jobID string) jobsync.ToggleResult
	ToggleSaved(ctx context.Context, jobID string) jobsync.ToggleResult
	AddComment(ctx context.Context, jobID, content string, author model.Author) (model.Comment, error)
	AddReply(ctx context.Context, jobID, commentID, content string, author model.Author) (model.Reply, error)
}

// JobSyncServer is the service contract. Requests and responses are
// google.protobuf.Struct messages carrying the JSON shape of the model.
type JobSyncServer interface {
	ListJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleLike(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleSaved(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddComment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddReply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reload(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes JobSyncServer for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JobSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListJobs", JobSyncServer.ListJobs),
		unary("GetJob", JobSyncServer.GetJob),
		unary("DeleteJob", JobSyncServer.DeleteJob),
		unary("ToggleLike", JobSyncServer.ToggleLike),
		unary("ToggleSaved", JobSyncServer.ToggleSaved),
		unary("AddComment", JobSyncServer.AddComment),
		unary("AddReply", JobSyncServer.AddReply),
		unary("Reload", JobSyncServer.Reload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "jobsync/v1/jobsync.proto",
}

// Register mounts s on gs.
func Register(gs grpc.ServiceRegistrar, s JobSyncServer) {
	gs.RegisterService(&ServiceDesc, s)
}

type rpcFunc func(JobSyncServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call rpcFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(JobSyncServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// FullMethod returns the wire path of an RPC, e.g. /jobsync.v1.JobSync/GetJob.
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// Server implements JobSyncServer.
type Server struct {
	sync Syncer
}

// NewServer constructs a gRPC Server backed by the given sync layer.
func NewServer(s Syncer) *Server {
	return &Server{sync: s}
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// ListJobs returns every cached job, newest first.
func (s *Server) ListJobs(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"jobs": s.sync.Jobs()})
}

// GetJob returns one cached job.
func (s *Server) GetJob(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredField(req, "id")
	if err != nil {
		return nil, err
	}
	job, ok := s.sync.Job(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "job %s not found", id)
	}
	return toStruct(job)
}

// DeleteJob removes a job remotely and from the cache.
func (s *Server) DeleteJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredField(req, "id")
	if err != nil {
		return nil, err
	}
	if err := s.sync.Delete(ctx, id); err != nil {
		return nil, toGRPCError(err)
	}
	return &structpb.Struct{}, nil
}

// ToggleLike flips the current user's like. Declined and failed toggles
// are reported in the response, not as RPC errors.
func (s *Server) ToggleLike(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredField(req, "jobId")
	if err != nil {
		return nil, err
	}
	return toggleToStruct(s.sync.ToggleLike(ctx, id))
}

// ToggleSaved flips whether the current user saved the job.
func (s *Server) ToggleSaved(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredField(req, "jobId")
	if err != nil {
		return nil, err
	}
	return toggleToStruct(s.sync.ToggleSaved(ctx, id))
}

// AddComment publishes a comment authored by the caller.
func (s *Server) AddComment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	jobID, err := requiredField(req, "jobId")
	if err != nil {
		return nil, err
	}
	c, err := s.sync.AddComment(ctx, jobID, stringField(req, "content"), authorFromCtx(ctx))
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(c)
}

// AddReply publishes a reply under a comment.
func (s *Server) AddReply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	jobID, err := requiredField(req, "jobId")
	if err != nil {
		return nil, err
	}
	commentID, err := requiredField(req, "commentId")
	if err != nil {
		return nil, err
	}
	r, err := s.sync.AddReply(ctx, jobID, commentID, stringField(req, "content"), authorFromCtx(ctx))
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(r)
}

// Reload forces a full reload from the remote store.
func (s *Server) Reload(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	jobs, err := s.sync.LoadAll(ctx)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(map[string]any{"count": len(jobs)})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// authorFromCtx reads the x-user-* values forwarded by the gateway. Missing
// metadata yields an empty author, which the sync layer replaces with the
// current user.
func authorFromCtx(ctx context.Context) model.Author {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return model.Author{}
	}
	first := func(key string) string {
		if vals := md.Get(key); len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
	return model.Author{
		ID:    first("x-user-id"),
		Name:  first("x-user-name"),
		Photo: first("x-user-photo"),
	}
}

func stringField(req *structpb.Struct, key string) string {
	if v, ok := req.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func requiredField(req *structpb.Struct, key string) (string, error) {
	v := stringField(req, key)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return v, nil
}

// toGRPCError maps sync-layer errors to gRPC status errors.
func toGRPCError(err error) error {
	switch {
	case errors.Is(err, jobsync.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, jobsync.ErrInvalidInput):
		var ve *jobsync.ValidationError
		if errors.As(err, &ve) {
			return status.Error(codes.InvalidArgument, ve.Msg)
		}
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, jobsync.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, jobsync.ErrRemoteFailure):
		return status.Error(codes.Unavailable, "remote store unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "internal server error")
}

func toggleToStruct(res jobsync.ToggleResult) (*structpb.Struct, error) {
	out := map[string]any{
		"jobId":   res.JobID,
		"active":  res.Active,
		"applied": res.Applied,
		"phase":   string(res.Phase),
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	return structpb.NewStruct(out)
}

// toStruct converts a JSON-tagged value to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// FromStruct decodes a Struct into a JSON-tagged value.
func FromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	return json.Unmarshal(b, v)
}
