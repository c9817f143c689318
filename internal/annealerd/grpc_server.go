package annealerd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/annealing-core/internal/rpc"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

// AnnealingService is the gRPC service name of the daemon
const AnnealingService = "annealing.v1.AnnealingService"

// AnnealingServer is the daemon's gRPC API. Requests and responses are Structs shaped
// like the HTTP bodies: CreateRun takes {run_id, input, callback_secret, start},
// the others {run_id}; ListRuns takes {limit, offset, status}. Every method but
// ListRuns and GetRunOutputs answers {run}.
type AnnealingServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRunOutputs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AnnealingServiceDesc registers an AnnealingServer on a grpc.Server
var AnnealingServiceDesc = grpc.ServiceDesc{
	ServiceName: AnnealingService,
	HandlerType: (*AnnealingServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary[AnnealingServer](AnnealingService, "CreateRun", AnnealingServer.CreateRun),
		rpc.Unary[AnnealingServer](AnnealingService, "StartRun", AnnealingServer.StartRun),
		rpc.Unary[AnnealingServer](AnnealingService, "StopRun", AnnealingServer.StopRun),
		rpc.Unary[AnnealingServer](AnnealingService, "GetRun", AnnealingServer.GetRun),
		rpc.Unary[AnnealingServer](AnnealingService, "ListRuns", AnnealingServer.ListRuns),
		rpc.Unary[AnnealingServer](AnnealingService, "GetRunOutputs", AnnealingServer.GetRunOutputs),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "annealing/v1/annealing.proto",
}

// RegisterAnnealingServer registers srv on s
func RegisterAnnealingServer(s grpc.ServiceRegistrar, srv AnnealingServer) {
	s.RegisterService(&AnnealingServiceDesc, srv)
}

// AnnealingGRPCServer implements AnnealingServer over a RunStore and RunExecutor.
type AnnealingGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
	notifier *Notifier
}

func NewAnnealingGRPCServer(store *RunStore, executor *RunExecutor, notifier *Notifier) *AnnealingGRPCServer {
	return &AnnealingGRPCServer{
		store:    store,
		Executor: executor,
		notifier: notifier,
	}
}

func (s *AnnealingGRPCServer) CreateRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var create CreateRunRequest
	if err := decodeStruct(req, &create); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rec, err := createRun(s.store, s.Executor, s.notifier, &create)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunExists):
			return nil, status.Error(codes.AlreadyExists, err.Error())
		case errors.Is(err, ErrInvalidRun):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	logger.Info("run created", "run_id", rec.Run.ID)
	return runResponse(rec)
}

func (s *AnnealingGRPCServer) StartRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := rpc.String(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	updated, err := s.Executor.Start(runID)
	if err != nil {
		return nil, executorStatus(err)
	}
	logger.Info("run started (executor)", "run_id", runID)
	return runResponse(updated)
}

func (s *AnnealingGRPCServer) StopRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := rpc.String(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		return nil, executorStatus(err)
	}
	logger.Info("run cancelled", "run_id", runID)
	return runResponse(updated)
}

func (s *AnnealingGRPCServer) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := rpc.String(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return runResponse(rec)
}

func (s *AnnealingGRPCServer) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit, offset := 50, 0
	if v, ok := rpc.Number(req, "limit"); ok && v > 0 {
		limit = int(v)
	}
	if v, ok := rpc.Number(req, "offset"); ok && v > 0 {
		offset = int(v)
	}
	var st models.RunStatus
	if raw := rpc.String(req, "status"); raw != "" {
		if st = models.ParseRunStatus(raw); st == "" {
			return nil, status.Errorf(codes.InvalidArgument, "unknown status: %s", raw)
		}
	}

	recs := s.store.List(limit, offset, st)
	runs := make([]Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}
	return encodeStruct(map[string]any{"runs": runs})
}

func (s *AnnealingGRPCServer) GetRunOutputs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := rpc.String(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	if rec.Outputs == nil {
		return nil, status.Error(codes.FailedPrecondition, "outputs not available")
	}
	view, err := outputsView(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return encodeStruct(view)
}

func executorStatus(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRunTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func runResponse(rec *RunRecord) (*structpb.Struct, error) {
	return encodeStruct(map[string]any{"run": rec.Run})
}

// encodeStruct converts v to a Struct through its JSON form
func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func decodeStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return errors.New("request is required")
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}
