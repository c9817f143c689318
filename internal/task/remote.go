package task

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/annealing-core/internal/rpc"
	"github.com/GoSim-25-26J-441/annealing-core/internal/structure"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

// SimulationService is the gRPC service remote simulators expose
const SimulationService = "raspa.v1.SimulationService"

// Remote task states
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// SimulationServer is implemented by remote simulators.
//
// SubmitTask receives {run_id, label, call_label, kind, parameters, structure_cif,
// parent, files, block_pocket} and answers {task_id}. GetTask and CancelTask receive
// {task_id}; GetTask answers {state, error, artifact_ref, output_parameters}.
type SimulationServer interface {
	SubmitTask(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTask(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelTask(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// SimulationServiceDesc registers a SimulationServer on a grpc.Server
var SimulationServiceDesc = grpc.ServiceDesc{
	ServiceName: SimulationService,
	HandlerType: (*SimulationServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary[SimulationServer](SimulationService, "SubmitTask", SimulationServer.SubmitTask),
		rpc.Unary[SimulationServer](SimulationService, "GetTask", SimulationServer.GetTask),
		rpc.Unary[SimulationServer](SimulationService, "CancelTask", SimulationServer.CancelTask),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raspa/v1/simulation.proto",
}

// RemoteConfig configures a RemoteRunner
type RemoteConfig struct {
	// Backoff paces GetTask polls; nil means exponential from one second up to a minute
	Backoff utils.BackoffStrategy
	// CallTimeout bounds every single RPC; zero means 30s
	CallTimeout time.Duration
}

// RemoteRunner submits stages to a remote simulation service. The service owns the
// artifacts; their refs must be readable from the store the controller assembles from.
type RemoteRunner struct {
	conn    grpc.ClientConnInterface
	backoff utils.BackoffStrategy
	timeout time.Duration
}

// NewRemoteRunner creates a runner over an established connection
func NewRemoteRunner(conn grpc.ClientConnInterface, cfg RemoteConfig) *RemoteRunner {
	if cfg.Backoff == nil {
		cfg.Backoff = utils.NewExponentialBackoff(time.Second, time.Minute, 2, true)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &RemoteRunner{conn: conn, backoff: cfg.Backoff, timeout: cfg.CallTimeout}
}

func (r *RemoteRunner) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return rpc.Invoke(ctx, r.conn, SimulationService, method, req)
}

// Submit sends the stage inputs inline and returns once the service accepted them
func (r *RemoteRunner) Submit(ctx context.Context, in Input) (Handle, error) {
	if in.Document == nil || in.Structure == nil {
		return nil, fmt.Errorf("stage %s: document and structure are required", in.Label)
	}
	cif, err := structure.CIFBytes(in.Structure)
	if err != nil {
		return nil, fmt.Errorf("stage %s: render framework: %w", in.Label, err)
	}
	files := make(map[string]any, len(in.ForceField))
	for name, content := range in.ForceField {
		files[name] = content
	}
	req := map[string]any{
		"run_id":        in.RunID,
		"label":         in.Label,
		"call_label":    in.CallLabel,
		"kind":          string(in.Kind),
		"parameters":    PrepareDocument(in).Map(),
		"structure_cif": string(cif),
		"parent":        in.Parent,
		"files":         files,
		"block_pocket":  string(in.BlockPocket),
	}
	resp, err := r.call(ctx, "SubmitTask", req)
	if err != nil {
		return nil, fmt.Errorf("stage %s: submit: %w", in.Label, err)
	}
	id := rpc.String(resp, "task_id")
	if id == "" {
		return nil, fmt.Errorf("stage %s: submit: service returned no task_id", in.Label)
	}
	logger.Info("remote stage submitted", "run_id", in.RunID, "label", in.Label, "task_id", id)
	return &remoteHandle{runner: r, id: id, label: in.Label}, nil
}

type remoteHandle struct {
	runner *RemoteRunner
	id     string
	label  string
}

func (h *remoteHandle) ID() string { return h.id }

// Wait polls GetTask until the task leaves the queued and running states
func (h *remoteHandle) Wait(ctx context.Context) (*Result, error) {
	for attempt := 0; ; attempt++ {
		resp, err := h.runner.call(ctx, "GetTask", map[string]any{"task_id": h.id})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("stage %s: poll task %s: %w", h.label, h.id, err)
		}

		switch state := rpc.String(resp, "state"); state {
		case StateSucceeded:
			ref := rpc.String(resp, "artifact_ref")
			if ref == "" {
				return nil, fmt.Errorf("%w: %s: task %s succeeded without an artifact", ErrTaskFailed, h.label, h.id)
			}
			return &Result{
				Label:            h.label,
				ArtifactRef:      ref,
				OutputParameters: rpc.Map(resp, "output_parameters"),
			}, nil
		case StateFailed:
			return nil, fmt.Errorf("%w: %s: %s", ErrTaskFailed, h.label, rpc.String(resp, "error"))
		case StateCancelled:
			return nil, ErrTaskCancelled
		case StateQueued, StateRunning, "":
		default:
			return nil, fmt.Errorf("stage %s: task %s in unknown state %q", h.label, h.id, state)
		}

		if err := utils.Sleep(ctx, h.runner.backoff.NextDelay(attempt)); err != nil {
			return nil, err
		}
	}
}

func (h *remoteHandle) Cancel(ctx context.Context) error {
	_, err := h.runner.call(ctx, "CancelTask", map[string]any{"task_id": h.id})
	if err != nil {
		return fmt.Errorf("cancel task %s: %w", h.id, err)
	}
	return nil
}
