package annealerd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/annealing-core/internal/metrics"
	"github.com/GoSim-25-26J-441/annealing-core/internal/structure"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

const maxRequestBytes = 64 << 20

// CreateRunRequest is the body of POST /v1/runs and of the CreateRun RPC
type CreateRunRequest struct {
	RunID          string    `json:"run_id,omitempty"`
	Input          *RunInput `json:"input"`
	CallbackSecret string    `json:"callback_secret,omitempty"`
	// Start begins the run right after it is created
	Start bool `json:"start,omitempty"`
}

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
	notifier *Notifier
}

// NewHTTPServer wires the HTTP API. With m set, /metrics serves its registry.
func NewHTTPServer(store *RunStore, executor *RunExecutor, notifier *Notifier, m *metrics.Metrics) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
		notifier: notifier,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)
	if m != nil {
		s.mux.Handle("/metrics", m.Handler())
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs endpoint
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id}, /v1/runs/{id}:start, /v1/runs/{id}:stop and
// /v1/runs/{id}/outputs
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	route := func(suffix, method string, handle func(http.ResponseWriter, *http.Request, string)) bool {
		if !strings.HasSuffix(path, suffix) {
			return false
		}
		if r.Method != method {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return true
		}
		handle(w, r, strings.TrimSuffix(path, suffix))
		return true
	}

	switch {
	case route(":start", http.MethodPost, s.handleStartRun):
	case route(":stop", http.MethodPost, s.handleStopRun):
	case route("/outputs", http.MethodGet, s.handleGetOutputs):
	case r.Method == http.MethodGet:
		s.handleGetRun(w, r, path)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := createRun(s.store, s.Executor, s.notifier, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunExists):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidRun):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("run created (HTTP)", "run_id", rec.Run.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{"run": rec.Run})
}

// handleListRuns handles GET /v1/runs with pagination and filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 1000)
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var status models.RunStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		if status = models.ParseRunStatus(statusStr); status == "" {
			s.writeError(w, http.StatusBadRequest, "unknown status: "+statusStr)
			return
		}
	}

	recs := s.store.List(limit, offset, status)
	runs := make([]Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": rec.Run})
}

// handleStartRun handles POST /v1/runs/{id}:start
func (s *HTTPServer) handleStartRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Start(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}
	logger.Info("run started (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{"run": updated.Run})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}
	logger.Info("run cancelled (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{"run": updated.Run})
}

// handleGetOutputs handles GET /v1/runs/{id}/outputs
func (s *HTTPServer) handleGetOutputs(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Outputs == nil {
		s.writeError(w, http.StatusPreconditionFailed, "outputs not available")
		return
	}
	view, err := outputsView(rec)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) writeExecutorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRunNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRunTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

// createRun validates and stores a new run, starting it when asked to. It backs both
// the HTTP and the gRPC surface.
func createRun(store *RunStore, executor *RunExecutor, notifier *Notifier, req *CreateRunRequest) (*RunRecord, error) {
	if req.Input == nil {
		return nil, fmt.Errorf("%w: input is required", ErrInvalidRun)
	}
	in := *req.Input
	in.CallbackSecret = req.CallbackSecret
	if err := validateInput(&in, notifier); err != nil {
		return nil, err
	}

	rec, err := store.Create(req.RunID, &in)
	if err != nil {
		return nil, err
	}
	if req.Start {
		return executor.Start(rec.Run.ID)
	}
	return rec, nil
}

func validateInput(in *RunInput, notifier *Notifier) error {
	if strings.TrimSpace(in.StructureCIF) == "" {
		return fmt.Errorf("%w: structure_cif is required", ErrInvalidRun)
	}
	if _, err := structure.ReadCIFBytes([]byte(in.StructureCIF)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if (in.Molecule == nil) == (in.MoleculeName == "") {
		return fmt.Errorf("%w: exactly one of molecule and molecule_name is required", ErrInvalidRun)
	}
	if in.Parameters != nil && in.ParameterYAML != "" {
		return fmt.Errorf("%w: parameters and parameters_yaml are mutually exclusive", ErrInvalidRun)
	}
	if in.CallbackURL != "" {
		if notifier == nil {
			return fmt.Errorf("%w: callbacks are disabled", ErrInvalidRun)
		}
		if err := notifier.Validate(in.CallbackURL); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRun, err)
		}
	}
	return nil
}

// outputsView renders a run's outputs with both structures as CIF text
func outputsView(rec *RunRecord) (map[string]any, error) {
	mol, err := structure.CIFBytes(rec.Outputs.LoadedMolecule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode loaded molecule: %w", err)
	}
	loaded, err := structure.CIFBytes(rec.Outputs.LoadedStructure)
	if err != nil {
		return nil, fmt.Errorf("failed to encode loaded structure: %w", err)
	}
	view := map[string]any{
		"run_id":               rec.Run.ID,
		"loaded_molecule_cif":  string(mol),
		"loaded_structure_cif": string(loaded),
	}
	if rec.Outputs.OutputParameters != nil {
		view["output_parameters"] = rec.Outputs.OutputParameters
	}
	return view, nil
}
