// Package annealerd is the annealing daemon: an in-memory run store, an executor
// running one annealing controller per run, and the HTTP and gRPC surfaces over them.
package annealerd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoSim-25-26J-441/annealing-core/internal/annealing"
	"github.com/GoSim-25-26J-441/annealing-core/internal/structure"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
	ErrRunExists    = errors.New("run already exists")
	ErrInvalidRun   = errors.New("invalid run")
)

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	base     annealing.Config
	notifier *Notifier

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunExecutor creates an executor. Every run gets a controller built from base;
// base.Observer is replaced. A nil notifier disables callbacks.
func NewRunExecutor(store *RunStore, base annealing.Config, notifier *Notifier) *RunExecutor {
	return &RunExecutor{
		store:    store,
		base:     base,
		notifier: notifier,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start begins executing a run asynchronously.
// Returns the updated run state (running) or an error.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	// status change and cancel registration form one step under e.mu
	e.mu.Lock()
	updated, started, err := e.store.MarkRunning(runID)
	if err != nil || !started {
		e.mu.Unlock()
		return updated, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancels[runID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runAnnealing(ctx, runID)
	return updated, nil
}

// Stop requests cancellation for a run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	e.mu.Lock()
	cancel, running := e.cancels[runID]
	e.mu.Unlock()

	if running {
		cancel()
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "")
	if err != nil {
		return nil, err
	}
	// a running run notifies once its controller has returned
	if !running {
		e.notify(updated)
	}
	return updated, nil
}

// Shutdown cancels every running run and waits for them to return, or for ctx.
func (e *RunExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) runAnnealing(ctx context.Context, runID string) {
	defer e.wg.Done()
	defer e.cleanup(runID)

	rec, ok := e.store.Get(runID)
	if !ok {
		logger.Error("run not found", "run_id", runID)
		return
	}

	host, err := structure.ReadCIFBytes([]byte(rec.Input.StructureCIF))
	if err != nil {
		e.finish(runID, models.RunStatusFailed, fmt.Sprintf("invalid structure: %v", err), nil)
		return
	}

	var ctrl *annealing.Controller
	cfg := e.base
	cfg.Observer = func(ev annealing.Event) {
		if ev.Kind == annealing.EventReport {
			if err := e.store.AppendReport(runID, ev.Message); err != nil {
				logger.Warn("failed to record report", "run_id", runID, "error", err)
			}
		}
		if err := e.store.SetProgress(runID, ctrl.State()); err != nil {
			logger.Warn("failed to record progress", "run_id", runID, "error", err)
		}
	}
	ctrl, err = annealing.New(cfg)
	if err != nil {
		e.finish(runID, models.RunStatusFailed, fmt.Sprintf("controller setup failed: %v", err), nil)
		return
	}

	in := annealing.Inputs{
		RunID:        runID,
		Structure:    host,
		Molecule:     rec.Input.Molecule,
		MoleculeName: rec.Input.MoleculeName,
		Parameters:   rec.Input.Parameters,
	}
	if rec.Input.ParameterYAML != "" {
		in.ParameterDocument = []byte(rec.Input.ParameterYAML)
	}
	if rec.Input.BlockPocket != "" {
		in.BlockPocket = []byte(rec.Input.BlockPocket)
	}

	logger.Info("starting annealing", "run_id", runID, "molecule", rec.Input.MoleculeName)
	out, err := ctrl.Run(ctx, in)
	if perr := e.store.SetProgress(runID, ctrl.State()); perr != nil {
		logger.Warn("failed to record progress", "run_id", runID, "error", perr)
	}

	switch {
	case ctx.Err() != nil:
		logger.Info("annealing cancelled", "run_id", runID)
		e.finish(runID, models.RunStatusCancelled, "", nil)
	case err != nil:
		e.finish(runID, models.RunStatusFailed, err.Error(), nil)
	default:
		e.finish(runID, models.RunStatusCompleted, "", out)
	}
}

func (e *RunExecutor) finish(runID string, status models.RunStatus, errMsg string, out *annealing.Outputs) {
	changed, err := e.store.Finish(runID, status, errMsg, out)
	if err != nil {
		logger.Error("failed to set final status", "run_id", runID, "status", status, "error", err)
		return
	}
	if changed {
		if errMsg != "" {
			logger.Error("annealing failed", "run_id", runID, "error", errMsg)
		} else {
			logger.Info("run finished", "run_id", runID, "status", status)
		}
	}
	if rec, ok := e.store.Get(runID); ok {
		e.notify(rec)
	}
}

func (e *RunExecutor) notify(rec *RunRecord) {
	if e.notifier == nil || rec.Input == nil {
		return
	}
	e.notifier.Notify(rec.Input.CallbackURL, rec.Input.CallbackSecret, rec)
}
