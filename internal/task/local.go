package task

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/annealing-core/internal/artifact"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

// LocalConfig configures a LocalRunner
type LocalConfig struct {
	// Executable is the simulator binary, run with Args in the stage work directory
	Executable string
	Args       []string
	Env        []string
	// WorkDir holds one directory per stage
	WorkDir     string
	KeepWorkDir bool
	Store       artifact.Store
}

// LocalRunner runs the simulator as a child process. It uploads the Restart and
// Output directories of every stage to the artifact store and does not parse energies.
type LocalRunner struct {
	cfg LocalConfig
}

// NewLocalRunner validates cfg
func NewLocalRunner(cfg LocalConfig) (*LocalRunner, error) {
	if strings.TrimSpace(cfg.Executable) == "" {
		return nil, fmt.Errorf("simulator executable is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &LocalRunner{cfg: cfg}, nil
}

// Submit stages the work directory and starts the simulator. It returns once the
// process has started.
func (r *LocalRunner) Submit(ctx context.Context, in Input) (Handle, error) {
	files, err := InputFiles(in)
	if err != nil {
		return nil, err
	}
	if in.Parent != "" {
		restart, err := ParentRestartFiles(ctx, r.cfg.Store, in.Parent)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", in.Label, err)
		}
		for name, data := range restart {
			files[name] = data
		}
	}

	ref := utils.GenerateArtifactRef(in.RunID, in.Label)
	dir := filepath.Join(r.cfg.WorkDir, filepath.FromSlash(ref))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stage %s: create work directory: %w", in.Label, err)
	}
	if err := writeFiles(dir, files); err != nil {
		return nil, fmt.Errorf("stage %s: stage input files: %w", in.Label, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, r.cfg.Executable, r.cfg.Args...)
	cmd.Dir = dir
	cmd.WaitDelay = 10 * time.Second
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), r.cfg.Env...)
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("stage %s: start simulator: %w", in.Label, err)
	}

	h := &localHandle{ref: ref, cancel: cancel, done: make(chan struct{})}
	log := logger.With("run_id", in.RunID, "label", in.Label, "artifact", ref)
	log.Info("simulator started", "pid", cmd.Process.Pid, "dir", dir)

	go func() {
		defer close(h.done)
		defer cancel()
		err := cmd.Wait()
		_ = os.WriteFile(filepath.Join(dir, "simulator.log"), output.Bytes(), 0o644)

		switch {
		case h.isCancelled():
			h.err = ErrTaskCancelled
		case err != nil:
			h.err = fmt.Errorf("%w: %s: %v: %s", ErrTaskFailed, in.Label, err, tail(output.String(), 5))
		default:
			h.result, h.err = r.collect(in.Label, ref, dir)
		}
		if h.err != nil {
			log.Warn("stage did not complete", "error", h.err)
		} else {
			log.Info("stage completed")
		}
		if !r.cfg.KeepWorkDir {
			_ = os.RemoveAll(dir)
		}
	}()
	return h, nil
}

func (r *LocalRunner) collect(label, ref, dir string) (*Result, error) {
	ctx := context.Background()
	restart := filepath.Join(dir, "Restart")
	if _, err := os.Stat(restart); err != nil {
		return nil, fmt.Errorf("%w: %s: simulator produced no Restart directory", ErrTaskFailed, label)
	}
	if _, err := artifact.PutDir(ctx, r.cfg.Store, ref, restart, "Restart"); err != nil {
		return nil, fmt.Errorf("stage %s: upload restart files: %w", label, err)
	}
	output := filepath.Join(dir, "Output")
	if _, err := os.Stat(output); err == nil {
		if _, err := artifact.PutDir(ctx, r.cfg.Store, ref, output, "Output"); err != nil {
			return nil, fmt.Errorf("stage %s: upload output files: %w", label, err)
		}
	}
	return &Result{Label: label, ArtifactRef: ref}, nil
}

type localHandle struct {
	ref    string
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool

	result *Result
	err    error
}

func (h *localHandle) ID() string { return h.ref }

func (h *localHandle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *localHandle) Cancel(ctx context.Context) error {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	h.cancel()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *localHandle) isCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
