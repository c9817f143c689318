package annealerd

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/annealing-core/internal/annealing"
	"github.com/GoSim-25-26J-441/annealing-core/internal/artifact"
	"github.com/GoSim-25-26J-441/annealing-core/internal/assemble"
	"github.com/GoSim-25-26J-441/annealing-core/internal/metrics"
	"github.com/GoSim-25-26J-441/annealing-core/internal/stage"
	"github.com/GoSim-25-26J-441/annealing-core/internal/task"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

const boxCIF = `data_box
_cell_length_a 25
_cell_length_b 25
_cell_length_c 25
_cell_angle_alpha 90
_cell_angle_beta 90
_cell_angle_gamma 90
loop_
_atom_site_label
_atom_site_type_symbol
_atom_site_fract_x
_atom_site_fract_y
_atom_site_fract_z
Cu1 Cu 0.1 0.1 0.1
Cu2 Cu 0.5 0.5 0.5
`

// simulator resolves stages through the artifact store. With hold set, every Wait
// blocks until the stage is cancelled.
type simulator struct {
	store *artifact.MemoryStore
	hold  bool

	mu        sync.Mutex
	submitted []string
	cancelled int
}

func (s *simulator) Submit(ctx context.Context, in task.Input) (task.Handle, error) {
	s.mu.Lock()
	s.submitted = append(s.submitted, in.Label)
	n := len(s.submitted)
	s.mu.Unlock()

	if s.hold {
		return &heldHandle{sim: s, done: make(chan struct{})}, nil
	}

	ref := utils.GenerateArtifactRef(in.RunID, in.Label)
	restart := "Adsorbate-atom-position: 0 0 5.0 5.0 6.16\n" +
		"Adsorbate-atom-position: 0 1 5.0 5.0 5.0\n" +
		"Adsorbate-atom-position: 0 2 5.0 5.0 3.84\n"
	if err := s.store.Put(ctx, ref, path.Join(task.RestartDir, "restart"), []byte(restart)); err != nil {
		return nil, err
	}
	general := map[string]any{}
	for _, key := range models.EnergyKeys {
		general[key] = -float64(n)
	}
	return &task.Resolved{Result: &task.Result{
		Label:            in.Label,
		ArtifactRef:      ref,
		OutputParameters: map[string]any{stage.FrameworkSystem: map[string]any{assemble.OutputSection: general}},
	}}, nil
}

func (s *simulator) labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.submitted...)
}

func (s *simulator) cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

type heldHandle struct {
	sim  *simulator
	done chan struct{}
	once sync.Once
}

func (h *heldHandle) ID() string { return "held" }

func (h *heldHandle) Wait(ctx context.Context) (*task.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, task.ErrTaskCancelled
	}
}

func (h *heldHandle) Cancel(context.Context) error {
	h.once.Do(func() {
		h.sim.mu.Lock()
		h.sim.cancelled++
		h.sim.mu.Unlock()
		close(h.done)
	})
	return nil
}

type daemon struct {
	store    *RunStore
	executor *RunExecutor
	notifier *Notifier
	sim      *simulator
	metrics  *metrics.Metrics
}

func newDaemon(t *testing.T, hold bool) *daemon {
	t.Helper()
	sim := &simulator{store: artifact.NewMemoryStore(), hold: hold}
	m := metrics.New(false)
	store := NewRunStore()
	notifier := NewNotifier(NotifierConfig{AllowInternal: true, MaxRetries: -1})
	executor := NewRunExecutor(store, annealing.Config{
		Submitter: sim,
		Store:     sim.store,
		Metrics:   m,
	}, notifier)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := executor.Shutdown(ctx); err != nil {
			t.Errorf("executor shutdown: %v", err)
		}
		notifier.Wait()
	})
	return &daemon{store: store, executor: executor, notifier: notifier, sim: sim, metrics: m}
}

func testInput(params map[string]any) *RunInput {
	return &RunInput{StructureCIF: boxCIF, MoleculeName: "co2", Parameters: params}
}

// waitForStatus polls the store until the run reaches want
func waitForStatus(t *testing.T, store *RunStore, runID string, want models.RunStatus) *RunRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, ok := store.Get(runID)
		if ok && rec.Run.Status == want {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	rec, _ := store.Get(runID)
	t.Fatalf("run %s did not reach %s, last state %+v", runID, want, rec)
	return nil
}

// waitFor polls cond until it holds
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
