package annealerd

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/annealing-core/internal/annealing"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

// RunInput is what a client submits to create a run. The framework travels as CIF
// text; parameters either as a mapping or as a YAML/JSON document.
type RunInput struct {
	StructureCIF   string               `json:"structure_cif"`
	MoleculeName   string               `json:"molecule_name,omitempty"`
	Molecule       *models.MoleculeSpec `json:"molecule,omitempty"`
	Parameters     map[string]any       `json:"parameters,omitempty"`
	ParameterYAML  string               `json:"parameters_yaml,omitempty"`
	BlockPocket    string               `json:"block_pocket,omitempty"`
	CallbackURL    string               `json:"callback_url,omitempty"`
	CallbackSecret string               `json:"-"`
}

// Run is the client-visible state of a run
type Run struct {
	ID              string              `json:"id"`
	Status          models.RunStatus    `json:"status"`
	CreatedAtUnixMs int64               `json:"created_at_unix_ms"`
	StartedAtUnixMs int64               `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64               `json:"ended_at_unix_ms,omitempty"`
	Error           string              `json:"error,omitempty"`
	Progress        *annealing.Progress `json:"progress,omitempty"`
	Reports         []string            `json:"reports,omitempty"`
}

// RunRecord is a run with its input and, once completed, its outputs
type RunRecord struct {
	Run     Run
	Input   *RunInput
	Outputs *annealing.Outputs
}

func (r *RunRecord) clone() *RunRecord {
	out := &RunRecord{Run: r.Run, Input: r.Input, Outputs: r.Outputs}
	out.Run.Reports = append([]string(nil), r.Run.Reports...)
	if r.Run.Progress != nil {
		p := *r.Run.Progress
		p.Stages = append([]annealing.StageRecord(nil), p.Stages...)
		out.Run.Progress = &p
	}
	return out
}

// RunStore keeps runs in memory. Every accessor returns a copy.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func nowUnixMs() int64 {
	return utils.UnixMs(time.Now())
}

func (s *RunStore) Create(runID string, input *RunInput) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if err := utils.ValidateRunID(runID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &RunRecord{
		Run: Run{
			ID:              runID,
			Status:          models.RunStatusPending,
			CreatedAtUnixMs: nowUnixMs(),
		},
		Input: input,
	}
	s.runs[runID] = rec
	return rec.clone(), nil
}

func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// List returns runs newest first, skipping offset and keeping at most limit.
// An empty status matches every run.
func (s *RunStore) List(limit, offset int, status models.RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	all := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != "" && rec.Run.Status != status {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Run.CreatedAtUnixMs != all[j].Run.CreatedAtUnixMs {
			return all[i].Run.CreatedAtUnixMs > all[j].Run.CreatedAtUnixMs
		}
		return all[i].Run.ID < all[j].Run.ID
	})
	if offset >= len(all) {
		return []*RunRecord{}
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]*RunRecord, 0, len(all))
	for _, rec := range all {
		out = append(out, rec.clone())
	}
	return out
}

func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rec.Run.Status = status
	if errMsg != "" {
		rec.Run.Error = errMsg
	}

	switch status {
	case models.RunStatusRunning:
		if rec.Run.StartedAtUnixMs == 0 {
			rec.Run.StartedAtUnixMs = nowUnixMs()
		}
	case models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
		rec.Run.EndedAtUnixMs = nowUnixMs()
	}

	return rec.clone(), nil
}

// MarkRunning moves a pending run to running and reports whether it did. A run that
// is already running is returned unchanged; a terminal run gives ErrRunTerminal.
func (s *RunStore) MarkRunning(runID string) (*RunRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	switch {
	case rec.Run.Status == models.RunStatusRunning:
		return rec.clone(), false, nil
	case rec.Run.Status.IsTerminal():
		return nil, false, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	rec.Run.Status = models.RunStatusRunning
	if rec.Run.StartedAtUnixMs == 0 {
		rec.Run.StartedAtUnixMs = nowUnixMs()
	}
	return rec.clone(), true, nil
}

// Finish moves a running run to a terminal status. A run that is already terminal
// (stopped by a client, for instance) keeps its status and Finish reports false.
func (s *RunStore) Finish(runID string, status models.RunStatus, errMsg string, outputs *annealing.Outputs) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.IsTerminal() {
		return false, nil
	}
	rec.Run.Status = status
	rec.Run.Error = errMsg
	rec.Run.EndedAtUnixMs = nowUnixMs()
	rec.Outputs = outputs
	return true, nil
}

func (s *RunStore) SetProgress(runID string, progress annealing.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.Run.Progress = &progress
	return nil
}

func (s *RunStore) AppendReport(runID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.Run.Reports = append(rec.Run.Reports, message)
	return nil
}
