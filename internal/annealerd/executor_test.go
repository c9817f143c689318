package annealerd

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/annealing-core/internal/annealing"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

func TestExecutorRunsToCompletion(t *testing.T) {
	d := newDaemon(t, false)
	_, err := d.store.Create("run-1", testInput(map[string]any{"temperature_list": []any{300, 100}}))
	require.NoError(t, err)

	rec, err := d.executor.Start("run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, rec.Run.Status)
	assert.NotZero(t, rec.Run.StartedAtUnixMs)

	rec = waitForStatus(t, d.store, "run-1", models.RunStatusCompleted)
	require.NotNil(t, rec.Outputs)
	require.NotNil(t, rec.Outputs.OutputParameters)
	assert.Equal(t, 3, rec.Outputs.OutputParameters.Len())
	assert.Len(t, rec.Outputs.LoadedMolecule.Atoms, 3)
	assert.Len(t, rec.Outputs.LoadedStructure.Atoms, 5)
	assert.Equal(t, []string{"RaspaNVT_1", "RaspaNVT_2", "RaspaMin"}, d.sim.labels())

	assert.Equal(t, []string{
		"Running Raspa NVT (1 of 2)",
		"Running Raspa NVT (2 of 2)",
		"Running Raspa final minimization",
		annealing.CompletionMessage,
	}, rec.Run.Reports)
	require.NotNil(t, rec.Run.Progress)
	assert.Equal(t, annealing.PhaseDone, rec.Run.Progress.Phase)
	assert.Len(t, rec.Run.Progress.Stages, 3)
}

func TestExecutorFailsOnInvalidParameters(t *testing.T) {
	d := newDaemon(t, false)
	_, err := d.store.Create("run-1", testInput(map[string]any{"mc_steps": "abc"}))
	require.NoError(t, err)

	_, err = d.executor.Start("run-1")
	require.NoError(t, err)

	rec := waitForStatus(t, d.store, "run-1", models.RunStatusFailed)
	assert.Contains(t, rec.Run.Error, "mc_steps")
	assert.Nil(t, rec.Outputs)
	assert.Empty(t, d.sim.labels())
}

func TestExecutorStopCancelsPendingStage(t *testing.T) {
	d := newDaemon(t, true)
	_, err := d.store.Create("run-1", testInput(nil))
	require.NoError(t, err)
	_, err = d.executor.Start("run-1")
	require.NoError(t, err)

	waitFor(t, "first stage", func() bool { return len(d.sim.labels()) == 1 })

	rec, err := d.executor.Stop("run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, rec.Run.Status)

	waitFor(t, "stage cancel", func() bool { return d.sim.cancels() == 1 })
	waitFor(t, "controller exit", func() bool {
		rec, _ := d.store.Get("run-1")
		return rec.Run.Progress != nil && rec.Run.Progress.Phase == annealing.PhaseFailed
	})
	rec, _ = d.store.Get("run-1")
	assert.Equal(t, models.RunStatusCancelled, rec.Run.Status)
	assert.Empty(t, rec.Run.Error)
	assert.Equal(t, []string{"RaspaNVT_1"}, d.sim.labels())
}

func TestExecutorStartErrors(t *testing.T) {
	d := newDaemon(t, false)

	_, err := d.executor.Start("")
	assert.ErrorIs(t, err, ErrRunIDMissing)

	_, err = d.executor.Start("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = d.store.Create("run-1", testInput(nil))
	require.NoError(t, err)
	_, err = d.executor.Stop("run-1")
	require.NoError(t, err)

	_, err = d.executor.Start("run-1")
	assert.ErrorIs(t, err, ErrRunTerminal)
	_, err = d.executor.Stop("run-1")
	assert.ErrorIs(t, err, ErrRunTerminal)
}

func TestExecutorStartIsIdempotentWhileRunning(t *testing.T) {
	d := newDaemon(t, true)
	_, err := d.store.Create("run-1", testInput(nil))
	require.NoError(t, err)
	_, err = d.executor.Start("run-1")
	require.NoError(t, err)
	waitFor(t, "first stage", func() bool { return len(d.sim.labels()) == 1 })

	rec, err := d.executor.Start("run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, rec.Run.Status)
	assert.Len(t, d.sim.labels(), 1)
}

func TestExecutorConcurrentStartLaunchesOnce(t *testing.T) {
	d := newDaemon(t, true)
	_, err := d.store.Create("run-1", testInput(nil))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := d.executor.Start("run-1")
			if assert.NoError(t, err) {
				assert.Equal(t, models.RunStatusRunning, rec.Run.Status)
			}
		}()
	}
	wg.Wait()

	waitFor(t, "first stage", func() bool { return len(d.sim.labels()) >= 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, d.sim.labels(), 1)
	assert.Zero(t, d.sim.cancels())
}
