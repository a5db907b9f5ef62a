package install_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/install"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/state"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/pkg/log"
)

func testOpts(t *testing.T) *options.PiSetupOptions {
	t.Helper()

	opts := &options.PiSetupOptions{
		Logger:    log.New(io.Discard),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
	}
	opts.SetDataDir(t.TempDir())

	return opts
}

func testStore(t *testing.T) *state.Store {
	t.Helper()

	store, err := state.Open(filepath.Join(t.TempDir(), "install-state"))
	require.NoError(t, err)

	return store
}

// recordingStep builds a step whose action appends the step name to calls.
func recordingStep(ordinal int, name string, calls *[]string) install.Step {
	return install.Step{
		Ordinal:     ordinal,
		Name:        name,
		Description: name,
		Action: func(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
			*calls = append(*calls, name)
			return nil
		},
	}
}

func fourStepRegistry(t *testing.T, calls *[]string) *install.Registry {
	t.Helper()

	registry, err := install.NewRegistry([]install.Step{
		recordingStep(1, "a", calls),
		recordingStep(2, "b", calls),
		recordingStep(3, "c", calls),
		recordingStep(4, "d", calls),
	})
	require.NoError(t, err)

	return registry
}

func TestRunExecutesAllStepsInOrder(t *testing.T) {
	t.Parallel()

	var calls []string

	store := testStore(t)
	orchestrator := install.NewOrchestrator(testOpts(t), fourStepRegistry(t, &calls), store)

	outcome, err := orchestrator.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, install.OutcomeComplete, outcome)
	assert.Equal(t, []string{"a", "b", "c", "d"}, calls)
	assert.Equal(t, state.TokenComplete, store.Current())
}

func TestRunResumesAtFirstIncompleteStep(t *testing.T) {
	t.Parallel()

	var calls []string

	store := testStore(t)
	require.NoError(t, store.Advance(state.Token("b")))

	orchestrator := install.NewOrchestrator(testOpts(t), fourStepRegistry(t, &calls), store)

	outcome, err := orchestrator.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, install.OutcomeComplete, outcome)
	assert.Equal(t, []string{"c", "d"}, calls)

	status, ok := orchestrator.StepResult("a")
	require.True(t, ok)
	assert.Equal(t, install.StatusSkipped, status)
}

func TestIsCompleteIsMonotonicInOrdinals(t *testing.T) {
	t.Parallel()

	var calls []string

	store := testStore(t)
	orchestrator := install.NewOrchestrator(testOpts(t), fourStepRegistry(t, &calls), store)

	// Empty store: nothing is complete.
	assert.False(t, orchestrator.IsComplete("b"))

	require.NoError(t, store.Advance(state.Token("b")))

	assert.True(t, orchestrator.IsComplete("a"))
	assert.True(t, orchestrator.IsComplete("b"))
	assert.False(t, orchestrator.IsComplete("c"))
	assert.False(t, orchestrator.IsComplete("d"))
}

func TestStepFailureAbortsWithoutAdvancing(t *testing.T) {
	t.Parallel()

	var calls []string

	boom := errors.Errorf("disk full")
	fail := true

	steps := []install.Step{
		recordingStep(1, "a", &calls),
		recordingStep(2, "b", &calls),
		{
			Ordinal: 3,
			Name:    "c",
			Action: func(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
				if fail {
					return boom
				}

				calls = append(calls, "c")

				return nil
			},
		},
		recordingStep(4, "d", &calls),
	}

	registry, err := install.NewRegistry(steps)
	require.NoError(t, err)

	store := testStore(t)
	orchestrator := install.NewOrchestrator(testOpts(t), registry, store)

	_, err = orchestrator.Run(context.Background())
	require.Error(t, err)

	var stepErr install.StepFailedError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "c", stepErr.Step)

	// Pointer stayed at the last success, so a rerun retries exactly step c.
	assert.Equal(t, state.Token("b"), store.Current())
	assert.Equal(t, []string{"a", "b"}, calls)

	fail = false
	calls = nil

	rerun := install.NewOrchestrator(testOpts(t), registry, store)

	outcome, err := rerun.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, install.OutcomeComplete, outcome)
	assert.Equal(t, []string{"c", "d"}, calls)
	assert.Equal(t, state.TokenComplete, store.Current())
}

func TestResetMakesEverythingIncomplete(t *testing.T) {
	t.Parallel()

	var calls []string

	store := testStore(t)
	registry := fourStepRegistry(t, &calls)
	orchestrator := install.NewOrchestrator(testOpts(t), registry, store)

	_, err := orchestrator.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Reset())

	fresh := install.NewOrchestrator(testOpts(t), registry, store)

	for _, name := range []string{"a", "b", "c", "d"} {
		assert.False(t, fresh.IsComplete(name), "step %s should be incomplete after reset", name)
	}
}

func TestRebootHandoffPersistsMarkerAndResumes(t *testing.T) {
	t.Parallel()

	var calls []string

	needReboot := true

	steps := []install.Step{
		recordingStep(1, "a", &calls),
		{
			Ordinal:     2,
			Name:        "configure",
			Description: "configure",
			Action: func(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
				calls = append(calls, "configure")
				return nil
			},
			RebootCheck: func(store *state.Store) (bool, error) {
				return needReboot, nil
			},
		},
		{Ordinal: 3, Name: "REBOOT_REQUIRED", Barrier: true},
		recordingStep(4, "d", &calls),
	}

	registry, err := install.NewRegistry(steps)
	require.NoError(t, err)

	store := testStore(t)
	orchestrator := install.NewOrchestrator(testOpts(t), registry, store)

	outcome, err := orchestrator.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, install.OutcomeRebootRequired, outcome)
	assert.Equal(t, state.TokenRebootRequired, store.Current())
	assert.Equal(t, []string{"a", "configure"}, calls)

	// Relaunch after the restart: the marker resolves as complete and only the
	// remaining steps run.
	calls = nil
	relaunch := install.NewOrchestrator(testOpts(t), registry, store)

	outcome, err = relaunch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, install.OutcomeComplete, outcome)
	assert.Equal(t, []string{"d"}, calls)
	assert.Equal(t, state.TokenComplete, store.Current())
}

func TestRebootPredicateFalsePositiveIsHarmless(t *testing.T) {
	t.Parallel()

	var calls []string

	steps := []install.Step{
		{
			Ordinal:     1,
			Name:        "configure",
			Description: "configure",
			Action: func(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
				calls = append(calls, "configure")
				return nil
			},
			RebootCheck: func(store *state.Store) (bool, error) {
				return false, nil
			},
		},
		{Ordinal: 2, Name: "REBOOT_REQUIRED", Barrier: true},
		recordingStep(3, "d", &calls),
	}

	registry, err := install.NewRegistry(steps)
	require.NoError(t, err)

	store := testStore(t)
	orchestrator := install.NewOrchestrator(testOpts(t), registry, store)

	outcome, err := orchestrator.Run(context.Background())
	require.NoError(t, err)

	// The barrier is just a no-op step when no restart was requested.
	assert.Equal(t, install.OutcomeComplete, outcome)
	assert.Equal(t, []string{"configure", "d"}, calls)
	assert.Equal(t, state.TokenComplete, store.Current())
}

func TestUnrecognizedTokenIsTreatedAsStart(t *testing.T) {
	t.Parallel()

	var calls []string

	store := testStore(t)
	require.NoError(t, store.Advance(state.Token("no_such_step")))

	orchestrator := install.NewOrchestrator(testOpts(t), fourStepRegistry(t, &calls), store)

	outcome, err := orchestrator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, install.OutcomeComplete, outcome)
	assert.Equal(t, []string{"a", "b", "c", "d"}, calls)
}

func TestRerunAfterCompletionIsANoOp(t *testing.T) {
	t.Parallel()

	var calls []string

	store := testStore(t)
	registry := fourStepRegistry(t, &calls)

	_, err := install.NewOrchestrator(testOpts(t), registry, store).Run(context.Background())
	require.NoError(t, err)

	calls = nil

	outcome, err := install.NewOrchestrator(testOpts(t), registry, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, install.OutcomeComplete, outcome)
	assert.Empty(t, calls)
}

func TestStatusReportsPointerStepsAndFacts(t *testing.T) {
	t.Parallel()

	var calls []string

	store := testStore(t)
	require.NoError(t, store.Advance(state.Token("b")))
	require.NoError(t, store.SetFact("PRIOR_HOSTNAME", "raspberrypi"))

	orchestrator := install.NewOrchestrator(testOpts(t), fourStepRegistry(t, &calls), store)

	report := orchestrator.Status()

	assert.Equal(t, state.Token("b"), report.Current)
	require.Len(t, report.Steps, 4)
	assert.True(t, report.Steps[0].Complete)
	assert.True(t, report.Steps[1].Complete)
	assert.False(t, report.Steps[2].Complete)
	assert.False(t, report.Steps[3].Complete)
	require.Len(t, report.Facts, 1)
	assert.Equal(t, "PRIOR_HOSTNAME", report.Facts[0].Key)
}
