package install

import (
	"context"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/state"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
)

// Outcome is the result of a pipeline run that did not fail.
type Outcome int

const (
	// OutcomeNone means the run failed before reaching a terminal state.
	OutcomeNone Outcome = iota

	// OutcomeComplete means every step has completed.
	OutcomeComplete

	// OutcomeRebootRequired means the run stopped deliberately so the host can
	// restart; rerunning after the restart resumes past the barrier.
	OutcomeRebootRequired
)

// StepStatus is the per-step result recorded during a single run.
type StepStatus string

const (
	StatusSkipped StepStatus = "skipped"
	StatusDone    StepStatus = "done"
	StatusFailed  StepStatus = "failed"
)

// Orchestrator owns one run of the installation pipeline: the registry, the
// state store, and a per-run status map. Construct a fresh one per invocation.
type Orchestrator struct {
	opts     *options.PiSetupOptions
	registry *Registry
	store    *state.Store
	status   map[string]StepStatus
}

// NewOrchestrator returns an orchestrator for the given registry and store.
func NewOrchestrator(opts *options.PiSetupOptions, registry *Registry, store *state.Store) *Orchestrator {
	return &Orchestrator{
		opts:     opts,
		registry: registry,
		store:    store,
		status:   map[string]StepStatus{},
	}
}

// IsComplete reports whether the given step already completed, which is a single
// ordinal comparison against the persisted pointer. This comparison is what
// makes re-entry idempotent: after any crash, every persisted step resolves as
// complete and execution resumes at the first one that does not.
func (orchestrator *Orchestrator) IsComplete(stepName string) bool {
	ordinal, ok := orchestrator.registry.Resolve(state.Token(stepName))
	if !ok {
		return false
	}

	return orchestrator.currentOrdinal() >= ordinal
}

// Run executes every incomplete step in ordinal order. On a step failure the run
// aborts immediately without advancing the pointer, so the same invocation,
// rerun, retries exactly the failed step. A reboot-flagged step that reports a
// needed restart persists the reboot marker and ends the run cleanly.
func (orchestrator *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	current := orchestrator.currentOrdinal()

	for i, step := range orchestrator.registry.Steps() {
		if step.Ordinal <= current {
			orchestrator.status[step.Name] = StatusSkipped
			orchestrator.opts.Logger.Debugf("Skipping step %d/%d %s: already complete", step.Ordinal, orchestrator.registry.Len(), step.Name)

			continue
		}

		if step.Action != nil {
			orchestrator.opts.Logger.Infof("Step %d/%d: %s", step.Ordinal, orchestrator.registry.Len(), step.Description)

			if err := step.Action(ctx, orchestrator.opts, orchestrator.store); err != nil {
				orchestrator.status[step.Name] = StatusFailed

				return OutcomeNone, errors.New(StepFailedError{Step: step.Name, Err: err})
			}
		}

		if err := orchestrator.store.Advance(state.Token(step.Name)); err != nil {
			orchestrator.status[step.Name] = StatusFailed

			return OutcomeNone, err
		}

		orchestrator.status[step.Name] = StatusDone

		if step.RebootCheck != nil {
			needed, err := step.RebootCheck(orchestrator.store)
			if err != nil {
				return OutcomeNone, errors.New(StepFailedError{Step: step.Name, Err: err})
			}

			if needed {
				// Registry validation guarantees the next step is the barrier.
				barrier := orchestrator.registry.Steps()[i+1]

				if err := orchestrator.store.Advance(state.Token(barrier.Name)); err != nil {
					return OutcomeNone, err
				}

				orchestrator.status[barrier.Name] = StatusDone
				orchestrator.opts.Logger.Warnf("A system restart is required before installation can continue. Reboot the host and rerun the same command to resume.")

				return OutcomeRebootRequired, nil
			}
		}
	}

	if err := orchestrator.store.Advance(state.TokenComplete); err != nil {
		return OutcomeNone, err
	}

	orchestrator.opts.Logger.Infof("Installation complete.")

	return OutcomeComplete, nil
}

// Status reports the persisted pointer, the completion of every registered step,
// and the recorded facts.
func (orchestrator *Orchestrator) Status() Report {
	report := Report{
		Current: orchestrator.store.Current(),
		Facts:   orchestrator.store.Facts(),
	}

	current := orchestrator.currentOrdinal()

	for _, step := range orchestrator.registry.Steps() {
		report.Steps = append(report.Steps, StepReport{
			Ordinal:     step.Ordinal,
			Name:        step.Name,
			Description: step.Description,
			Complete:    step.Ordinal <= current,
		})
	}

	return report
}

// StepResult returns the status recorded for the given step during this run.
func (orchestrator *Orchestrator) StepResult(stepName string) (StepStatus, bool) {
	status, ok := orchestrator.status[stepName]
	return status, ok
}

func (orchestrator *Orchestrator) currentOrdinal() int {
	token := orchestrator.store.Current()

	ordinal, ok := orchestrator.registry.Resolve(token)
	if !ok {
		orchestrator.opts.Logger.Warnf("State file contains unrecognized token %q; treating it as %s", token, state.TokenStart)

		return 0
	}

	return ordinal
}

// Report is the outcome of a status query.
type Report struct {
	Current state.Token
	Steps   []StepReport
	Facts   []state.Fact
}

// StepReport is the status of a single step within a Report.
type StepReport struct {
	Ordinal     int
	Name        string
	Description string
	Complete    bool
}
