// Package install drives the resumable installation pipeline: a totally ordered
// list of named steps, a persisted pointer to the last completed one, and an
// orchestrator that skips finished work and resumes at the first incomplete
// step after any crash or reboot.
package install

import (
	"context"
	"fmt"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/state"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
)

// Canonical step names for the Pi appliance pipeline. The ordering lives in the
// registry, not in these constants.
const (
	StepSystemUpdate     = "system_update"
	StepInstallPackages  = "install_packages"
	StepConfigureSystem  = "configure_system"
	StepRebootBarrier    = string(state.TokenRebootRequired)
	StepInstallDocker    = "install_docker"
	StepCloneSetupRepo   = "clone_setup_repo"
	StepDeployPihole     = "deploy_pihole"
	StepDeployMonitoring = "deploy_monitoring"
	StepVerifyInstall    = "verify_install"
)

// Action is the side-effecting body of a step, supplied by a collaborator. The
// orchestrator enforces ordering and persistence; the action itself must be safe
// to re-run after partial completion.
type Action func(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error

// RebootCheck reports whether the host must restart before later steps can run.
// Evaluated after the owning step's completion has been persisted.
type RebootCheck func(store *state.Store) (bool, error)

// Step is a single named, ordered unit of installation work.
type Step struct {
	// Ordinal is the step's position in the pipeline. Ordinals are unique and
	// dense, starting at 1; 0 is reserved for the START sentinel.
	Ordinal int

	// Name is the token persisted to the state file when the step completes.
	Name string

	// Description is shown to the operator in progress and status output.
	Description string

	// Action performs the step's work. Nil for barrier steps, which exist only
	// as resume points in the ordinal sequence.
	Action Action

	// RebootCheck, when set, is evaluated after the step completes. The step
	// immediately following a step with a RebootCheck must be a Barrier.
	RebootCheck RebootCheck

	// Barrier marks a reboot barrier: a no-op step whose completion means "the
	// OS restart happened (or was never needed)".
	Barrier bool
}

// Registry is the fixed, totally ordered list of installation steps. It also
// resolves persisted tokens to ordinals: START maps below every step, COMPLETE
// above every step.
type Registry struct {
	steps    []Step
	ordinals map[state.Token]int
}

// NewRegistry validates and indexes the given steps. Ordinals must be dense from
// 1, names unique, and every step carrying a RebootCheck must be immediately
// followed by a barrier step, otherwise persisting the reboot marker would skip
// real work.
func NewRegistry(steps []Step) (*Registry, error) {
	if len(steps) == 0 {
		return nil, errors.Errorf("step registry cannot be empty")
	}

	ordinals := map[state.Token]int{
		state.TokenStart:    0,
		state.TokenComplete: len(steps) + 1,
	}

	for i, step := range steps {
		if step.Ordinal != i+1 {
			return nil, errors.Errorf("step %q has ordinal %d, want %d: ordinals must be dense from 1", step.Name, step.Ordinal, i+1)
		}

		if step.Name == "" || step.Name == string(state.TokenStart) || step.Name == string(state.TokenComplete) {
			return nil, errors.Errorf("step %d has invalid name %q", step.Ordinal, step.Name)
		}

		if _, exists := ordinals[state.Token(step.Name)]; exists {
			return nil, errors.Errorf("duplicate step name %q", step.Name)
		}

		if step.Barrier && step.Action != nil {
			return nil, errors.Errorf("barrier step %q cannot have an action", step.Name)
		}

		if step.RebootCheck != nil {
			if i+1 >= len(steps) || !steps[i+1].Barrier {
				return nil, errors.Errorf("step %q can request a restart but is not followed by a reboot barrier", step.Name)
			}
		}

		ordinals[state.Token(step.Name)] = step.Ordinal
	}

	return &Registry{steps: steps, ordinals: ordinals}, nil
}

// Steps returns the steps in ordinal order.
func (registry *Registry) Steps() []Step {
	return registry.steps
}

// Len returns the number of registered steps.
func (registry *Registry) Len() int {
	return len(registry.steps)
}

// Resolve maps a persisted token to its ordinal. Unknown tokens resolve to
// false; callers treat them as START per the state file contract.
func (registry *Registry) Resolve(token state.Token) (int, bool) {
	ordinal, ok := registry.ordinals[token]
	return ordinal, ok
}

// StepFailedError is returned when a step's action could not complete. The
// pointer is not advanced, so rerunning the pipeline retries exactly this step.
type StepFailedError struct {
	Step string
	Err  error
}

func (err StepFailedError) Error() string {
	return fmt.Sprintf("step %s failed: %v", err.Step, err.Err)
}

func (err StepFailedError) Unwrap() error {
	return err.Err
}
