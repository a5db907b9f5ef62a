package removal

import (
	"context"
	"fmt"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
)

// Remover performs the actual removal side effect for a single plan item:
// stopping containers, purging packages, deleting directories, restoring
// configuration. Supplied by a collaborator.
type Remover interface {
	Remove(ctx context.Context, item PlanItem) error
}

// Executor walks a removal plan and invokes the remover for each item. Teardown
// is best-effort: a failing node is logged as a warning and recorded in the
// summary, never aborting the remaining plan, because a partial teardown beats
// an unrecoverable stuck state.
type Executor struct {
	opts    *options.PiSetupOptions
	remover Remover
}

// NewExecutor returns an executor that delegates side effects to the given remover.
func NewExecutor(opts *options.PiSetupOptions, remover Remover) *Executor {
	return &Executor{opts: opts, remover: remover}
}

// Summary aggregates the results of one execution cycle.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
	Errors    *errors.MultiError
}

// Execute runs the plan and then deletes the removal document unconditionally,
// success or partial failure alike, forcing fresh detection on the next
// invocation. The returned error is only non-nil when the cycle itself could
// not finish (e.g. the document could not be deleted); per-node failures are
// reported through the summary.
func (executor *Executor) Execute(ctx context.Context, plan []PlanItem) (*Summary, error) {
	summary := &Summary{}

	for _, item := range plan {
		summary.Attempted++

		executor.opts.Logger.Infof("Removing %s", item.ID())

		if err := executor.remover.Remove(ctx, item); err != nil {
			summary.Failed++
			summary.Errors = summary.Errors.Append(NodeRemovalError{ID: item.ID(), Err: err})

			executor.opts.Logger.WithError(err).Warnf("Failed to remove %s; continuing with the remaining plan", item.ID())

			continue
		}

		summary.Succeeded++
	}

	if err := Delete(executor.opts.RemovalConfigPath); err != nil {
		return summary, err
	}

	if summary.Failed > 0 {
		executor.opts.Logger.Warnf("Removal finished with %d of %d nodes failed", summary.Failed, summary.Attempted)
	} else if summary.Attempted > 0 {
		executor.opts.Logger.Infof("Removal finished: %d nodes removed", summary.Succeeded)
	}

	return summary, nil
}

// NodeRemovalError records the failure of a single plan item.
type NodeRemovalError struct {
	ID  string
	Err error
}

func (err NodeRemovalError) Error() string {
	return fmt.Sprintf("%s: %v", err.ID, err.Err)
}

func (err NodeRemovalError) Unwrap() error {
	return err.Err
}
