// Package install implements the install command: run or resume the
// installation pipeline from the first incomplete step.
package install

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/detect"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/install"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/provision"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/state"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

const CommandName = "install"

// NewCommand returns the install command.
func NewCommand(opts *options.PiSetupOptions) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Run or resume the installation pipeline",
		Action: func(ctx *cli.Context) error {
			return Run(ctx.Context, opts)
		},
	}
}

// Run executes the pipeline. Completed steps are skipped, the first incomplete
// one runs next, so rerunning after any failure, crash, or reboot continues
// where the previous invocation stopped.
func Run(ctx context.Context, opts *options.PiSetupOptions) error {
	if err := provision.CheckPrivilege(); err != nil {
		return err
	}

	if err := util.EnsureDirectory(opts.DataDir); err != nil {
		return err
	}

	lock := util.NewLockfile(opts.LockFilePath())
	if err := lock.TryAcquire(); err != nil {
		return err
	}
	defer lock.Release()

	store, err := state.Open(opts.StateFilePath)
	if err != nil {
		return err
	}

	registry, err := install.NewRegistry(provision.Steps(detect.NewSystemDetector(opts)))
	if err != nil {
		return err
	}

	orchestrator := install.NewOrchestrator(opts, registry, store)

	_, err = orchestrator.Run(ctx)

	return err
}
