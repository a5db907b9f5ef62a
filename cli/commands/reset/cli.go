// Package reset implements the reset command: delete the state record so the
// next install run starts from scratch.
package reset

import (
	"github.com/urfave/cli/v2"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/provision"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/shell"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/state"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

const CommandName = "reset"

// NewCommand returns the reset command.
func NewCommand(opts *options.PiSetupOptions) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Forget all installation progress and start over from the beginning",
		Action: func(ctx *cli.Context) error {
			return Run(opts)
		},
	}
}

// Run deletes the state file after confirmation. The recorded facts go with it,
// so a later removal run loses the pre-install history they carry. Confirmation
// is required unless running non-interactively.
func Run(opts *options.PiSetupOptions) error {
	if err := provision.CheckPrivilege(); err != nil {
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

	if store.Current() == state.TokenStart && len(store.Facts()) == 0 {
		opts.Logger.Infof("No installation state recorded; nothing to reset")
		return nil
	}

	confirmed, err := shell.PromptUserForYesNo("Discard all installation progress and recorded facts?", opts)
	if err != nil {
		return err
	}

	if !confirmed {
		opts.Logger.Infof("Reset aborted")
		return nil
	}

	if err := store.Reset(); err != nil {
		return err
	}

	opts.Logger.Infof("Installation state deleted; the next install run starts from %s", state.TokenStart)

	return nil
}
