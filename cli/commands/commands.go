// Package commands assembles the CLI command set.
package commands

import (
	"github.com/urfave/cli/v2"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/cli/commands/install"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/cli/commands/remove"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/cli/commands/reset"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/cli/commands/status"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
)

// New returns every command of the program.
func New(opts *options.PiSetupOptions) []*cli.Command {
	return []*cli.Command{
		install.NewCommand(opts),
		status.NewCommand(opts),
		reset.NewCommand(opts),
		remove.NewCommand(opts),
	}
}
