// Package status implements the status command: report the persisted step
// pointer, per-step completion, and the recorded facts.
package status

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/detect"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/install"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/provision"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/state"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
)

const CommandName = "status"

// NewCommand returns the status command.
func NewCommand(opts *options.PiSetupOptions) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Show installation progress and recorded facts",
		Action: func(ctx *cli.Context) error {
			return Run(opts)
		},
	}
}

// Run prints the status report. Read-only: no privilege check and no lock.
func Run(opts *options.PiSetupOptions) error {
	store, err := state.Open(opts.StateFilePath)
	if err != nil {
		return err
	}

	registry, err := install.NewRegistry(provision.Steps(detect.NewSystemDetector(opts)))
	if err != nil {
		return err
	}

	report := install.NewOrchestrator(opts, registry, store).Status()

	fmt.Fprintf(opts.Writer, "State file: %s\n", store.Path())
	fmt.Fprintf(opts.Writer, "Current:    %s\n\n", report.Current)

	for _, step := range report.Steps {
		mark := " "
		if step.Complete {
			mark = "x"
		}

		fmt.Fprintf(opts.Writer, "  [%s] %d. %-20s %s\n", mark, step.Ordinal, step.Name, step.Description)
	}

	if len(report.Facts) > 0 {
		fmt.Fprintf(opts.Writer, "\nRecorded facts:\n")

		for _, fact := range report.Facts {
			fmt.Fprintf(opts.Writer, "  %s=%s\n", fact.Key, fact.Value)
		}
	}

	return nil
}
