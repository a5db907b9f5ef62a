// Package remove implements the remove command: generate the removal document,
// resolve it into a plan, and execute the plan best-effort.
package remove

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/detect"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/provision"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/removal"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/shell"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/state"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

const (
	CommandName = "remove"

	FlagNameAll  = "all"
	FlagNamePlan = "plan"
)

// NewCommand returns the remove command.
func NewCommand(opts *options.PiSetupOptions) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Selectively uninstall components via the removal document",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  FlagNameAll,
				Usage: "Enable every node and tear down everything unattended",
			},
			&cli.BoolFlag{
				Name:  FlagNamePlan,
				Usage: "Show what would be removed without removing anything",
			},
		},
		Action: func(ctx *cli.Context) error {
			return Run(ctx.Context, opts, ctx.Bool(FlagNameAll), ctx.Bool(FlagNamePlan))
		},
	}
}

// Run drives one removal cycle. Without an existing document it generates a
// fresh safe-by-default one and stops so the operator can edit it; with one it
// plans, confirms, and executes. The document never survives an executed cycle.
func Run(ctx context.Context, opts *options.PiSetupOptions, all, planOnly bool) error {
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

	detector := detect.NewSystemDetector(opts)

	doc, err := loadOrGenerate(ctx, opts, detector, all)
	if err != nil || doc == nil {
		return err
	}

	if all {
		doc.EnableAll()
	}

	planner := removal.NewPlanner(doc)

	if !planner.HasAnyEnabled() {
		opts.Logger.Infof("Nothing is enabled in %s; nothing to remove", opts.RemovalConfigPath)
		return nil
	}

	plan := planner.Plan()

	if planOnly {
		fmt.Fprintf(opts.Writer, "Would remove %d nodes:\n", len(plan))

		for _, item := range plan {
			fmt.Fprintf(opts.Writer, "  %s\n", item.ID())
		}

		return nil
	}

	prompt := fmt.Sprintf("About to remove %d components from this host. This cannot be undone. Continue?", len(plan))

	confirmed, err := shell.PromptUserForYesNo(prompt, opts)
	if err != nil {
		return err
	}

	if !confirmed {
		opts.Logger.Infof("Removal aborted; %s was left in place", opts.RemovalConfigPath)
		return nil
	}

	executor := removal.NewExecutor(opts, provision.NewSystemRemover(opts, store))

	_, err = executor.Execute(ctx, plan)

	return err
}

// loadOrGenerate returns the document to execute, or nil when a fresh document
// was generated and the operator needs to edit it first.
func loadOrGenerate(ctx context.Context, opts *options.PiSetupOptions, detector detect.Detector, all bool) (*removal.Document, error) {
	if util.FileExists(opts.RemovalConfigPath) {
		return removal.Load(opts.RemovalConfigPath)
	}

	opts.Logger.Infof("Scanning the host for removable components")

	doc := removal.NewConfigBuilder(opts, detector).Build(ctx)

	if err := doc.Save(opts.RemovalConfigPath); err != nil {
		return nil, err
	}

	if all {
		// Unattended teardown does not stop for editing.
		return doc, nil
	}

	opts.Logger.Infof("Generated %s with everything disabled. Edit it to enable what should be removed, then rerun this command.", opts.RemovalConfigPath)

	return nil, nil
}
