// Package cli wires the command surface of the program: install (the default),
// status, reset, and remove.
package cli

import (
	"github.com/hashicorp/go-version"
	"github.com/urfave/cli/v2"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/cli/commands"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/cli/commands/install"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

// AppVersion is the program version, overridable at build time with
// -ldflags "-X .../cli.AppVersion=...".
var AppVersion = "1.0.0"

const (
	FlagNameLogLevel       = "log-level"
	FlagNameDataDir        = "data-dir"
	FlagNameNonInteractive = "non-interactive"
)

// NewApp creates the deathstar CLI app around the given options.
func NewApp(opts *options.PiSetupOptions) *cli.App {
	if ver, err := version.NewVersion(AppVersion); err == nil {
		opts.AppVersion = ver
	}

	return &cli.App{
		Name:      "deathstar",
		Usage:     "Provision a Raspberry Pi DNS-filtering and monitoring appliance, and tear it down again",
		UsageText: "deathstar [global options] <command>",
		Version:   AppVersion,
		Writer:    opts.Writer,
		ErrWriter: opts.ErrWriter,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    FlagNameLogLevel,
				Usage:   "Logging level (trace, debug, info, warn, error)",
				EnvVars: []string{"DEATHSTAR_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    FlagNameDataDir,
				Usage:   "Directory holding the install state file and removal document",
				EnvVars: []string{"DEATHSTAR_DATA_DIR"},
			},
			&cli.BoolFlag{
				Name:    FlagNameNonInteractive,
				Aliases: []string{"y"},
				Usage:   "Assume \"yes\" for all prompts",
				EnvVars: []string{"DEATHSTAR_NON_INTERACTIVE"},
			},
		},
		Before:   applyGlobalFlags(opts),
		Commands: commands.New(opts),
		// Running the bare binary resumes or starts the installation, matching
		// the "rerun the same command to continue" recovery story.
		Action: func(ctx *cli.Context) error {
			return install.Run(ctx.Context, opts)
		},
	}
}

func applyGlobalFlags(opts *options.PiSetupOptions) cli.BeforeFunc {
	return func(ctx *cli.Context) error {
		if level := ctx.String(FlagNameLogLevel); level != "" {
			if err := opts.Logger.SetLevel(level); err != nil {
				return err
			}
		}

		if dataDir := ctx.String(FlagNameDataDir); dataDir != "" {
			expanded, err := util.ExpandHomePath(dataDir)
			if err != nil {
				return err
			}

			opts.SetDataDir(expanded)
		}

		if ctx.Bool(FlagNameNonInteractive) {
			opts.NonInteractive = true
		}

		return nil
	}
}
