package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/detect"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/install"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/removal"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/shell"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/state"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

// ApplianceHostname is the name the pipeline gives the host.
const ApplianceHostname = "deathstar-pi"

// BootCmdlineParams are the kernel parameters containers need on a Raspberry Pi.
var BootCmdlineParams = []string{"cgroup_enable=memory", "cgroup_memory=1"}

const (
	connectivityRetries = 10
	connectivitySleep   = 3 * time.Second
	verifyRetries       = 20
	verifySleep         = 3 * time.Second
)

// Steps returns the canonical installation pipeline wired to the live host.
func Steps(detector detect.Detector) []install.Step {
	return []install.Step{
		{
			Ordinal:     1,
			Name:        install.StepSystemUpdate,
			Description: "Update and upgrade system packages",
			Action:      systemUpdate,
		},
		{
			Ordinal:     2,
			Name:        install.StepInstallPackages,
			Description: "Install required packages",
			Action:      installPackages(detector),
		},
		{
			Ordinal:     3,
			Name:        install.StepConfigureSystem,
			Description: "Configure kernel boot parameters and hostname",
			Action:      configureSystem,
			RebootCheck: rebootNeeded,
		},
		{
			Ordinal:     4,
			Name:        install.StepRebootBarrier,
			Description: "Restart the host if the previous step requires it",
			Barrier:     true,
		},
		{
			Ordinal:     5,
			Name:        install.StepInstallDocker,
			Description: "Install the Docker engine",
			Action:      installDocker(detector),
		},
		{
			Ordinal:     6,
			Name:        install.StepCloneSetupRepo,
			Description: "Fetch the container stack definitions",
			Action:      cloneSetupRepo,
		},
		{
			Ordinal:     7,
			Name:        install.StepDeployPihole,
			Description: "Deploy the Pi-hole DNS filter",
			Action:      deployPihole,
		},
		{
			Ordinal:     8,
			Name:        install.StepDeployMonitoring,
			Description: "Deploy the monitoring stack",
			Action:      deployMonitoring,
		},
		{
			Ordinal:     9,
			Name:        install.StepVerifyInstall,
			Description: "Verify the deployed services are healthy",
			Action:      verifyInstall(detector),
		},
	}
}

func systemUpdate(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
	if err := shell.RunCommand(ctx, opts, "apt-get", "update"); err != nil {
		return err
	}

	return shell.RunCommand(ctx, opts, "apt-get", "full-upgrade", "-y")
}

func installPackages(detector detect.Detector) install.Action {
	return func(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
		// Record which packages predate this pipeline before apt touches them,
		// so removal knows what it is allowed to purge. A rerun after a partial
		// apt failure keeps the original observation intact.
		for _, pkg := range removal.RemovablePackages {
			if _, recorded := store.Fact(PackagePreinstalledFact(pkg)); recorded {
				continue
			}

			preinstalled := "false"
			if detector.PackageInstalled(ctx, pkg) {
				preinstalled = "true"
			}

			if err := store.SetFact(PackagePreinstalledFact(pkg), preinstalled); err != nil {
				return err
			}
		}

		args := append([]string{"install", "-y", "ca-certificates"}, removal.RemovablePackages...)

		return shell.RunCommand(ctx, opts, "apt-get", args...)
	}
}

func configureSystem(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
	if err := amendBootCmdline(opts, store); err != nil {
		return err
	}

	hostname, err := os.Hostname()
	if err != nil {
		return errors.New(err)
	}

	// On a rerun the host may already carry the appliance name; the original
	// name recorded the first time through is the one removal restores.
	if _, recorded := store.Fact(FactPriorHostname); !recorded {
		if err := store.SetFact(FactPriorHostname, hostname); err != nil {
			return err
		}
	}

	if hostname != ApplianceHostname {
		if err := shell.RunCommand(ctx, opts, "hostnamectl", "set-hostname", ApplianceHostname); err != nil {
			return err
		}
	}

	return nil
}

func amendBootCmdline(opts *options.PiSetupOptions, store *state.Store) error {
	data, err := os.ReadFile(removal.BootCmdlinePath)
	if err != nil {
		return errors.New(err)
	}

	cmdline := strings.TrimRight(string(data), "\n")

	var missing []string

	for _, param := range BootCmdlineParams {
		if !hasToken(cmdline, param) {
			missing = append(missing, param)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	// A rerun after a crash reuses the backup recorded the first time around
	// rather than overwriting it with an already-modified file.
	backupPath, ok := store.Fact(FactBootCmdlineBackup)
	if !ok {
		backupPath = util.BackupPath(removal.BootCmdlinePath, time.Now())

		if err := util.CopyFile(removal.BootCmdlinePath, backupPath); err != nil {
			return err
		}

		if err := store.SetFact(FactBootCmdlineBackup, backupPath); err != nil {
			return err
		}
	}

	amended := cmdline + " " + strings.Join(missing, " ") + "\n"

	if err := util.WriteFileAtomic(removal.BootCmdlinePath, []byte(amended), 0755); err != nil {
		return err
	}

	return store.SetFact(FactBootCmdlineChanged, "true")
}

// rebootNeeded fires when the kernel command line on disk was changed this run
// and the running kernel does not have the parameters yet. A false positive
// just makes the barrier a no-op skip on the next invocation.
func rebootNeeded(store *state.Store) (bool, error) {
	if changed, _ := store.Fact(FactBootCmdlineChanged); changed != "true" {
		return false, nil
	}

	data, err := os.ReadFile("/proc/cmdline")
	if err != nil {
		return false, errors.New(err)
	}

	running := strings.TrimSpace(string(data))

	for _, param := range BootCmdlineParams {
		if !hasToken(running, param) {
			return true, nil
		}
	}

	return false, nil
}

func installDocker(detector detect.Detector) install.Action {
	return func(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
		preinstalled, recorded := store.Fact(FactDockerPreinstalled)

		if !recorded {
			preinstalled = "false"
			if detector.CommandOnPath("docker") {
				preinstalled = "true"
			}

			if err := store.SetFact(FactDockerPreinstalled, preinstalled); err != nil {
				return err
			}
		}

		if preinstalled == "true" {
			return nil
		}

		// A rerun after the install script succeeded but a later command failed
		// skips straight to the group grant.
		if !detector.CommandOnPath("docker") {
			if err := waitForConnectivity(ctx, opts, "https://get.docker.com"); err != nil {
				return err
			}

			if err := shell.RunCommand(ctx, opts, "sh", "-c", "curl -fsSL https://get.docker.com | sh"); err != nil {
				return err
			}
		}

		// Grant the invoking account access to the docker socket. SUDO_USER is
		// empty when running as actual root, in which case there is nothing to add.
		if user := opts.Env["SUDO_USER"]; user != "" {
			if err := shell.RunCommand(ctx, opts, "usermod", "-aG", "docker", user); err != nil {
				return err
			}

			if err := store.SetFact(FactDockerGroupAdded, user); err != nil {
				return err
			}
		}

		return nil
	}
}

func cloneSetupRepo(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
	if err := waitForConnectivity(ctx, opts, opts.SetupRepoURL); err != nil {
		return err
	}

	if util.IsDir(filepath.Join(opts.SetupRepoDir, ".git")) {
		return shell.RunCommand(ctx, opts, "git", "-C", opts.SetupRepoDir, "pull", "--ff-only")
	}

	return shell.RunCommand(ctx, opts, "git", "clone", opts.SetupRepoURL, opts.SetupRepoDir)
}

func deployPihole(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
	return composeUp(ctx, opts, filepath.Join(opts.SetupRepoDir, "pihole"))
}

func deployMonitoring(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
	return composeUp(ctx, opts, filepath.Join(opts.SetupRepoDir, "monitoring"))
}

func composeUp(ctx context.Context, opts *options.PiSetupOptions, dir string) error {
	_, err := shell.RunCommandWithOutput(ctx, opts, dir, false, "docker", "compose", "up", "-d", "--wait")

	return err
}

func verifyInstall(detector detect.Detector) install.Action {
	return func(ctx context.Context, opts *options.PiSetupOptions, store *state.Store) error {
		containers := []string{removal.ContainerPiHole, removal.ContainerGrafana, removal.ContainerPrometheus}

		for _, name := range containers {
			err := util.DoWithRetry(ctx, "Waiting for container "+name, verifyRetries, verifySleep, opts.Logger, func(ctx context.Context) error {
				if !detector.ContainerRunning(ctx, name) {
					return errors.Errorf("container %s is not running", name)
				}

				return nil
			})
			if err != nil {
				return err
			}
		}

		// DNS answering on the Pi-hole is what the appliance exists for.
		return util.DoWithRetry(ctx, "Waiting for DNS resolution through Pi-hole", verifyRetries, verifySleep, opts.Logger, func(ctx context.Context) error {
			return shell.RunCommand(ctx, opts, "dig", "@127.0.0.1", "+time=2", "+tries=1", "pi-hole.net")
		})
	}
}

func waitForConnectivity(ctx context.Context, opts *options.PiSetupOptions, url string) error {
	return util.DoWithRetry(ctx, "Waiting for network connectivity", connectivityRetries, connectivitySleep, opts.Logger, func(ctx context.Context) error {
		return shell.RunCommand(ctx, opts, "curl", "-fsI", "--max-time", "5", url)
	})
}

func hasToken(line, token string) bool {
	for _, field := range strings.Fields(line) {
		if field == token {
			return true
		}
	}

	return false
}
