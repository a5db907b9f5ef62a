package provision

import (
	"context"
	"os"
	"strings"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/removal"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/shell"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/state"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

// SystemRemover implements removal.Remover against the live host. It reads the
// facts recorded during installation so teardown restores what was actually
// there before, not a guessed default.
type SystemRemover struct {
	opts  *options.PiSetupOptions
	store *state.Store
}

// NewSystemRemover returns a remover backed by the live host and the given
// state store.
func NewSystemRemover(opts *options.PiSetupOptions, store *state.Store) *SystemRemover {
	return &SystemRemover{opts: opts, store: store}
}

// Remove performs the side effect for a single plan item.
func (remover *SystemRemover) Remove(ctx context.Context, item removal.PlanItem) error {
	switch item.Category {
	case removal.CategoryServices:
		return remover.removeService(ctx, item)
	case removal.CategoryInfrastructure:
		return remover.removeInfrastructure(ctx, item)
	case removal.CategorySystemModifications:
		return remover.removeSystemModification(ctx, item)
	case removal.CategorySystemPackages:
		return remover.removePackage(ctx, item)
	case removal.CategoryCleanupFiles:
		return remover.removeFiles(item)
	case removal.CategorySystemReboot:
		return remover.scheduleReboot(ctx)
	}

	return errors.New(UnknownPlanItemError{ID: item.ID()})
}

func (remover *SystemRemover) removeService(ctx context.Context, item removal.PlanItem) error {
	switch last(item.Path) {
	case removal.NodePiHole:
		return remover.composeDown(ctx, item.Node.Path)
	case removal.NodeMonitoring:
		return remover.composeDown(ctx, item.Node.Path)
	case removal.NodeGrafana:
		return remover.removeContainer(ctx, removal.ContainerGrafana)
	case removal.NodePrometheus:
		return remover.removeContainer(ctx, removal.ContainerPrometheus)
	}

	return errors.New(UnknownPlanItemError{ID: item.ID()})
}

func (remover *SystemRemover) composeDown(ctx context.Context, dir string) error {
	if dir == "" || !util.IsDir(dir) {
		// The compose project is already gone; nothing left to stop.
		return nil
	}

	_, err := shell.RunCommandWithOutput(ctx, remover.opts, dir, false, "docker", "compose", "down", "--volumes", "--remove-orphans")

	return err
}

func (remover *SystemRemover) removeContainer(ctx context.Context, name string) error {
	if err := shell.RunCommand(ctx, remover.opts, "docker", "rm", "--force", name); err != nil {
		return err
	}

	// Named volumes follow the container name convention of the compose files.
	_, err := shell.RunCommandWithOutput(ctx, remover.opts, "", true, "docker", "volume", "rm", name+"-data")
	if err != nil {
		remover.opts.Logger.Debugf("No volume %s-data to remove", name)
	}

	return nil
}

func (remover *SystemRemover) removeInfrastructure(ctx context.Context, item removal.PlanItem) error {
	if last(item.Path) != removal.NodeDocker {
		return errors.New(UnknownPlanItemError{ID: item.ID()})
	}

	if preinstalled, _ := remover.store.Fact(FactDockerPreinstalled); preinstalled == "true" {
		remover.opts.Logger.Infof("Docker was present before installation; leaving it in place")
		return nil
	}

	if err := shell.RunCommand(ctx, remover.opts, "sh", "-c", "apt-get purge -y docker-ce docker-ce-cli containerd.io docker-compose-plugin || apt-get purge -y docker.io"); err != nil {
		return err
	}

	if item.Node.Path != "" {
		return errors.New(os.RemoveAll(item.Node.Path))
	}

	return nil
}

func (remover *SystemRemover) removeSystemModification(ctx context.Context, item removal.PlanItem) error {
	switch last(item.Path) {
	case removal.NodeBootConfig:
		return remover.restoreBootCmdline(item)
	case removal.NodeDockerGroup:
		return remover.revokeDockerGroup(ctx)
	}

	return errors.New(UnknownPlanItemError{ID: item.ID()})
}

func (remover *SystemRemover) restoreBootCmdline(item removal.PlanItem) error {
	target := item.Node.Path
	if target == "" {
		target = removal.BootCmdlinePath
	}

	backupPath, ok := remover.store.Fact(FactBootCmdlineBackup)
	if ok && util.IsFile(backupPath) {
		return removal.RestoreFile(remover.opts.Logger, target, backupPath, nil)
	}

	// No usable backup (older pipeline runs did not record one); strip the
	// parameters out of the live file instead.
	return removal.StripTokens(remover.opts.Logger, target, BootCmdlineParams)
}

func (remover *SystemRemover) revokeDockerGroup(ctx context.Context) error {
	user, ok := remover.store.Fact(FactDockerGroupAdded)
	if !ok {
		remover.opts.Logger.Infof("No account was added to the docker group by this pipeline; nothing to revoke")
		return nil
	}

	return shell.RunCommand(ctx, remover.opts, "gpasswd", "-d", user, "docker")
}

func (remover *SystemRemover) removePackage(ctx context.Context, item removal.PlanItem) error {
	pkg := last(item.Path)

	if preinstalled, _ := remover.store.Fact(PackagePreinstalledFact(pkg)); preinstalled == "true" {
		remover.opts.Logger.Infof("Package %s was present before installation; leaving it in place", pkg)
		return nil
	}

	return shell.RunCommand(ctx, remover.opts, "apt-get", "purge", "-y", pkg)
}

func (remover *SystemRemover) removeFiles(item removal.PlanItem) error {
	path := item.Node.Path

	if path == "" || strings.TrimRight(path, "/") == "" {
		return errors.Errorf("refusing to delete %q", path)
	}

	return errors.New(os.RemoveAll(path))
}

func (remover *SystemRemover) scheduleReboot(ctx context.Context) error {
	remover.opts.Logger.Warnf("Rebooting the host in one minute")

	return shell.RunCommand(ctx, remover.opts, "shutdown", "-r", "+1", "deathstar teardown finished")
}

func last(path []string) string {
	if len(path) == 0 {
		return ""
	}

	return path[len(path)-1]
}

// UnknownPlanItemError is returned when the plan contains a node this remover
// has no handler for, typically a hand-added node in an edited document.
type UnknownPlanItemError struct {
	ID string
}

func (err UnknownPlanItemError) Error() string {
	return "no removal handler for node " + err.ID
}
