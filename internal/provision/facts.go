// Package provision supplies the external side effects the core drives: the
// step actions of the install pipeline and the removal actions of the teardown
// plan. Everything here shells out to privileged system mutators and is written
// to be safe to re-run after partial completion, per the step contract.
package provision

// Fact keys written to the state file during installation and read back during
// removal. Facts are write-once, so each key records the state of the host as
// it was before the pipeline touched it.
const (
	// FactPriorHostname is the hostname the host had before the pipeline renamed it.
	FactPriorHostname = "PRIOR_HOSTNAME"

	// FactBootCmdlineBackup is the path of the timestamped backup taken before
	// amending the kernel command line.
	FactBootCmdlineBackup = "BOOT_CMDLINE_BACKUP"

	// FactBootCmdlineChanged records that this pipeline actually modified the
	// kernel command line, as opposed to finding the parameters already present.
	FactBootCmdlineChanged = "BOOT_CMDLINE_CHANGED"

	// FactDockerPreinstalled records that docker was present before the pipeline ran.
	FactDockerPreinstalled = "DOCKER_PREINSTALLED"

	// FactDockerGroupAdded records the account the pipeline added to the docker
	// group; its value is the username.
	FactDockerGroupAdded = "DOCKER_GROUP_ADDED"
)

// PackagePreinstalledFact returns the fact key recording whether the given apt
// package was already installed before the pipeline ran.
func PackagePreinstalledFact(pkg string) string {
	return "PKG_" + pkg + "_PREINSTALLED"
}
