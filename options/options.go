// Package options provides the set of options that configure the behavior of
// the deathstar-pi-hole-setup program. A single options value is constructed at
// startup and threaded through every command and collaborator.
package options

import (
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-version"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/pkg/log"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

const (
	// DefaultDataDirRoot is where durable installer state lives when running as root.
	DefaultDataDirRoot = "/var/lib/deathstar"

	// DefaultDataDirUser is the fallback data directory for non-root invocations,
	// relative to the user's home directory.
	DefaultDataDirUser = "~/.deathstar"

	// StateFileName is the name of the install state file inside the data directory.
	StateFileName = "install-state"

	// RemovalConfigFileName is the name of the removal document inside the data directory.
	RemovalConfigFileName = "removal-config.yml"

	// DefaultSetupRepoURL is the repository holding the Pi-hole and monitoring
	// compose definitions that the installer deploys.
	DefaultSetupRepoURL = "https://github.com/xolisbeamed/deathstar-pi-hole-setup.git"
)

// PiSetupOptions represents options that configure the behavior of the
// deathstar-pi-hole-setup program.
type PiSetupOptions struct {
	// DataDir is the directory holding the state file and removal document.
	DataDir string

	// StateFilePath is the location of the install state file.
	StateFilePath string

	// RemovalConfigPath is the location of the removal document.
	RemovalConfigPath string

	// SetupRepoURL is the git repository with the container stack definitions.
	SetupRepoURL string

	// SetupRepoDir is the local checkout of SetupRepoURL.
	SetupRepoDir string

	// NonInteractive disables every prompt and assumes "yes" for confirmations.
	NonInteractive bool

	// AppVersion is the version of this program.
	AppVersion *version.Version

	// Logger is the logger all components report through.
	Logger log.Logger

	// Writer and ErrWriter are the standard output streams for the program and
	// the commands it spawns.
	Writer    io.Writer
	ErrWriter io.Writer

	// Reader is where interactive confirmations are read from.
	Reader io.Reader

	// Env is the environment passed to spawned commands.
	Env map[string]string
}

// NewPiSetupOptions returns options with defaults suitable for a real
// invocation: root keeps state under /var/lib, everyone else under their home
// directory.
func NewPiSetupOptions() *PiSetupOptions {
	dataDir := DefaultDataDirRoot

	if os.Geteuid() != 0 {
		if expanded, err := util.ExpandHomePath(DefaultDataDirUser); err == nil {
			dataDir = expanded
		}
	}

	opts := &PiSetupOptions{
		DataDir:      dataDir,
		SetupRepoURL: DefaultSetupRepoURL,
		Logger:       log.New(os.Stderr),
		Writer:       os.Stdout,
		ErrWriter:    os.Stderr,
		Reader:       os.Stdin,
		Env:          util.ParseEnvs(os.Environ()),
	}
	opts.SetDataDir(dataDir)

	return opts
}

// SetDataDir points the state file, removal document, and repo checkout at the
// given directory.
func (opts *PiSetupOptions) SetDataDir(dataDir string) {
	opts.DataDir = dataDir
	opts.StateFilePath = filepath.Join(dataDir, StateFileName)
	opts.RemovalConfigPath = filepath.Join(dataDir, RemovalConfigFileName)
	opts.SetupRepoDir = filepath.Join(dataDir, "deathstar-pi-hole-setup")
}

// LockFilePath is the advisory lock taken around state-mutating invocations.
func (opts *PiSetupOptions) LockFilePath() string {
	return opts.StateFilePath + ".lock"
}
