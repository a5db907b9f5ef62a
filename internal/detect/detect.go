// Package detect probes the host for the presence of the components the
// installer manages. The removal config builder uses these probes so the
// generated document only offers to remove things that actually exist.
package detect

import (
	"context"
	"os/exec"
	"strings"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/shell"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

// Detector reports whether a component is present on the host.
type Detector interface {
	// CommandOnPath reports whether the named executable is on PATH.
	CommandOnPath(name string) bool

	// PathExists reports whether a file or directory exists.
	PathExists(path string) bool

	// ContainerRunning reports whether a container with the given name is running.
	ContainerRunning(ctx context.Context, name string) bool

	// PackageInstalled reports whether the named package is installed.
	PackageInstalled(ctx context.Context, name string) bool

	// Probe runs an arbitrary probe command line and reports whether it exited zero.
	Probe(ctx context.Context, cmdline string) bool
}

// SystemDetector probes the live host through PATH lookups, the filesystem,
// docker, and dpkg.
type SystemDetector struct {
	opts *options.PiSetupOptions
}

// NewSystemDetector returns a Detector backed by the live host.
func NewSystemDetector(opts *options.PiSetupOptions) *SystemDetector {
	return &SystemDetector{opts: opts}
}

func (detector *SystemDetector) CommandOnPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (detector *SystemDetector) PathExists(path string) bool {
	return util.FileExists(path)
}

func (detector *SystemDetector) ContainerRunning(ctx context.Context, name string) bool {
	output, err := shell.RunCommandWithOutput(ctx, detector.opts, "", true, "docker", "inspect", "--format", "{{.State.Running}}", name)
	if err != nil {
		return false
	}

	return strings.TrimSpace(output.Stdout.String()) == "true"
}

func (detector *SystemDetector) PackageInstalled(ctx context.Context, name string) bool {
	output, err := shell.RunCommandWithOutput(ctx, detector.opts, "", true, "dpkg-query", "--show", "--showformat", "${Status}", name)
	if err != nil {
		return false
	}

	return strings.Contains(output.Stdout.String(), "install ok installed")
}

func (detector *SystemDetector) Probe(ctx context.Context, cmdline string) bool {
	_, err := shell.RunShellString(ctx, detector.opts, "", true, cmdline)
	return err == nil
}
