package removal

import (
	"context"
	"path/filepath"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/detect"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/options"
)

// Node ids used in generated documents. The remover matches on these, so they
// are part of the document contract, not presentation.
const (
	NodePiHole         = "pi_hole"
	NodeMonitoring     = "monitoring"
	NodeGrafana        = "grafana"
	NodePrometheus     = "prometheus"
	NodeDocker         = "docker"
	NodeBootConfig     = "boot_config"
	NodeDockerGroup    = "docker_group"
	NodeStateDirectory = "state_directory"
	NodeSetupRepo      = "setup_repo"
)

// Container names deployed by the installer.
const (
	ContainerPiHole     = "pihole"
	ContainerGrafana    = "grafana"
	ContainerPrometheus = "prometheus"
)

// BootCmdlinePath is the kernel command line file the installer amends with the
// cgroup parameters containers need.
const BootCmdlinePath = "/boot/firmware/cmdline.txt"

// RemovablePackages are the apt packages the installer may have added and the
// removal document offers to purge.
var RemovablePackages = []string{"curl", "dnsutils", "git"}

const documentInstructions = `Set "enabled: true" on anything you want removed, then rerun the remove command.
Enabling a parent removes everything beneath it; leaving a parent disabled
still allows enabling individual children. Nothing is removed by default.
This file is regenerated from detection on every cycle and deleted after use.`

// ConfigBuilder generates a fresh removal document from what is actually
// present on the host. Every node defaults to enabled: false, so a generated
// document is always safe to execute as-is.
type ConfigBuilder struct {
	opts     *options.PiSetupOptions
	detector detect.Detector
}

// NewConfigBuilder returns a builder backed by the given detector.
func NewConfigBuilder(opts *options.PiSetupOptions, detector detect.Detector) *ConfigBuilder {
	return &ConfigBuilder{opts: opts, detector: detector}
}

// Build scans the host and emits the canonical removal tree. Optional
// components only appear when detection finds them; the structural categories
// are always present.
func (builder *ConfigBuilder) Build(ctx context.Context) *Document {
	doc := &Document{
		Version:      DocumentVersion,
		Instructions: documentInstructions,
		Services: &Node{
			Description: "Containerized services deployed by the installer",
			Children:    map[string]*Node{},
		},
		Infrastructure: &Node{
			Description: "Runtime the services depend on",
			Children:    map[string]*Node{},
		},
		SystemModifications: &Node{
			Description: "Changes made to host configuration",
			Children:    map[string]*Node{},
		},
		SystemPackages: &Node{
			Description: "Packages installed by the pipeline",
			Children:    map[string]*Node{},
		},
		CleanupFiles: &Node{
			Description: "Files and directories left behind by the installer",
			Children:    map[string]*Node{},
		},
		SystemReboot: &Node{
			Description: "Reboot the host once teardown finishes",
			Impact:      "The host restarts immediately after removal completes",
		},
	}

	builder.addServices(ctx, doc)
	builder.addInfrastructure(ctx, doc)
	builder.addSystemModifications(ctx, doc)
	builder.addSystemPackages(ctx, doc)
	builder.addCleanupFiles(doc)

	return doc
}

func (builder *ConfigBuilder) addServices(ctx context.Context, doc *Document) {
	piholeDir := filepath.Join(builder.opts.SetupRepoDir, "pihole")

	if builder.detector.ContainerRunning(ctx, ContainerPiHole) || builder.detector.PathExists(piholeDir) {
		doc.Services.Children[NodePiHole] = &Node{
			Description: "Pi-hole DNS filter (container, volumes, and config)",
			Path:        piholeDir,
			Impact:      "DNS filtering stops; clients fall back to their upstream DNS",
		}
	}

	monitoring := &Node{
		Description: "Monitoring stack",
		Path:        filepath.Join(builder.opts.SetupRepoDir, "monitoring"),
		Children:    map[string]*Node{},
	}

	if builder.detector.ContainerRunning(ctx, ContainerGrafana) {
		monitoring.Children[NodeGrafana] = &Node{
			Description: "Grafana dashboards (container and volumes)",
			Impact:      "Dashboards and their history are lost",
		}
	}

	if builder.detector.ContainerRunning(ctx, ContainerPrometheus) {
		monitoring.Children[NodePrometheus] = &Node{
			Description: "Prometheus metrics (container and volumes)",
			Impact:      "Collected metrics are lost",
		}
	}

	if len(monitoring.Children) > 0 {
		doc.Services.Children[NodeMonitoring] = monitoring
	}
}

func (builder *ConfigBuilder) addInfrastructure(ctx context.Context, doc *Document) {
	if builder.detector.CommandOnPath("docker") {
		doc.Infrastructure.Children[NodeDocker] = &Node{
			Description: "Docker engine and all local images, containers, and volumes",
			Path:        "/var/lib/docker",
			Impact:      "Every container on this host stops working, not just the ones this installer deployed",
		}
	}
}

func (builder *ConfigBuilder) addSystemModifications(ctx context.Context, doc *Document) {
	if builder.detector.PathExists(BootCmdlinePath) {
		doc.SystemModifications.Children[NodeBootConfig] = &Node{
			Description: "cgroup parameters added to the kernel command line",
			Path:        BootCmdlinePath,
			Impact:      "Requires a reboot to take effect",
		}
	}

	if builder.detector.Probe(ctx, "getent group docker") {
		doc.SystemModifications.Children[NodeDockerGroup] = &Node{
			Description: "docker group membership granted to the operator account",
		}
	}
}

func (builder *ConfigBuilder) addSystemPackages(ctx context.Context, doc *Document) {
	for _, pkg := range RemovablePackages {
		if builder.detector.PackageInstalled(ctx, pkg) {
			doc.SystemPackages.Children[pkg] = &Node{
				Description: "apt package " + pkg,
			}
		}
	}
}

func (builder *ConfigBuilder) addCleanupFiles(doc *Document) {
	if builder.detector.PathExists(builder.opts.SetupRepoDir) {
		doc.CleanupFiles.Children[NodeSetupRepo] = &Node{
			Description: "Local checkout of the setup repository",
			Path:        builder.opts.SetupRepoDir,
		}
	}

	doc.CleanupFiles.Children[NodeStateDirectory] = &Node{
		Description: "Installer state directory (state file and this document)",
		Path:        builder.opts.DataDir,
		Impact:      "The install pipeline forgets all progress and recorded facts",
	}
}
